// models/score.go
package models

import "time"

// DateLayout is the storage and wire format of a score date.
const DateLayout = "2006-01-02"

// FailedScore is recorded when a player ran out of guesses.
const FailedScore = 8

// Score is one player's result for one calendar day. There is at most one
// row per (user, date); writes are upserts.
type Score struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_scores_user_date"`
	Date      string    `json:"date" gorm:"not null;size:10;uniqueIndex:idx_scores_user_date"`
	Score     int       `json:"score" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Score) TableName() string {
	return "scores"
}

// ValidScore reports whether v is a score a player can record.
func ValidScore(v int) bool {
	return (v >= 1 && v <= 6) || v == FailedScore
}
