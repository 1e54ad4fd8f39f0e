// models/group.go
package models

import "time"

const (
	MaxGroupMembers    = 4
	MaxGroupNameLength = 50
	InviteCodeLength   = 8
)

type Group struct {
	ID                    uint      `json:"id" gorm:"primaryKey"`
	Name                  string    `json:"name" gorm:"not null;size:50"`
	InviteCode            string    `json:"invite_code" gorm:"uniqueIndex;not null;size:8"`
	CreatedByUserID       uint      `json:"created_by_user_id" gorm:"not null;index"`
	IncludeHistoricalData bool      `json:"include_historical_data" gorm:"not null"`
	CreatedAt             time.Time `json:"created_at"`
}

func (Group) TableName() string {
	return "player_groups"
}
