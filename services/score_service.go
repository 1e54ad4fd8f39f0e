// services/score_service.go - Score recording and weekly aggregation
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wordlewise/models"
)

// DayScores maps username to the score recorded that day.
type DayScores map[string]int

// DayEntry is one calendar day inside a week.
type DayEntry struct {
	Date   string
	Scores DayScores
}

// WeekBucket is a Monday-aligned 7-day window. Days are always complete
// and ascending; a user without a score on a day is simply absent.
type WeekBucket struct {
	StartOfWeek string
	Days        []DayEntry
}

// MarshalJSON renders the bucket as
// {"start_of_week": "...", "data": {"YYYY-MM-DD": {"user": 3}, ...}}
// keeping the date keys in ascending order.
func (w WeekBucket) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"start_of_week":`)
	start, err := json.Marshal(w.StartOfWeek)
	if err != nil {
		return nil, err
	}
	buf.Write(start)
	buf.WriteString(`,"data":{`)
	for i, day := range w.Days {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(day.Date)
		if err != nil {
			return nil, err
		}
		scores := day.Scores
		if scores == nil {
			scores = DayScores{}
		}
		val, err := json.Marshal(scores)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// ScoreRow is one stored score joined to its owner's username.
type ScoreRow struct {
	Username string
	Date     string
	Score    int
}

// StartOfWeek returns the Monday on or before t, as a UTC calendar date.
func StartOfWeek(t time.Time) time.Time {
	d := calendarDate(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// AggregateWeeks buckets rows into Monday-aligned weeks and fills every
// missing week from the earliest week (earliest data, or the cutoff week
// when given) through the week containing today.
func AggregateWeeks(rows []ScoreRow, cutoff *time.Time, today time.Time) []WeekBucket {
	weeks := make(map[time.Time]map[string]DayScores)
	ensureWeek := func(start time.Time) map[string]DayScores {
		days, ok := weeks[start]
		if !ok {
			days = make(map[string]DayScores, 7)
			for i := 0; i < 7; i++ {
				days[start.AddDate(0, 0, i).Format(models.DateLayout)] = DayScores{}
			}
			weeks[start] = days
		}
		return days
	}

	var earliest time.Time
	for _, row := range rows {
		d, err := time.Parse(models.DateLayout, row.Date)
		if err != nil {
			continue
		}
		start := StartOfWeek(d)
		ensureWeek(start)[d.Format(models.DateLayout)][row.Username] = row.Score
		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
	}

	current := StartOfWeek(today)
	if cutoff != nil {
		cutoffWeek := StartOfWeek(*cutoff)
		if earliest.IsZero() || cutoffWeek.Before(earliest) {
			earliest = cutoffWeek
		}
	}
	if earliest.IsZero() {
		earliest = current
	}

	for start := earliest; !start.After(current); start = start.AddDate(0, 0, 7) {
		ensureWeek(start)
	}
	ensureWeek(current)

	starts := make([]time.Time, 0, len(weeks))
	for start := range weeks {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	buckets := make([]WeekBucket, 0, len(starts))
	for _, start := range starts {
		days := weeks[start]
		dates := make([]string, 0, len(days))
		for date := range days {
			dates = append(dates, date)
		}
		sort.Strings(dates)

		bucket := WeekBucket{
			StartOfWeek: start.Format(models.DateLayout),
			Days:        make([]DayEntry, 0, len(dates)),
		}
		for _, date := range dates {
			bucket.Days = append(bucket.Days, DayEntry{Date: date, Scores: days[date]})
		}
		buckets = append(buckets, bucket)
	}
	return buckets
}

// TodayIn returns the current calendar date in the named IANA timezone.
// An empty name means UTC. "Local" names the server's zone, not the
// caller's, and is rejected.
func TodayIn(timezone string, now time.Time) (time.Time, error) {
	if timezone == "Local" {
		return time.Time{}, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, ErrInvalidTimezone
	}
	return calendarDate(now.In(loc)), nil
}

// calendarDate drops the clock and zone of t, keeping its local date.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type ScoreService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewScoreService(db *gorm.DB, log *zap.Logger) *ScoreService {
	return &ScoreService{db: db, log: log}
}

// GetScores returns the weekly calendar for userIDs. startDate, when set,
// hides scores dated before it and anchors gap filling at its week.
func (s *ScoreService) GetScores(ctx context.Context, userIDs []uint, startDate *time.Time, today time.Time) ([]WeekBucket, error) {
	var rows []ScoreRow
	if len(userIDs) > 0 {
		q := s.db.WithContext(ctx).
			Table("scores").
			Select("users.username, scores.date, scores.score").
			Joins("JOIN users ON users.id = scores.user_id").
			Where("scores.user_id IN ?", userIDs)
		if startDate != nil {
			q = q.Where("scores.date >= ?", calendarDate(startDate.UTC()).Format(models.DateLayout))
		}
		if err := q.Order("scores.date ASC, users.username ASC").Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load scores: %w", err)
		}
	}
	return AggregateWeeks(rows, startDate, today), nil
}

// AddScore records or replaces the user's score for date.
func (s *ScoreService) AddScore(ctx context.Context, userID uint, date string, score int, today time.Time) error {
	if !models.ValidScore(score) {
		return ErrInvalidScore
	}
	if err := validateScoreDate(date, today); err != nil {
		return err
	}

	row := models.Score{UserID: userID, Date: date, Score: score}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}

	s.log.Debug("score recorded", zap.Uint("user_id", userID), zap.String("date", date), zap.Int("score", score))
	return nil
}

// DeleteScore removes the user's score for date. Removing a score that does
// not exist succeeds.
func (s *ScoreService) DeleteScore(ctx context.Context, userID uint, date string, today time.Time) error {
	if err := validateScoreDate(date, today); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Delete(&models.Score{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete score: %w", err)
	}

	s.log.Debug("score deleted", zap.Uint("user_id", userID), zap.String("date", date))
	return nil
}

func validateScoreDate(date string, today time.Time) error {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return ErrInvalidDate
	}
	if d.After(calendarDate(today)) {
		return ErrFutureDate
	}
	return nil
}
