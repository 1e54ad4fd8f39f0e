package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wordlewise/models"
)

const seedPassword = "password"

// noPlay marks a day the player skipped.
const noPlay = 0

type seedPlayer struct {
	username string
	forename string
	weights  []float32
}

var (
	scoreOptions = []any{1, 2, 3, 4, 5, 6, noPlay}

	seedPlayers = []seedPlayer{
		{"wjrm500", "Will", []float32{1, 5, 30, 40, 15, 5, 4}},
		{"kjem500", "Kate", []float32{2, 8, 35, 35, 15, 3, 2}},
		{"testuser", "Tester", []float32{1, 4, 25, 40, 20, 5, 5}},
	}
)

type seedReport struct {
	Groups []models.Group
	Scores map[string]int
}

// seed wipes every table and fills it with sample players, their groups and
// days of weighted random scores ending today.
func (tk *toolkit) seed(ctx context.Context, faker *gofakeit.Faker, today time.Time, days int) (*seedReport, error) {
	if err := tk.clear(ctx); err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(seedPlayers))
	for _, p := range seedPlayers {
		u, err := tk.users.Register(ctx, p.username, seedPassword, p.forename)
		if err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", p.username, err)
		}
		users = append(users, u)
	}

	report := &seedReport{Scores: map[string]int{}}

	pair, err := tk.groups.CreateGroup(ctx, "Will & Kate", users[0].ID, true)
	if err != nil {
		return nil, err
	}
	if _, err := tk.groups.JoinGroup(ctx, pair.InviteCode, users[1].ID); err != nil {
		return nil, err
	}
	everyone, err := tk.groups.CreateGroup(ctx, "All Users", users[2].ID, false)
	if err != nil {
		return nil, err
	}
	for _, u := range users[:2] {
		if _, err := tk.groups.JoinGroup(ctx, everyone.InviteCode, u.ID); err != nil {
			return nil, err
		}
	}
	report.Groups = []models.Group{*pair, *everyone}

	start := today.AddDate(0, 0, -days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(models.DateLayout)
		for i, p := range seedPlayers {
			picked, err := faker.Weighted(scoreOptions, p.weights)
			if err != nil {
				return nil, err
			}
			score := picked.(int)
			if score == noPlay {
				continue
			}
			if err := tk.scores.AddScore(ctx, users[i].ID, date, score, today); err != nil {
				return nil, err
			}
			report.Scores[p.username]++
		}
	}

	tk.log.Info("database seeded",
		zap.Int("users", len(users)),
		zap.Int("groups", len(report.Groups)),
		zap.Int("days", days),
	)
	return report, nil
}

func (tk *toolkit) clear(ctx context.Context) error {
	return tk.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Score{}, &models.GroupMember{}, &models.Group{}, &models.User{}} {
			if err := tx.Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", model, err)
			}
		}
		return nil
	})
}
