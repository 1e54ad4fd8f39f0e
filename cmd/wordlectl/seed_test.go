package main

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wordlewise/config"
	"wordlewise/models"
	"wordlewise/testutil"
)

func TestSeed(t *testing.T) {
	db := testutil.NewDB(t)
	tk := newToolkit(config.Default(), db, zap.NewNop())
	ctx := context.Background()
	today := time.Date(2023, 1, 16, 0, 0, 0, 0, time.UTC)

	// stale rows must be wiped
	testutil.NewFixtures(t, db).CreateUser("stale")

	report, err := tk.seed(ctx, gofakeit.New(7), today, 30)
	require.NoError(t, err)
	require.Len(t, report.Groups, 2)

	var users, groups, members, scores int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Group{}).Count(&groups).Error)
	require.NoError(t, db.Model(&models.GroupMember{}).Count(&members).Error)
	require.NoError(t, db.Model(&models.Score{}).Count(&scores).Error)
	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 2, groups)
	assert.EqualValues(t, 5, members)
	assert.LessOrEqual(t, scores, int64(31*3))

	total := 0
	for _, n := range report.Scores {
		total += n
	}
	assert.EqualValues(t, scores, total)

	_, err = tk.users.Login(ctx, "wjrm500", seedPassword)
	require.NoError(t, err)

	// seeding twice starts over
	_, err = tk.seed(ctx, gofakeit.New(7), today, 30)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 3, users)
}
