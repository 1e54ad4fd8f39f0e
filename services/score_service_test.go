package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wordlewise/models"
	"wordlewise/testutil"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, s)
	require.NoError(t, err)
	return d
}

func weekStarts(buckets []WeekBucket) []string {
	starts := make([]string, len(buckets))
	for i, b := range buckets {
		starts[i] = b.StartOfWeek
	}
	return starts
}

func TestStartOfWeek(t *testing.T) {
	cases := map[string]string{
		"2023-01-16": "2023-01-16", // Monday
		"2023-01-15": "2023-01-09", // Sunday
		"2023-01-01": "2022-12-26",
		"2023-01-18": "2023-01-16",
	}
	for in, want := range cases {
		assert.Equal(t, want, StartOfWeek(date(t, in)).Format(models.DateLayout), in)
	}
}

func TestAggregateWeeksFillsGaps(t *testing.T) {
	rows := []ScoreRow{
		{Username: "alice", Date: "2023-01-15", Score: 3},
		{Username: "alice", Date: "2023-01-01", Score: 4},
	}

	buckets := AggregateWeeks(rows, nil, date(t, "2023-01-16"))

	want := []string{"2022-12-26", "2023-01-02", "2023-01-09", "2023-01-16"}
	if diff := cmp.Diff(want, weekStarts(buckets)); diff != "" {
		t.Fatalf("week starts mismatch (-want +got):\n%s", diff)
	}
	for _, day := range buckets[1].Days {
		assert.Empty(t, day.Scores, day.Date)
	}
	assert.Equal(t, DayScores{"alice": 4}, buckets[0].Days[6].Scores)
	assert.Equal(t, "2023-01-01", buckets[0].Days[6].Date)
	assert.Equal(t, DayScores{"alice": 3}, buckets[2].Days[6].Scores)
}

func TestAggregateWeeksEmptyReturnsCurrentWeek(t *testing.T) {
	buckets := AggregateWeeks(nil, nil, date(t, "2023-01-18"))

	require.Len(t, buckets, 1)
	assert.Equal(t, "2023-01-16", buckets[0].StartOfWeek)
	require.Len(t, buckets[0].Days, 7)
	assert.Equal(t, "2023-01-16", buckets[0].Days[0].Date)
	assert.Equal(t, "2023-01-22", buckets[0].Days[6].Date)
}

func TestAggregateWeeksCutoffAnchorsFirstWeek(t *testing.T) {
	cutoff := date(t, "2023-01-04")
	buckets := AggregateWeeks(nil, &cutoff, date(t, "2023-01-20"))

	want := []string{"2023-01-02", "2023-01-09", "2023-01-16"}
	if diff := cmp.Diff(want, weekStarts(buckets)); diff != "" {
		t.Fatalf("week starts mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateWeeksStrictlyOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	users := []string{"alice", "bob", "carol", "dave"}
	base := date(t, "2022-06-01")

	for trial := 0; trial < 50; trial++ {
		var rows []ScoreRow
		for i := 0; i < rng.Intn(60); i++ {
			rows = append(rows, ScoreRow{
				Username: users[rng.Intn(len(users))],
				Date:     base.AddDate(0, 0, rng.Intn(200)).Format(models.DateLayout),
				Score:    1 + rng.Intn(6),
			})
		}

		buckets := AggregateWeeks(rows, nil, base.AddDate(0, 0, 210))
		require.NotEmpty(t, buckets)
		for i, b := range buckets {
			if i > 0 {
				require.Less(t, buckets[i-1].StartOfWeek, b.StartOfWeek)
				prev := date(t, buckets[i-1].StartOfWeek)
				require.Equal(t, prev.AddDate(0, 0, 7).Format(models.DateLayout), b.StartOfWeek, "gap before %s", b.StartOfWeek)
			}
			require.Len(t, b.Days, 7)
			require.Equal(t, b.StartOfWeek, b.Days[0].Date)
			for j := 1; j < len(b.Days); j++ {
				require.Less(t, b.Days[j-1].Date, b.Days[j].Date)
			}
		}
	}
}

func TestWeekBucketJSON(t *testing.T) {
	buckets := AggregateWeeks([]ScoreRow{{Username: "will", Date: "2023-01-17", Score: 2}}, nil, date(t, "2023-01-17"))
	require.Len(t, buckets, 1)

	out, err := json.Marshal(buckets[0])
	require.NoError(t, err)
	assert.Equal(t,
		`{"start_of_week":"2023-01-16","data":{"2023-01-16":{},"2023-01-17":{"will":2},"2023-01-18":{},`+
			`"2023-01-19":{},"2023-01-20":{},"2023-01-21":{},"2023-01-22":{}}}`,
		string(out))
}

func TestTodayIn(t *testing.T) {
	now := time.Date(2023, 1, 16, 3, 0, 0, 0, time.UTC)

	today, err := TodayIn("America/New_York", now)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-15", today.Format(models.DateLayout))

	today, err = TodayIn("", now)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-16", today.Format(models.DateLayout))

	_, err = TodayIn("Mars/Olympus_Mons", now)
	require.ErrorIs(t, err, ErrInvalidTimezone)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = TodayIn("Local", now)
	require.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestAddScoreUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := NewScoreService(db, zap.NewNop())
	ctx := context.Background()
	user := fx.CreateUser("alice")
	today := date(t, "2023-01-16")

	require.NoError(t, svc.AddScore(ctx, user.ID, "2023-01-16", 5, today))
	require.NoError(t, svc.AddScore(ctx, user.ID, "2023-01-16", 2, today))

	var rows []models.Score
	require.NoError(t, db.Where("user_id = ? AND date = ?", user.ID, "2023-01-16").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Score)
}

func TestAddScoreValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewScoreService(db, zap.NewNop())
	ctx := context.Background()
	today := date(t, "2023-01-16")

	tests := []struct {
		name  string
		date  string
		score int
		want  error
	}{
		{"zero", "2023-01-10", 0, ErrInvalidScore},
		{"seven", "2023-01-10", 7, ErrInvalidScore},
		{"bad date", "16/01/2023", 3, ErrInvalidDate},
		{"future", "2023-01-17", 3, ErrFutureDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AddScore(ctx, 1, tt.date, tt.score, today)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	require.NoError(t, svc.AddScore(ctx, 1, "2023-01-16", models.FailedScore, today))
}

func TestDeleteScore(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := NewScoreService(db, zap.NewNop())
	ctx := context.Background()
	user := fx.CreateUser("")
	today := date(t, "2023-01-16")
	fx.CreateScore(user.ID, "2023-01-15", 4)

	require.NoError(t, svc.DeleteScore(ctx, user.ID, "2023-01-15", today))
	require.NoError(t, svc.DeleteScore(ctx, user.ID, "2023-01-15", today))

	var count int64
	require.NoError(t, db.Model(&models.Score{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetScoresScoping(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := NewScoreService(db, zap.NewNop())
	ctx := context.Background()
	alice := fx.CreateUser("alice")
	bob := fx.CreateUser("bob")
	today := date(t, "2023-01-16")

	fx.CreateScore(alice.ID, "2023-01-02", 3)
	fx.CreateScore(alice.ID, "2023-01-10", 4)
	fx.CreateScore(bob.ID, "2023-01-11", 5)

	personal, err := svc.GetScores(ctx, []uint{alice.ID}, nil, today)
	require.NoError(t, err)
	for _, week := range personal {
		for _, day := range week.Days {
			assert.NotContains(t, day.Scores, "bob")
		}
	}
	assert.Equal(t, []string{"2023-01-02", "2023-01-09", "2023-01-16"}, weekStarts(personal))

	cutoff := date(t, "2023-01-09")
	group, err := svc.GetScores(ctx, []uint{alice.ID, bob.ID}, &cutoff, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-01-09", "2023-01-16"}, weekStarts(group))
	assert.Equal(t, DayScores{"alice": 4}, group[0].Days[1].Scores)
	assert.Equal(t, DayScores{"bob": 5}, group[0].Days[2].Scores)

	none, err := svc.GetScores(ctx, nil, nil, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-01-16"}, weekStarts(none))
}
