// Package testutil provides isolated databases and fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"wordlewise/config"
	"wordlewise/database"
	"wordlewise/models"
)

// Password is the plain-text password of every user created by CreateUser.
const Password = "password123"

// NewDB opens a private in-memory SQLite database with the full schema.
// It is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(config.DatabaseConfig{URL: dsn}, true, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// Fixtures creates rows directly, bypassing services, with reproducible
// fake names.
type Fixtures struct {
	t     *testing.T
	db    *gorm.DB
	faker *gofakeit.Faker
	hash  string
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	t.Helper()
	// MinCost keeps fixture creation fast; production uses DefaultCost
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash fixture password: %v", err)
	}
	return &Fixtures{t: t, db: db, faker: gofakeit.New(42), hash: string(hash)}
}

// CreateUser inserts a user. An empty username gets a fake one.
func (f *Fixtures) CreateUser(username string) *models.User {
	f.t.Helper()
	if username == "" {
		username = f.username()
	}
	user := &models.User{
		Username: username,
		Forename: truncate(f.faker.FirstName(), 10),
		Password: f.hash,
	}
	if err := f.db.Create(user).Error; err != nil {
		f.t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}

// CreateScore inserts a score row for date (YYYY-MM-DD).
func (f *Fixtures) CreateScore(userID uint, date string, score int) {
	f.t.Helper()
	row := &models.Score{UserID: userID, Date: date, Score: score}
	if err := f.db.WithContext(context.Background()).Create(row).Error; err != nil {
		f.t.Fatalf("failed to create score: %v", err)
	}
}

func (f *Fixtures) username() string {
	for {
		name := strings.ToLower(truncate(f.faker.Username(), 8)) + fmt.Sprintf("%02d", f.faker.Number(0, 99))
		var count int64
		f.db.Model(&models.User{}).Where("username = ?", name).Count(&count)
		if count == 0 {
			return name
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
