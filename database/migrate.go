// database/migrate.go - Database migration runner
package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"wordlewise/models"
)

// RunMigrations creates or updates every table and index.
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Score{},
		&models.Group{},
		&models.GroupMember{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}

// createIndexes adds the read-path indexes AutoMigrate does not derive
// from struct tags.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_scores_date ON scores(date)",
		"CREATE INDEX IF NOT EXISTS idx_group_members_role ON group_members(group_id, role)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
