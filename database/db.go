// database/db.go - Database connection (PostgreSQL or SQLite)
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wordlewise/config"
)

// Open connects to the database named by cfg.URL and configures the pool.
// The caller owns the returned handle and closes it with Close.
func Open(cfg config.DatabaseConfig, production bool, log *zap.Logger) (*gorm.DB, error) {
	dialector, sqliteBacked := dialectorFor(cfg.URL)

	logLevel := logger.Info
	if production {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if sqliteBacked {
		// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	log.Info("database connected",
		zap.String("dialect", db.Dialector.Name()),
	)
	return db, nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func dialectorFor(url string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(withForeignKeys(strings.TrimPrefix(url, "sqlite://"))), true
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"):
		return sqlite.Open(withForeignKeys(url)), true
	default:
		return postgres.Open(url), false
	}
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}
