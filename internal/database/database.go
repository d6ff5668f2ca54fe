package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trade-journal-go/internal/config"
	"trade-journal-go/internal/models"
)

// Open connects to the configured database and returns the shared connection
// pool. Both Postgres and SQLite are supported; the driver is picked from the
// DSN prefix. The pool is constructed once at startup and passed by reference
// into the ledger components.
func Open(cfg *config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		dialector = postgres.Open(cfg.DSN)
	} else {
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return db, nil
}

// Schema is proof that EnsureSchema ran against the pool a component is
// constructed with. Requiring one in the ledger constructors makes schema
// readiness an explicit dependency instead of a process-wide flag toggled as
// a side effect of the first request.
type Schema struct {
	ready bool
}

// EnsureSchema migrates the account and trade tables. It is idempotent and
// intended to run once at process start.
func EnsureSchema(db *gorm.DB) (*Schema, error) {
	if err := db.AutoMigrate(&models.Account{}, &models.Trade{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Schema{ready: true}, nil
}
