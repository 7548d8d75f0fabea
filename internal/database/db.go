// Package database owns the SQLite block store backing the disk cache tier.
// The store survives restarts; its layout is private to this package.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open initializes the SQLite connection with WAL mode and a single-writer
// pool, creating the directory and schema as needed.
func Open(dir string) (*gorm.DB, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	dbPath := filepath.Join(dir, "imgforge-cache.db")

	// WAL mode enables concurrent readers and a single writer without
	// locking the entire file; busy_timeout makes the driver wait for the
	// lock instead of failing immediately.
	dsn := fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-20000",
		dbPath,
	)

	gormConfig := &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("cache database connection failed: %w", err)
	}

	configurePool(db)

	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		return nil, fmt.Errorf("cache schema migration failed: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at ON cache_entries(created_at);").Error; err != nil {
		log.Warn().Err(err).Msg("failed to create cache index")
	}

	return db, nil
}

func configurePool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	// Limit concurrency to prevent disk I/O throttling on the single SQLite file.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
}
