package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"imgforge/internal/database"
	"imgforge/pkg/utils"
)

// diskBackend keeps rendered images in a SQLite block store so the cache
// survives process restarts. The entry-count bound is enforced on write by
// deleting the oldest rows; size management is best-effort: the store
// footprint is logged once when the store is opened.
type diskBackend struct {
	db       *gorm.DB
	capacity int
}

func newDisk(path string, capacity int) (*diskBackend, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	d := &diskBackend{db: db, capacity: capacity}
	d.logFootprint()
	return d, nil
}

func (d *diskBackend) Name() string { return "disk" }

func (d *diskBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var row database.CacheEntry
	err := d.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &Entry{
		Bytes:       row.Data,
		ContentType: row.ContentType,
		CreatedAt:   row.CreatedAt,
	}, true, nil
}

func (d *diskBackend) Put(ctx context.Context, key string, entry *Entry) error {
	row := database.CacheEntry{
		Key:         key,
		ContentType: entry.ContentType,
		Size:        int64(len(entry.Bytes)),
		Data:        entry.Bytes,
		CreatedAt:   entry.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return err
	}

	d.prune(ctx)
	return nil
}

// prune removes the oldest entries beyond the capacity bound. New keys,
// cache_buster churn included, are treated uniformly: strictly by age.
func (d *diskBackend) prune(ctx context.Context) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&database.CacheEntry{}).Count(&count).Error; err != nil {
		log.Warn().Err(err).Msg("disk cache count failed, skipping prune")
		return
	}
	excess := count - int64(d.capacity)
	if excess <= 0 {
		return
	}

	err := d.db.WithContext(ctx).Exec(
		"DELETE FROM cache_entries WHERE key IN (SELECT key FROM cache_entries ORDER BY created_at ASC LIMIT ?)",
		excess,
	).Error
	if err != nil {
		log.Warn().Err(err).Msg("disk cache prune failed")
		return
	}
	log.Debug().Int64("evicted", excess).Msg("disk cache pruned to capacity")
}

func (d *diskBackend) logFootprint() {
	var count, totalSize int64
	row := d.db.Model(&database.CacheEntry{}).
		Select("count(*), IFNULL(SUM(size), 0)").Row()
	if err := row.Scan(&count, &totalSize); err != nil {
		return
	}
	log.Info().
		Int64("entries", count).
		Str("size", utils.FormatBytes(totalSize)).
		Msg("disk cache recovered")
}
