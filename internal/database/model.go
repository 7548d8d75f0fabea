package database

import (
	"time"
)

// CacheEntry is one immutable rendered image in the disk cache. Entries are
// written once; eviction deletes whole rows.
type CacheEntry struct {
	Key         string `gorm:"primaryKey;type:text"`
	ContentType string `gorm:"type:text"`
	Size        int64
	Data        []byte `gorm:"type:blob"`
	CreatedAt   time.Time
}
