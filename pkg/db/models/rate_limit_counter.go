package models

import "time"

// RateLimitCounter is the durable fixed-window counter for one key.
// Windows are stored as unix milliseconds so the upsert arithmetic is dialect neutral.
type RateLimitCounter struct {
	Key           string    `gorm:"column:counter_key;primaryKey"`
	WindowStartMs int64     `gorm:"column:window_start_ms;not null"`
	Count         int       `gorm:"column:count;not null"`
	MaxCount      int       `gorm:"column:max_count;not null"`
	WindowMs      int64     `gorm:"column:window_ms;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (RateLimitCounter) TableName() string { return "rate_limit_counters" }
