package ratelimit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// The whole read-modify-write is one statement: the row lock taken by the
// conflicting insert serializes concurrent hits on the same key. The count
// saturates at max+1 so a blocked key does not grow without bound.
const hitCounterSQL = `
INSERT INTO rate_limit_counters (counter_key, window_start_ms, count, max_count, window_ms, updated_at)
VALUES (@key, @now, 1, @max, @window, @updated_at)
ON CONFLICT (counter_key) DO UPDATE SET
	count = CASE
		WHEN excluded.window_start_ms - rate_limit_counters.window_start_ms >= excluded.window_ms THEN 1
		WHEN rate_limit_counters.count <= excluded.max_count THEN rate_limit_counters.count + 1
		ELSE rate_limit_counters.count
	END,
	window_start_ms = CASE
		WHEN excluded.window_start_ms - rate_limit_counters.window_start_ms >= excluded.window_ms THEN excluded.window_start_ms
		ELSE rate_limit_counters.window_start_ms
	END,
	max_count = excluded.max_count,
	window_ms = excluded.window_ms,
	updated_at = excluded.updated_at
RETURNING count, window_start_ms`

// DBStore keeps counters in the rate_limit_counters table.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBStore(db *gorm.DB, now func() time.Time) *DBStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DBStore{db: db, now: now}
}

func (s *DBStore) Hit(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	now := s.now()
	nowMs := now.UnixMilli()

	var row struct {
		Count         int   `gorm:"column:count"`
		WindowStartMs int64 `gorm:"column:window_start_ms"`
	}
	err := s.db.WithContext(ctx).Raw(hitCounterSQL, map[string]any{
		"key":        key,
		"now":        nowMs,
		"max":        max,
		"window":     window.Milliseconds(),
		"updated_at": now,
	}).Scan(&row).Error
	if err != nil {
		return Decision{}, fmt.Errorf("upsert counter: %w", err)
	}

	resetIn := time.Duration(row.WindowStartMs+window.Milliseconds()-nowMs) * time.Millisecond
	return decide(row.Count, max, resetIn), nil
}
