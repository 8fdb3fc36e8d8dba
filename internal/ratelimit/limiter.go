// Package ratelimit implements the fixed-window "key → attempts in window"
// counter used to throttle sensitive endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidInput = errors.New("rate limit key, max and window are required")

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the current window; set when the request is denied.
	RetryAfter time.Duration
	Count      int
}

// Store counts one hit for key and reports the decision atomically.
type Store interface {
	Hit(ctx context.Context, key string, max int, window time.Duration) (Decision, error)
}

// Limiter validates inputs and delegates to the configured backend.
type Limiter struct {
	store Store
}

func New(store Store) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limit store required")
	}
	return &Limiter{store: store}, nil
}

// Check counts one request against key and reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" || max <= 0 || window <= 0 {
		return Decision{}, ErrInvalidInput
	}
	decision, err := l.store.Hit(ctx, key, max, window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return decision, nil
}

// Key joins an action and identifier into a counter key such as "login:ip:10.0.0.1".
func Key(action string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, strings.ToLower(strings.TrimSpace(action)))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

func decide(count, max int, remainingWindow time.Duration) Decision {
	d := Decision{Count: count, Allowed: count <= max}
	if d.Allowed {
		d.Remaining = max - count
		return d
	}
	if remainingWindow <= 0 {
		remainingWindow = time.Second
	}
	d.RetryAfter = remainingWindow
	return d
}
