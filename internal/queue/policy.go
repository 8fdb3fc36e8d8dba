package queue

import (
	"time"

	"github.com/mutirao/castracao-backend/pkg/config"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffMax  = 30 * time.Minute
	DefaultStaleAfter  = 10 * time.Minute
)

// Policy governs retries and crash recovery for claimed messages.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// StaleAfter is how long a message may stay in sending before another claimer may take it.
	StaleAfter time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BackoffBase: DefaultBackoffBase,
		BackoffMax:  DefaultBackoffMax,
		StaleAfter:  DefaultStaleAfter,
	}
}

// PolicyFromConfig builds the policy from the dispatch configuration section.
func PolicyFromConfig(cfg config.DispatchConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		StaleAfter:  cfg.StaleAfter,
	}.withDefaults()
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = def.BackoffMax
	}
	if p.BackoffMax < p.BackoffBase {
		p.BackoffMax = p.BackoffBase
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = def.StaleAfter
	}
	return p
}

// Backoff returns the delay before the next attempt once attempts failures were recorded:
// base, 2*base, 4*base ... capped at BackoffMax.
func (p Policy) Backoff(attempts int) time.Duration {
	p = p.withDefaults()
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.BackoffMax || delay <= 0 {
			return p.BackoffMax
		}
	}
	if delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}
