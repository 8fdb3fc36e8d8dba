package dispatch

import (
	"errors"
	"time"

	"github.com/mutirao/castracao-backend/pkg/config"
)

const (
	defaultBatchCeiling    = 10
	defaultMinDelay        = 800 * time.Millisecond
	defaultMaxDelay        = 3 * time.Second
	defaultRetentionWindow = 30 * 24 * time.Hour
	defaultSendTimeout     = 15 * time.Second
)

// Config is the explicit worker configuration record. MaxAttempts must match the
// queue policy, which decides retirement; zero adopts the policy value.
type Config struct {
	BatchCeiling    int
	MinDelay        time.Duration
	MaxDelay        time.Duration
	MaxAttempts     int
	RetentionWindow time.Duration
	// MessageTTL expires queued messages older than this; zero disables expiry.
	MessageTTL  time.Duration
	SendTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchCeiling:    defaultBatchCeiling,
		MinDelay:        defaultMinDelay,
		MaxDelay:        defaultMaxDelay,
		RetentionWindow: defaultRetentionWindow,
		SendTimeout:     defaultSendTimeout,
	}
}

// ConfigFrom maps the environment-backed dispatch section onto the worker record.
func ConfigFrom(cfg config.DispatchConfig) Config {
	return Config{
		BatchCeiling:    cfg.BatchCeiling,
		MinDelay:        cfg.MinDelay,
		MaxDelay:        cfg.MaxDelay,
		MaxAttempts:     cfg.MaxAttempts,
		RetentionWindow: cfg.RetentionWindow,
		MessageTTL:      cfg.MessageTTL,
		SendTimeout:     cfg.SendTimeout,
	}
}

func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.BatchCeiling <= 0 {
		c.BatchCeiling = def.BatchCeiling
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = def.RetentionWindow
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.MaxAttempts < 0 {
		return c, errors.New("max attempts must not be negative")
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return c, errors.New("pacing delays must be non-negative")
	}
	if c.MaxDelay < c.MinDelay {
		return c, errors.New("max delay must be greater than or equal to min delay")
	}
	return c, nil
}
