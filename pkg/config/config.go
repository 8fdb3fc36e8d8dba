package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Dispatch     DispatchConfig
	Gateway      GatewayConfig
	Campaign     CampaignConfig
	Cron         CronConfig
	Webhook      WebhookConfig
	OTP          OTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.validate(); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MUTIRAO_APP_ENV" required:"true"`
	Port         string `envconfig:"MUTIRAO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MUTIRAO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MUTIRAO_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"MUTIRAO_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MUTIRAO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MUTIRAO_DB_DSN"`
	Driver string `envconfig:"MUTIRAO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MUTIRAO_DB_HOST"`
	LegacyPort     int    `envconfig:"MUTIRAO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MUTIRAO_DB_USER"`
	LegacyPassword string `envconfig:"MUTIRAO_DB_PASSWORD"`
	LegacyName     string `envconfig:"MUTIRAO_DB_NAME"`
	LegacySSLMode  string `envconfig:"MUTIRAO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MUTIRAO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MUTIRAO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MUTIRAO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MUTIRAO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"MUTIRAO_REDIS_URL"`
	Address      string        `envconfig:"MUTIRAO_REDIS_ADDR"`
	Password     string        `envconfig:"MUTIRAO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MUTIRAO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MUTIRAO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MUTIRAO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MUTIRAO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MUTIRAO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MUTIRAO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"MUTIRAO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MUTIRAO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MUTIRAO_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MUTIRAO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MUTIRAO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MUTIRAO_ARGON_PARALLELISM" default:"2"`
}

// RateLimitConfig holds the fixed-window quotas guarding mutation endpoints.
type RateLimitConfig struct {
	Backend string `envconfig:"MUTIRAO_RATE_LIMIT_BACKEND" default:"db"`

	LoginWindow          time.Duration `envconfig:"MUTIRAO_RATE_LIMIT_LOGIN_WINDOW" default:"15m"`
	LoginIdentifierLimit int           `envconfig:"MUTIRAO_RATE_LIMIT_LOGIN_IDENTIFIER_LIMIT" default:"5"`
	LoginIPLimit         int           `envconfig:"MUTIRAO_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`

	OTPVerifyWindow time.Duration `envconfig:"MUTIRAO_RATE_LIMIT_OTP_VERIFY_WINDOW" default:"15m"`
	OTPVerifyLimit  int           `envconfig:"MUTIRAO_RATE_LIMIT_OTP_VERIFY_LIMIT" default:"5"`

	OTPRequestWindow time.Duration `envconfig:"MUTIRAO_RATE_LIMIT_OTP_REQUEST_WINDOW" default:"1h"`
	OTPRequestLimit  int           `envconfig:"MUTIRAO_RATE_LIMIT_OTP_REQUEST_LIMIT" default:"5"`

	RegisterWindow time.Duration `envconfig:"MUTIRAO_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterLimit  int           `envconfig:"MUTIRAO_RATE_LIMIT_REGISTER_LIMIT" default:"10"`

	// TrustedProxies lists the CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `envconfig:"MUTIRAO_TRUSTED_PROXIES"`
}

func (r RateLimitConfig) validate() error {
	for _, raw := range r.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(raw); err == nil {
			continue
		}
		if net.ParseIP(raw) == nil {
			return fmt.Errorf("%s: invalid entry %q", EnvTrustedProxies, raw)
		}
	}
	return nil
}

// UsesRedis reports whether counters live in redis instead of the relational store.
func (r RateLimitConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Backend), RateLimitBackendRedis)
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MUTIRAO_AUTO_MIGRATE" default:"false"`
}

// DispatchConfig configures the outbound message worker and the queue retry policy.
type DispatchConfig struct {
	BatchCeiling    int           `envconfig:"MUTIRAO_DISPATCH_BATCH_CEILING" default:"10"`
	MinDelay        time.Duration `envconfig:"MUTIRAO_DISPATCH_MIN_DELAY" default:"800ms"`
	MaxDelay        time.Duration `envconfig:"MUTIRAO_DISPATCH_MAX_DELAY" default:"3s"`
	MaxAttempts     int           `envconfig:"MUTIRAO_DISPATCH_MAX_ATTEMPTS" default:"3"`
	RetentionWindow time.Duration `envconfig:"MUTIRAO_DISPATCH_RETENTION_WINDOW" default:"720h"`
	BackoffBase     time.Duration `envconfig:"MUTIRAO_DISPATCH_BACKOFF_BASE" default:"30s"`
	BackoffMax      time.Duration `envconfig:"MUTIRAO_DISPATCH_BACKOFF_MAX" default:"30m"`
	StaleAfter      time.Duration `envconfig:"MUTIRAO_DISPATCH_STALE_AFTER" default:"10m"`
	MessageTTL      time.Duration `envconfig:"MUTIRAO_DISPATCH_MESSAGE_TTL" default:"72h"`
	SendTimeout     time.Duration `envconfig:"MUTIRAO_DISPATCH_SEND_TIMEOUT" default:"15s"`
	Exclusive       bool          `envconfig:"MUTIRAO_DISPATCH_EXCLUSIVE" default:"true"`
	LockTTL         time.Duration `envconfig:"MUTIRAO_DISPATCH_LOCK_TTL" default:"5m"`
	Interval        time.Duration `envconfig:"MUTIRAO_DISPATCH_INTERVAL" default:"1m"`
}

func (d DispatchConfig) validate() error {
	if d.MinDelay < 0 || d.MaxDelay < 0 {
		return fmt.Errorf("dispatch delays must be non-negative")
	}
	if d.MaxDelay < d.MinDelay {
		return fmt.Errorf("%s must be greater than or equal to %s", EnvDispatchMaxDelay, EnvDispatchMinDelay)
	}
	if d.BatchCeiling <= 0 {
		return fmt.Errorf("%s must be positive", EnvDispatchBatchCeiling)
	}
	if d.MaxAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvDispatchMaxAttempts)
	}
	return nil
}

// GatewayConfig describes the outbound messaging provider.
type GatewayConfig struct {
	BaseURL      string  `envconfig:"MUTIRAO_GATEWAY_BASE_URL"`
	Token        string  `envconfig:"MUTIRAO_GATEWAY_TOKEN"`
	MaxPerSecond float64 `envconfig:"MUTIRAO_GATEWAY_MAX_PER_SECOND" default:"1"`
	DryRun       bool    `envconfig:"MUTIRAO_GATEWAY_DRY_RUN" default:"false"`
}

// CampaignConfig controls capacity gating.
type CampaignConfig struct {
	CitiesFile      string `envconfig:"MUTIRAO_CAMPAIGN_CITIES_FILE"`
	StrictAdmission bool   `envconfig:"MUTIRAO_CAMPAIGN_STRICT_ADMISSION" default:"true"`
}

type CronConfig struct {
	Secret string `envconfig:"MUTIRAO_CRON_SECRET" required:"true"`
}

type WebhookConfig struct {
	Secret         string        `envconfig:"MUTIRAO_WEBHOOK_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"MUTIRAO_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type OTPConfig struct {
	TTL         time.Duration `envconfig:"MUTIRAO_OTP_TTL" default:"10m"`
	Length      int           `envconfig:"MUTIRAO_OTP_LENGTH" default:"6"`
	MaxAttempts int           `envconfig:"MUTIRAO_OTP_MAX_ATTEMPTS" default:"5"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
