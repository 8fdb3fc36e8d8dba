package config

// EnvPrefix is passed to envconfig; every field carries an explicit key so it is only a fallback.
const EnvPrefix = "MUTIRAO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	RateLimitBackendDB    = "db"
	RateLimitBackendRedis = "redis"
)

const (
	EnvAppEnv     = "MUTIRAO_APP_ENV"
	EnvPort       = "MUTIRAO_APP_PORT"
	EnvDBDSN      = "MUTIRAO_DB_DSN"
	EnvDBDriver   = "MUTIRAO_DB_DRIVER"
	EnvDBHost     = "MUTIRAO_DB_HOST"
	EnvDBUser     = "MUTIRAO_DB_USER"
	EnvDBName     = "MUTIRAO_DB_NAME"
	EnvRedisURL   = "MUTIRAO_REDIS_URL"
	EnvJWTSecret  = "MUTIRAO_JWT_SECRET"
	EnvJWTIssuer  = "MUTIRAO_JWT_ISSUER"
	EnvCronSecret = "MUTIRAO_CRON_SECRET"

	EnvRateLimitBackend = "MUTIRAO_RATE_LIMIT_BACKEND"
	EnvTrustedProxies   = "MUTIRAO_TRUSTED_PROXIES"

	EnvDispatchBatchCeiling = "MUTIRAO_DISPATCH_BATCH_CEILING"
	EnvDispatchMinDelay     = "MUTIRAO_DISPATCH_MIN_DELAY"
	EnvDispatchMaxDelay     = "MUTIRAO_DISPATCH_MAX_DELAY"
	EnvDispatchMaxAttempts  = "MUTIRAO_DISPATCH_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
