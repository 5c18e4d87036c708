package config

const (
	EnvPrefix = "READCYCLE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultSQLiteDSN = "file:readcycle.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv   = "READCYCLE_APP_ENV"
	EnvPort     = "READCYCLE_APP_PORT"
	EnvLogLevel = "READCYCLE_LOG_LEVEL"

	EnvDBDSN  = "READCYCLE_DB_DSN"
	EnvDBHost = "READCYCLE_DB_HOST"
	EnvDBUser = "READCYCLE_DB_USER"
	EnvDBName = "READCYCLE_DB_NAME"

	EnvRedisURL  = "READCYCLE_REDIS_URL"
	EnvRedisAddr = "READCYCLE_REDIS_ADDR"

	EnvJWTSecret = "READCYCLE_JWT_SECRET"
	EnvJWTIssuer = "READCYCLE_JWT_ISSUER"

	EnvUseSQLite = "READCYCLE_USE_SQLITE"

	EnvLoansLockTTL          = "READCYCLE_LOANS_LOCK_TTL"
	EnvLoansLockWait         = "READCYCLE_LOANS_LOCK_WAIT"
	EnvLoansBorrowsPerMinute = "READCYCLE_LOANS_BORROWS_PER_MINUTE"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
