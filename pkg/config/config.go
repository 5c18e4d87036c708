package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Loans        LoansConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Loans.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string   `envconfig:"READCYCLE_APP_ENV" required:"true"`
	Port            string   `envconfig:"READCYCLE_APP_PORT" required:"true"`
	LogLevel        string   `envconfig:"READCYCLE_LOG_LEVEL" default:"info"`
	LogWarnStack    bool     `envconfig:"READCYCLE_LOG_WARN_STACK" default:"false"`
	CORSOrigins     []string `envconfig:"READCYCLE_CORS_ORIGINS" default:"http://localhost:3000"`
	LoginsPerMinute int      `envconfig:"READCYCLE_LOGINS_PER_MINUTE" default:"10"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"READCYCLE_DB_DSN"`
	Driver string `envconfig:"READCYCLE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"READCYCLE_DB_HOST"`
	Port     int    `envconfig:"READCYCLE_DB_PORT" default:"5432"`
	User     string `envconfig:"READCYCLE_DB_USER"`
	Password string `envconfig:"READCYCLE_DB_PASSWORD"`
	Name     string `envconfig:"READCYCLE_DB_NAME"`
	SSLMode  string `envconfig:"READCYCLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"READCYCLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"READCYCLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"READCYCLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"READCYCLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional. When neither URL nor Address is set the service runs
// with in-process locks and no flag cache.
type RedisConfig struct {
	URL          string        `envconfig:"READCYCLE_REDIS_URL"`
	Address      string        `envconfig:"READCYCLE_REDIS_ADDR"`
	Password     string        `envconfig:"READCYCLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"READCYCLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"READCYCLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"READCYCLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"READCYCLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READCYCLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"READCYCLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret string `envconfig:"READCYCLE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"READCYCLE_JWT_ISSUER" required:"true"`
	// ExpirationMinutes bounds access tokens minted by the login endpoint.
	ExpirationMinutes int `envconfig:"READCYCLE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"READCYCLE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"READCYCLE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"READCYCLE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"READCYCLE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"READCYCLE_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite          bool `envconfig:"READCYCLE_USE_SQLITE" default:"false"`
	AutoMigrate        bool `envconfig:"READCYCLE_AUTO_MIGRATE" default:"false"`
	MaintenanceDefault bool `envconfig:"READCYCLE_MAINTENANCE_DEFAULT" default:"false"`
}

// LoansConfig tunes the borrow path.
type LoansConfig struct {
	LockTTL             time.Duration `envconfig:"READCYCLE_LOANS_LOCK_TTL" default:"10s"`
	LockWait            time.Duration `envconfig:"READCYCLE_LOANS_LOCK_WAIT" default:"3s"`
	BorrowsPerMinute    int           `envconfig:"READCYCLE_LOANS_BORROWS_PER_MINUTE" default:"30"`
	MaintenanceCacheTTL time.Duration `envconfig:"READCYCLE_MAINTENANCE_CACHE_TTL" default:"30s"`
}

func (l LoansConfig) validate() error {
	if l.LockTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvLoansLockTTL)
	}
	if l.LockWait <= 0 {
		return fmt.Errorf("%s must be positive", EnvLoansLockWait)
	}
	if l.BorrowsPerMinute <= 0 {
		return fmt.Errorf("%s must be positive", EnvLoansBorrowsPerMinute)
	}
	return nil
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	partValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if partValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
