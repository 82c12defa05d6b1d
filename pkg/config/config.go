package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "VITRINE"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "VITRINE_APP_ENV"
	EnvPort     = "VITRINE_APP_PORT"
	EnvDBDSN    = "VITRINE_DB_DSN"
	EnvDBHost   = "VITRINE_DB_HOST"
	EnvDBUser   = "VITRINE_DB_USER"
	EnvDBName   = "VITRINE_DB_NAME"
	EnvRedisURL = "VITRINE_REDIS_URL"

	EnvJWTSecret  = "VITRINE_JWT_SECRET"
	EnvJWTIssuer  = "VITRINE_JWT_ISSUER"
	EnvJWTExpMins = "VITRINE_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	JWT   JWTConfig
	Sync  SyncConfig
	CORS  CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Sync.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VITRINE_APP_ENV" required:"true"`
	Port         string `envconfig:"VITRINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VITRINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VITRINE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"VITRINE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VITRINE_DB_DSN"`
	Driver string `envconfig:"VITRINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VITRINE_DB_HOST"`
	LegacyPort     int    `envconfig:"VITRINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VITRINE_DB_USER"`
	LegacyPassword string `envconfig:"VITRINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"VITRINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"VITRINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VITRINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VITRINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VITRINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VITRINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VITRINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VITRINE_REDIS_ADDR"`
	Password     string        `envconfig:"VITRINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VITRINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VITRINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VITRINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VITRINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VITRINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VITRINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VITRINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VITRINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VITRINE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// SyncConfig tunes the remote snapshot synchronization behavior. The
// quarantine window must stay comfortably larger than the debounce interval
// so an in-flight coalesced save cannot resurrect a cleared cart remotely.
type SyncConfig struct {
	DebounceInterval time.Duration `envconfig:"VITRINE_SYNC_DEBOUNCE_INTERVAL" default:"2s"`
	QuarantineTTL    time.Duration `envconfig:"VITRINE_SYNC_QUARANTINE_TTL" default:"5s"`
	DeleteRetryDelay time.Duration `envconfig:"VITRINE_SYNC_DELETE_RETRY_DELAY" default:"500ms"`
	SessionIdleTTL   time.Duration `envconfig:"VITRINE_SYNC_SESSION_IDLE_TTL" default:"30m"`
}

func (s SyncConfig) validate() error {
	if s.DebounceInterval <= 0 {
		return fmt.Errorf("sync debounce interval must be positive")
	}
	if s.QuarantineTTL < 2*s.DebounceInterval {
		return fmt.Errorf("sync quarantine ttl must be at least twice the debounce interval")
	}
	return nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VITRINE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
