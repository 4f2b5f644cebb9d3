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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Email        EmailConfig
	Delivery     DeliveryConfig
	Flash        FlashConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Email.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB reads only the database settings. Tools such as the migrate CLI use it
// so they do not need the service-wide required variables.
func LoadDB() (*DBConfig, error) {
	var cfg DBConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MAILMAVEN_APP_ENV" required:"true"`
	Port         string `envconfig:"MAILMAVEN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MAILMAVEN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MAILMAVEN_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"MAILMAVEN_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"MAILMAVEN_APP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MAILMAVEN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"MAILMAVEN_DB_DSN"`

	LegacyHost     string `envconfig:"MAILMAVEN_DB_HOST"`
	LegacyPort     int    `envconfig:"MAILMAVEN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MAILMAVEN_DB_USER"`
	LegacyPassword string `envconfig:"MAILMAVEN_DB_PASSWORD"`
	LegacyName     string `envconfig:"MAILMAVEN_DB_NAME"`
	LegacySSLMode  string `envconfig:"MAILMAVEN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAILMAVEN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAILMAVEN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAILMAVEN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAILMAVEN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAILMAVEN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MAILMAVEN_REDIS_ADDR"`
	Password     string        `envconfig:"MAILMAVEN_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAILMAVEN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAILMAVEN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAILMAVEN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAILMAVEN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAILMAVEN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAILMAVEN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies admin bearer tokens. Tokens are minted by the login
// service, this process only reads them.
type JWTConfig struct {
	Secret            string `envconfig:"MAILMAVEN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MAILMAVEN_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MAILMAVEN_JWT_EXPIRATION_MINUTES" default:"60"`
}

type EmailConfig struct {
	BaseURL              string        `envconfig:"MAILMAVEN_EMAIL_BASE_URL" required:"true"`
	Sender               string        `envconfig:"MAILMAVEN_EMAIL_SENDER" required:"true"`
	AuthorizationToken   string        `envconfig:"MAILMAVEN_EMAIL_AUTHORIZATION_TOKEN"`
	Timeout              time.Duration `envconfig:"MAILMAVEN_EMAIL_TIMEOUT" default:"10s"`
	RatePerSecond        float64       `envconfig:"MAILMAVEN_EMAIL_RATE_PER_SECOND" default:"50"`
	Burst                int           `envconfig:"MAILMAVEN_EMAIL_BURST" default:"10"`
	BreakerMaxFailures   uint32        `envconfig:"MAILMAVEN_EMAIL_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout   time.Duration `envconfig:"MAILMAVEN_EMAIL_BREAKER_OPEN_TIMEOUT" default:"30s"`
	BreakerHalfOpenProbe uint32        `envconfig:"MAILMAVEN_EMAIL_BREAKER_HALF_OPEN_PROBES" default:"1"`
}

func (e EmailConfig) validate() error {
	if e.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", EnvEmailBaseURL, e.BaseURL)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvEmailTimeout)
	}
	return nil
}

type DeliveryConfig struct {
	Workers           int           `envconfig:"MAILMAVEN_DELIVERY_WORKERS" default:"1"`
	EmptyQueueBackoff time.Duration `envconfig:"MAILMAVEN_DELIVERY_EMPTY_QUEUE_BACKOFF" default:"15s"`
	ErrorBackoff      time.Duration `envconfig:"MAILMAVEN_DELIVERY_ERROR_BACKOFF" default:"1s"`
	MetricsAddr       string        `envconfig:"MAILMAVEN_DELIVERY_METRICS_ADDR" default:":9102"`
}

type FlashConfig struct {
	TTL time.Duration `envconfig:"MAILMAVEN_FLASH_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MAILMAVEN_AUTO_MIGRATE" default:"false"`
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
