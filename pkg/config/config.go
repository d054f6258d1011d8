package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "LICENSEGATE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LICENSEGATE_DB_DSN"
	EnvDBHost = "LICENSEGATE_DB_HOST"
	EnvDBUser = "LICENSEGATE_DB_USER"
	EnvDBName = "LICENSEGATE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Kofi          KofiConfig
	AuthRateLimit AuthRateLimitConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LICENSEGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"LICENSEGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LICENSEGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LICENSEGATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LICENSEGATE_DB_DSN"`
	Driver string `envconfig:"LICENSEGATE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LICENSEGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"LICENSEGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LICENSEGATE_DB_USER"`
	LegacyPassword string `envconfig:"LICENSEGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LICENSEGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LICENSEGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LICENSEGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LICENSEGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSEGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LICENSEGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LICENSEGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LICENSEGATE_REDIS_ADDR"`
	Password     string        `envconfig:"LICENSEGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LICENSEGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LICENSEGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LICENSEGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LICENSEGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LICENSEGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LICENSEGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LICENSEGATE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LICENSEGATE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LICENSEGATE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LICENSEGATE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LICENSEGATE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LICENSEGATE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LICENSEGATE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LICENSEGATE_ARGON_KEY_LEN" default:"32"`
}

// KofiConfig carries the shared secret Ko-fi embeds in every webhook payload
// plus the TTL for the redis dedup fast path.
type KofiConfig struct {
	VerificationToken string        `envconfig:"LICENSEGATE_KOFI_VERIFICATION_TOKEN" required:"true"`
	IdempotencyTTL    time.Duration `envconfig:"LICENSEGATE_KOFI_IDEMPOTENCY_TTL" default:"720h"`
}

// AuthRateLimitConfig throttles credential endpoints per source IP and per
// target email.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LICENSEGATE_AUTH_RL_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"LICENSEGATE_AUTH_RL_LOGIN_IP_LIMIT" default:"10"`
	LoginEmailLimit    int           `envconfig:"LICENSEGATE_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"LICENSEGATE_AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"LICENSEGATE_AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"LICENSEGATE_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"3"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LICENSEGATE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	AccountsTopic        string `envconfig:"LICENSEGATE_PUBSUB_ACCOUNTS_TOPIC" default:"lg-account-events"`
	AccountsSubscription string `envconfig:"LICENSEGATE_PUBSUB_ACCOUNTS_SUBSCRIPTION" default:"lg-account-events-linker"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"LICENSEGATE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"LICENSEGATE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"LICENSEGATE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"LICENSEGATE_OUTBOX_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LICENSEGATE_AUTO_MIGRATE" default:"false"`
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
