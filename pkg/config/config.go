package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Pricing      PricingConfig
	Catalog      CatalogConfig
	CORS         CORSConfig
}

// Load reads every section from SELLERHUB_* variables and reports all
// cross-field problems at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	if dsnErr := c.DB.resolveDSN(); dsnErr != nil {
		err = multierr.Append(err, dsnErr)
	}
	if c.Pricing.TargetValue.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvPricingTargetValue))
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be json or console, got %q", EnvLogFormat, c.App.LogFormat))
	}
	if c.Outbox.BatchSize < 0 || c.Outbox.MaxAttempts < 0 {
		err = multierr.Append(err, fmt.Errorf("outbox batch size and max attempts must not be negative"))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"SELLERHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SELLERHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SELLERHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SELLERHUB_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SELLERHUB_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SELLERHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SELLERHUB_DB_DSN"`
	Driver string `envconfig:"SELLERHUB_DB_DRIVER" default:"postgres"`

	// Discrete connection parts, used only when DSN is blank.
	Host     string `envconfig:"SELLERHUB_DB_HOST"`
	Port     int    `envconfig:"SELLERHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"SELLERHUB_DB_USER"`
	Password string `envconfig:"SELLERHUB_DB_PASSWORD"`
	Name     string `envconfig:"SELLERHUB_DB_NAME"`
	SSLMode  string `envconfig:"SELLERHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SELLERHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SELLERHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SELLERHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SELLERHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SELLERHUB_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SELLERHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SELLERHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SELLERHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SELLERHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SELLERHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SELLERHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SELLERHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SELLERHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SELLERHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SELLERHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SELLERHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SELLERHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SELLERHUB_AUTO_MIGRATE" default:"false"`
	ViewCache   bool `envconfig:"SELLERHUB_FEATURE_VIEW_CACHE" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SELLERHUB_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SELLERHUB_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"SELLERHUB_PUBSUB_DOMAIN_TOPIC" default:"sellerhub-domain-events"`
	DomainSubscription string `envconfig:"SELLERHUB_PUBSUB_DOMAIN_SUBSCRIPTION" default:"sellerhub-domain-events-catalog-cache"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SELLERHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SELLERHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SELLERHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`

	PublishTimeout time.Duration `envconfig:"SELLERHUB_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`

	// MetricsAddr exposes the publisher's Prometheus registry when set.
	MetricsAddr string `envconfig:"SELLERHUB_OUTBOX_METRICS_ADDR"`
}

// PollInterval converts the configured poll milliseconds into a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// PricingConfig bounds what a cart may total before payment.
// A zero TargetValue leaves the ceiling to the submitted cart totals.
type PricingConfig struct {
	TargetValue decimal.Decimal `envconfig:"SELLERHUB_PRICING_TARGET_VALUE" default:"0"`
}

type CatalogConfig struct {
	ViewCacheTTL time.Duration `envconfig:"SELLERHUB_CATALOG_VIEW_CACHE_TTL" default:"10m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SELLERHUB_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// resolveDSN assembles a postgres URL from the discrete parts when no DSN
// was given. sqlite always needs an explicit DSN.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
