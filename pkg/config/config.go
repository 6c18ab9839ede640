package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Dispatch     DispatchConfig
	Cron         CronConfig
	PubSub       PubSubConfig
	Idempotency  IdempotencyConfig
	CORS         CORSConfig
}

// Load reads the DRIVE_* environment and reports every invalid setting at
// once rather than the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DB.UseSQLite = cfg.FeatureFlags.UseSQLite
	err := multierr.Combine(
		cfg.DB.resolveDSN(),
		cfg.Dispatch.validate(),
		cfg.Cron.validate(),
		positive(EnvIdempotencyTTL, cfg.Idempotency.TTL),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DRIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"DRIVE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DRIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DRIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return envIn(a.Env, AppEnvDev, "development", "local")
}

func (a AppConfig) IsProd() bool {
	return envIn(a.Env, AppEnvProd, "production")
}

func envIn(env string, names ...string) bool {
	env = strings.TrimSpace(env)
	for _, n := range names {
		if strings.EqualFold(env, n) {
			return true
		}
	}
	return false
}

type ServiceConfig struct {
	Kind string `envconfig:"DRIVE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"DRIVE_DB_DSN"`
	SQLitePath string `envconfig:"DRIVE_DB_SQLITE_PATH" default:"drive.db"`

	Host     string `envconfig:"DRIVE_DB_HOST"`
	Port     int    `envconfig:"DRIVE_DB_PORT" default:"5432"`
	User     string `envconfig:"DRIVE_DB_USER"`
	Password string `envconfig:"DRIVE_DB_PASSWORD"`
	Name     string `envconfig:"DRIVE_DB_NAME"`
	SSLMode  string `envconfig:"DRIVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DRIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DRIVE_DB_SLOW_QUERY" default:"250ms"`

	UseSQLite bool `ignored:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRIVE_REDIS_URL"`
	Address      string        `envconfig:"DRIVE_REDIS_ADDR"`
	Password     string        `envconfig:"DRIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DRIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DRIVE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DRIVE_AUTO_MIGRATE" default:"false"`
}

// DispatchConfig tunes bid window timing and conflict handling.
type DispatchConfig struct {
	CompetitiveCutoff     time.Duration `envconfig:"DRIVE_DISPATCH_COMPETITIVE_CUTOFF" default:"24h"`
	EmergencyWindow       time.Duration `envconfig:"DRIVE_DISPATCH_EMERGENCY_WINDOW" default:"2h"`
	ResolveMaxRetries     int           `envconfig:"DRIVE_DISPATCH_RESOLVE_MAX_RETRIES" default:"3"`
	ResolveRetryBackoff   time.Duration `envconfig:"DRIVE_DISPATCH_RESOLVE_RETRY_BACKOFF" default:"25ms"`
	DefaultGraceMinutes   int           `envconfig:"DRIVE_DISPATCH_DEFAULT_GRACE_MINUTES" default:"15"`
	DefaultEmergencyBonus int           `envconfig:"DRIVE_DISPATCH_DEFAULT_EMERGENCY_BONUS" default:"20"`
	DefaultTimezone       string        `envconfig:"DRIVE_DISPATCH_DEFAULT_TIMEZONE" default:"America/Toronto"`
}

func (d DispatchConfig) validate() error {
	var err error
	if d.CompetitiveCutoff <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvCompetitiveCutoff))
	}
	if d.EmergencyWindow <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvEmergencyWindow))
	}
	if d.ResolveMaxRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvResolveMaxRetries))
	}
	if d.ResolveRetryBackoff <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvResolveRetryBackoff))
	}
	if d.DefaultGraceMinutes < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvDefaultGraceMinutes))
	}
	if d.DefaultEmergencyBonus < 0 || d.DefaultEmergencyBonus > 100 {
		err = multierr.Append(err, fmt.Errorf("%s must be within 0..100", EnvDefaultEmergencyBonus))
	}
	if _, locErr := time.LoadLocation(d.DefaultTimezone); locErr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid %s: %w", EnvDefaultTimezone, locErr))
	}
	return err
}

type CronConfig struct {
	CloseWindowsInterval time.Duration `envconfig:"DRIVE_CRON_CLOSE_WINDOWS_INTERVAL" default:"1m"`
	NoShowInterval       time.Duration `envconfig:"DRIVE_CRON_NO_SHOW_INTERVAL" default:"5m"`
}

func (c CronConfig) validate() error {
	return multierr.Combine(
		positive(EnvCronCloseWindows, c.CloseWindowsInterval),
		positive(EnvCronNoShow, c.NoShowInterval),
	)
}

type PubSubConfig struct {
	ProjectID         string        `envconfig:"DRIVE_GCP_PROJECT_ID"`
	NotificationTopic string        `envconfig:"DRIVE_PUBSUB_NOTIFICATION_TOPIC"`
	PublishTimeout    time.Duration `envconfig:"DRIVE_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

// Enabled reports whether notification fan-out to Pub/Sub is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.NotificationTopic) != ""
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"DRIVE_IDEMPOTENCY_TTL" default:"24h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"DRIVE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// resolveDSN assembles a postgres URL from the discrete DRIVE_DB_* fields
// when no DSN is given. SQLite mode needs only a file path.
func (db *DBConfig) resolveDSN() error {
	if db.UseSQLite {
		if strings.TrimSpace(db.SQLitePath) == "" {
			return fmt.Errorf("%s is required when %s is set", EnvDBSQLitePath, EnvUseSQLite)
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s or all of %s required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
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

func positive(env string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive", env)
	}
	return nil
}
