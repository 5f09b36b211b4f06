package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Log        LogConfig
	DB         DBConfig
	Redis      RedisConfig
	GRPC       GRPCConfig
	HTTP       HTTPConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Swipe      SwipeConfig
	Disclosure DisclosureConfig
	Consent    ConsentConfig
	Assets     AssetsConfig
	Jobs       JobsConfig
	Worker     WorkerConfig
	Telemetry  TelemetryConfig
}

type AppConfig struct {
	ENV string `env:"APP_ENV" envDefault:"development"`
}

type LogConfig struct {
	Level     string `env:"LOG_LEVEL" envDefault:"info"`
	Format    string `env:"LOG_FORMAT" envDefault:"text"`
	Component string `env:"LOG_COMPONENT" envDefault:"grpc_server"`
	Source    bool   `env:"LOG_SOURCE" envDefault:"false"`
}

type DBConfig struct {
	// Driver is one of mysql, postgres or sqlite.
	Driver   string `env:"DB_DRIVER" envDefault:"mysql"`
	DSN      string `env:"MYSQL_DSN"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"3306"`
	User     string `env:"DB_USER" envDefault:"root"`
	Password string `env:"DB_PASSWORD" envDefault:"root"`
	Name     string `env:"DB_NAME" envDefault:"campus_match"`
	LogSQL   bool   `env:"DB_LOG_SQL" envDefault:"false"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type GRPCConfig struct {
	Host string `env:"GRPC_HOST" envDefault:"127.0.0.1"`
	Port string `env:"GRPC_PORT" envDefault:"50051"`
	// RequestTimeout bounds every unary call; the swipe path should stay within a few seconds.
	RequestTimeout time.Duration `env:"GRPC_REQUEST_TIMEOUT" envDefault:"5s"`
}

type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`
	// PublicBaseURL prefixes signed asset URLs handed to clients.
	PublicBaseURL string `env:"HTTP_PUBLIC_BASE_URL" envDefault:"http://127.0.0.1:8080"`
}

type AuthConfig struct {
	// JWTSecret enables bearer-token verification when non-empty.
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	Issuer    string `env:"AUTH_ISSUER"`
}

type RateLimitConfig struct {
	PerSecond float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	Burst     int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

type SwipeConfig struct {
	DailyLimit int    `env:"SWIPE_DAILY_LIMIT" envDefault:"5"`
	Timezone   string `env:"SWIPE_TIMEZONE" envDefault:"America/New_York"`
	// MaxTxAttempts bounds retries of the swipe transaction on contention.
	MaxTxAttempts uint64 `env:"SWIPE_MAX_TX_ATTEMPTS" envDefault:"4"`
}

type DisclosureConfig struct {
	Phase1Threshold int     `env:"DISCLOSURE_PHASE1_THRESHOLD" envDefault:"30"`
	Phase2Threshold int     `env:"DISCLOSURE_PHASE2_THRESHOLD" envDefault:"50"`
	Phase2Start     float64 `env:"DISCLOSURE_PHASE2_START" envDefault:"80"`
	MaxRadius       int     `env:"DISCLOSURE_MAX_RADIUS" envDefault:"25"`
	// MaxSigma is the Gaussian sigma rendered for the 100% ladder step.
	MaxSigma float64 `env:"DISCLOSURE_MAX_SIGMA" envDefault:"40"`
}

type ConsentConfig struct {
	// DeclineUnmatches deactivates the match when a participant declines.
	DeclineUnmatches bool `env:"CONSENT_DECLINE_UNMATCHES" envDefault:"true"`
}

type AssetsConfig struct {
	Dir        string        `env:"ASSETS_DIR" envDefault:"./data/assets"`
	SigningKey string        `env:"ASSETS_SIGNING_KEY" envDefault:"dev-asset-signing-key"`
	URLTTL     time.Duration `env:"ASSETS_URL_TTL" envDefault:"15m"`
}

type JobsConfig struct {
	// ResetAt is the wall-clock HH:MM, in the swipe timezone, at which counters reset.
	ResetAt string `env:"JOBS_RESET_AT" envDefault:"00:00"`
	Enabled bool   `env:"JOBS_ENABLED" envDefault:"true"`
}

type WorkerConfig struct {
	Workers     int           `env:"WORKER_COUNT" envDefault:"4"`
	QueueSize   int           `env:"WORKER_QUEUE_SIZE" envDefault:"256"`
	TaskTimeout time.Duration `env:"WORKER_TASK_TIMEOUT" envDefault:"10s"`
	MaxAttempts uint64        `env:"WORKER_MAX_ATTEMPTS" envDefault:"3"`
}

type TelemetryConfig struct {
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"campus-match"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DB.DSN == "" && strings.EqualFold(cfg.DB.Driver, "mysql") {
		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}
	if _, err := cfg.Swipe.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New is Load for call sites that cannot start without a valid configuration.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Location resolves the timezone that defines the calendar day for swipe quotas.
func (s SwipeConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SWIPE_TIMEZONE %q: %w", s.Timezone, err)
	}
	return loc, nil
}
