package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Backend BackendConfig
	SSE     SSEConfig
	Wizard  WizardConfig
	Events  EventsConfig
	Consult ConsultConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type BackendConfig struct {
	URL          string        `env:"BACKEND_URL,           default=http://localhost:3000/api"`
	ServiceToken string        `env:"BACKEND_SERVICE_TOKEN"`
	Timeout      time.Duration `env:"BACKEND_TIMEOUT,       default=15s"`
}

type SSEConfig struct {
	Path           string        `env:"SSE_PATH,            default=/events/stream"`
	ReconnectDelay time.Duration `env:"SSE_RECONNECT_DELAY, default=3s"`
	Heartbeat      time.Duration `env:"SSE_HEARTBEAT,       default=15s"`
}

type WizardConfig struct {
	SessionTTL       time.Duration `env:"WIZARD_SESSION_TTL, default=30m"`
	DaneFallbackCode string        `env:"DANE_FALLBACK_CODE, default=11001000"`
}

// EventsConfig tunes the event pipeline. InstanceID scopes dedup keys to
// this replica and defaults to the hostname.
type EventsConfig struct {
	Workers    int           `env:"EVENT_WORKERS,   default=8"`
	DedupTTL   time.Duration `env:"EVENT_DEDUP_TTL, default=1h"`
	InstanceID string        `env:"INSTANCE_ID"`
}

// ConsultConfig limits on-demand tracking per caller.
type ConsultConfig struct {
	RatePerSecond float64 `env:"CONSULT_RATE,  default=1"`
	Burst         int     `env:"CONSULT_BURST, default=5"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB,        default=shipping_central"`
	PoolSize uint64 `env:"MONGO_POOL_SIZE, default=0"`
}

// RedisConfig addresses the dedup store. REDIS_ADDR also accepts a
// redis:// URL.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,        default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=0"`
}

// Development reports whether ENV selects development mode.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
