package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/compute"
	"github.com/dmitrymomot/herald/pkg/db"
	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/redis"
	"github.com/dmitrymomot/herald/pkg/scheduler"
	"github.com/dmitrymomot/herald/pkg/storage"
)

// Scheduler modes.
const (
	// modePool delivers claimed broadcasts in this process.
	modePool = "pool"
	// modeQueue hands claimed broadcasts to River workers.
	modeQueue = "queue"
)

// Config is the full process configuration.
type Config struct {
	Log       logger.Config
	DB        db.Config
	Redis     redis.Config
	Telegram  channel.TelegramConfig
	Delivery  delivery.Config
	Scheduler SchedulerConfig
	Compute   compute.Config
	Provider  compute.ProviderConfig
	Storage   storage.Config
	HTTP      HTTPConfig
	Jobs      JobsConfig
}

// SchedulerConfig extends scheduler.Config with process level settings.
type SchedulerConfig struct {
	scheduler.Config
	Mode     string `env:"SCHEDULER_MODE" envDefault:"pool"`
	Schedule string `env:"SCHEDULER_SCHEDULE" envDefault:"@every 1m"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	BodyLimit       int64         `env:"HTTP_BODY_LIMIT" envDefault:"8388608"`
	OperatorToken   string        `env:"OPERATOR_TOKEN"`
	// CallbackRateLimit caps webhook calls per client IP per CallbackRateWindow.
	CallbackRateLimit  int           `env:"CALLBACK_RATE_LIMIT" envDefault:"120"`
	CallbackRateWindow time.Duration `env:"CALLBACK_RATE_WINDOW" envDefault:"1m"`
	// StatsCacheTTL keeps stats of finished broadcasts in Redis. Zero disables it.
	StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"5m"`
}

type JobsConfig struct {
	BroadcastWorkers int    `env:"JOBS_BROADCAST_WORKERS" envDefault:"4"`
	ResultWorkers    int    `env:"JOBS_RESULT_WORKERS" envDefault:"8"`
	MaxWorkers       int    `env:"JOBS_MAX_WORKERS" envDefault:"10"`
	SweepSchedule    string `env:"JOBS_SWEEP_SCHEDULE" envDefault:"@every 1m"`
}

var errInvalidConfig = errors.New("herald: invalid configuration")

// loadConfig reads .env when present, then the process environment.
func loadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(errInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Scheduler.Mode {
	case modePool, modeQueue:
	default:
		return fmt.Errorf("%w: SCHEDULER_MODE must be %q or %q", errInvalidConfig, modePool, modeQueue)
	}
	if c.Compute.Secret == "" {
		return fmt.Errorf("%w: COMPUTE_CALLBACK_SECRET is required", errInvalidConfig)
	}
	return nil
}
