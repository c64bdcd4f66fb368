package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// minPollInterval is the floor for the group-join poll loop. Anything
// faster hammers the backend without making invites arrive sooner.
const minPollInterval = 10 * time.Second

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Telegram struct {
		BotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

		// Long-poll timeout for getUpdates, in seconds.
		PollTimeout int `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"30"`
	}

	Backend struct {
		BaseURL  string        `env:"BACKEND_API_BASE_URL" envDefault:"http://localhost:8000/api/"`
		BotToken string        `env:"BACKEND_BOT_TOKEN,required"`
		Timeout  time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
	}

	GroupJoin struct {
		PollInterval     time.Duration `env:"GROUP_POLL_INTERVAL" envDefault:"30s"`
		TripStatusFilter string        `env:"TRIP_STATUS_FILTER" envDefault:"registration"`
	}

	Redis struct {
		// Addr is optional; when empty, conversation state is kept in
		// process memory instead of Redis.
		Addr       string        `env:"REDIS_ADDR"`
		Password   string        `env:"REDIS_PASSWORD"`
		DB         int           `env:"REDIS_DB" envDefault:"0"`
		SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	}
}

func Load() (*Config, error) {
	// Missing .env is fine; in production the variables are set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.GroupJoin.PollInterval < minPollInterval {
		cfg.GroupJoin.PollInterval = minPollInterval
	}
	if !strings.HasSuffix(cfg.Backend.BaseURL, "/") {
		cfg.Backend.BaseURL += "/"
	}

	return cfg, nil
}
