// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"QUIZ_ADDR,default=:8080"`

	MaxLobbies int `env:"QUIZ_MAX_LOBBIES,default=10"`
	PinLength  int `env:"QUIZ_PIN_LENGTH,default=4"`

	// Countdown tick period in Standard mode; Panic divides it by
	// QUIZ_PANIC_FACTOR.
	TickPeriod    time.Duration `env:"QUIZ_TICK_PERIOD,default=1s"`
	PanicFactor   int           `env:"QUIZ_PANIC_FACTOR,default=4"`
	WatchdogTicks int           `env:"QUIZ_WATCHDOG_TICKS,default=5"`

	// When empty the archiver keeps history records in memory only.
	PostgresDSN string `env:"QUIZ_POSTGRES_DSN"`

	LogLevel string `env:"QUIZ_LOG_LEVEL,default=info"`
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.MaxLobbies < 1 {
		return Config{}, fmt.Errorf("QUIZ_MAX_LOBBIES must be positive, got %d", cfg.MaxLobbies)
	}
	if cfg.PinLength < 1 {
		return Config{}, fmt.Errorf("QUIZ_PIN_LENGTH must be positive, got %d", cfg.PinLength)
	}
	if cfg.PanicFactor < 2 {
		return Config{}, fmt.Errorf("QUIZ_PANIC_FACTOR must be at least 2, got %d", cfg.PanicFactor)
	}
	return cfg, nil
}
