package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Prefix is prepended to every variable name below.
const Prefix = "CARBON_LEDGER_"

type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment  bool          `env:"LOG_DEVELOPMENT" envDefault:"false"`
	CodeDigits      int           `env:"CODE_DIGITS" envDefault:"6"`
	MinPlayers      int           `env:"MIN_PLAYERS" envDefault:"2"`
	OutboxSize      int           `env:"OUTBOX_SIZE" envDefault:"16"`
	PingInterval    time.Duration `env:"PING_INTERVAL" envDefault:"20s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	DatabaseURL     string        `env:"DATABASE_URL"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
	OTelSampleRatio float64       `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load reads the given dotenv files (".env" when none are given; a missing
// file is not an error), then parses and validates the environment.
// Variables already set in the process win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: Prefix})
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("addr must not be empty"))
	}
	if c.CodeDigits < 4 || c.CodeDigits > 9 {
		err = multierr.Append(err, fmt.Errorf("code digits must be between 4 and 9, got %d", c.CodeDigits))
	}
	if c.MinPlayers < 2 {
		err = multierr.Append(err, fmt.Errorf("min players must be at least 2, got %d", c.MinPlayers))
	}
	if c.OutboxSize < 1 {
		err = multierr.Append(err, fmt.Errorf("outbox size must be positive, got %d", c.OutboxSize))
	}
	if c.PingInterval <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("ping interval, write timeout and shutdown timeout must be positive"))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		err = multierr.Append(err, fmt.Errorf("otel sample ratio must be within [0, 1], got %g", c.OTelSampleRatio))
	}
	return err
}
