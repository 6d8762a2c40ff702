package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port           string        `env:"PORT,default=8080"`
	DBDriver       string        `env:"DB_DRIVER,default=sqlite"` // sqlite | postgres
	DBDSN          string        `env:"DB_DSN,default=prices.db"`
	DBSeed         bool          `env:"DB_SEED,default=true"`
	LogFile        string        `env:"LOG_FILE,default=./prices.log"`
	LogMaxSizeMB   int           `env:"LOG_MAX_SIZE_MB,default=10"`
	Timezone       string        `env:"TIMEZONE,default=UTC"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=5s"`
	RateLimitMax   int           `env:"RATE_LIMIT_MAX,default=60"`
}

// Load reads the environment, after pulling in a .env file when one exists.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("env processing: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	log.Printf("[config] PORT=%s DB_DRIVER=%s DB_DSN=%s LOG_FILE=%s TIMEZONE=%s",
		cfg.Port, cfg.DBDriver, cfg.DBDSN, cfg.LogFile, cfg.Timezone)
	return cfg, nil
}

// Location is the zone applied to timestamps that carry no offset.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
