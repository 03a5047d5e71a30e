// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup. DatabaseURL and
// RedisAddr are optional; when unset the corresponding sink is disabled.
type Config struct {
	Addr           string `env:"GUTS_ADDR" envDefault:":3001"`
	TokenSecret    string `env:"GUTS_TOKEN_SECRET"`
	FrontendOrigin string `env:"GUTS_FRONTEND_ORIGIN" envDefault:"*"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env if present, then parses the environment. When no token
// secret is configured a random one is generated; credentials then only
// survive for the lifetime of the process, which matches the lifetime of
// the rooms they are scoped to.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.TokenSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return Config{}, fmt.Errorf("generate token secret: %w", err)
		}
		cfg.TokenSecret = hex.EncodeToString(secret)
	}
	return cfg, nil
}
