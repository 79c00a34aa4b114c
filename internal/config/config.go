package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Port     string `env:"STUDYHALL_PORT" envDefault:"8080"`
	DBPath   string `env:"STUDYHALL_DB_PATH" envDefault:"studyhall.db"`
	BaseURL  string `env:"STUDYHALL_BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel string `env:"STUDYHALL_LOG_LEVEL" envDefault:"info"`

	// AuthSecret verifies identity credentials minted by the auth service.
	AuthSecret   string `env:"STUDYHALL_AUTH_SECRET,required"`
	AuthIssuer   string `env:"STUDYHALL_AUTH_ISSUER" envDefault:"studyhall-auth"`
	AuthAudience string `env:"STUDYHALL_AUTH_AUDIENCE" envDefault:"studyhall"`

	ContentURL    string `env:"STUDYHALL_CONTENT_URL" envDefault:"http://localhost:8090"`
	ContentAPIKey string `env:"STUDYHALL_CONTENT_API_KEY"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
