// Package config loads application configuration from the environment.
//
// CONFIGURATION SOURCES:
// 1. A .env file in the working directory, if present (development)
// 2. Real environment variables (production, CI) — these win
//
// The original mobile client read API_HOST from a templated env file; we
// keep the same variable name so deployments carry over unchanged. All
// other knobs follow the same pattern: env tag + sensible default.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every externally configurable value, loaded once in main
// and passed down explicitly. Nothing reads os.Getenv after startup.
type Config struct {
	// APIHost is the base URL of the REST backend, e.g.
	// "http://192.168.1.168:8080/proyecto01". All gateway endpoints are
	// relative to it.
	APIHost string `env:"API_HOST" envDefault:"http://localhost:8080/proyecto01"`

	// Identity provider (sign-in / sign-up / token refresh).
	AuthHost   string `env:"AUTH_HOST" envDefault:"http://localhost:8081"`
	AuthAPIKey string `env:"AUTH_API_KEY"`

	// Image upload service (Cloudinary-style unsigned upload).
	UploadURL    string `env:"UPLOAD_URL" envDefault:"https://api.cloudinary.com/v1_1/dpqj4thfg/image/upload"`
	UploadPreset string `env:"UPLOAD_PRESET" envDefault:"ml_default"`
	CloudName    string `env:"CLOUD_NAME" envDefault:"dpqj4thfg"`

	// SessionDBPath is where the signed-in session credential is kept so
	// the app can resume without asking for the password again.
	// ":memory:" disables persistence (used in tests).
	SessionDBPath string `env:"SESSION_DB_PATH" envDefault:"data/session.db"`

	// LogLevel: debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if any) and then the environment. A missing .env file
// is not an error — production sets real env vars instead.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}
