// Package config loads server configuration from the environment.
//
// LOADING ORDER:
//  1. A .env file in the working directory, if present (godotenv)
//  2. Process environment variables (always win over .env)
//  3. env-default tags for anything still unset (cleanenv)
//
// godotenv.Load never overwrites variables already present in the process
// environment, so a value exported in the shell beats the .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string `env:"ENV" env-default:"local"`
	DBPath string `env:"DB_PATH" env-default:"data/studysync.db"`

	HTTPServer
	JWT
	Google
}

type HTTPServer struct {
	Port         int           `env:"PORT" env-default:"5000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type JWT struct {
	Secret string        `env:"JWT_SECRET" env-required:"true"`
	TTL    time.Duration `env:"JWT_TTL" env-default:"720h"`
}

// Google holds the OAuth client and the calendar integration settings.
// APIEndpoint is empty in production; tests point it at a fake server.
type Google struct {
	ClientID            string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret        string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL         string `env:"GOOGLE_REDIRECT_URL" env-default:"http://localhost:5000/api/google-calendar/auth/callback"`
	APIEndpoint         string `env:"GOOGLE_API_ENDPOINT"`
	FrontendCalendarURL string `env:"FRONTEND_CALENDAR_URL" env-default:"http://localhost:5173/CalendarSync"`
}

// Enabled reports whether OAuth client credentials were provided.
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads .env (optional) and the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown ENV %q (want local, dev or prod)", c.Env)
	}
	if len(c.JWT.Secret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	return nil
}
