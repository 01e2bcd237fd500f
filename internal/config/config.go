// Package config loads the FITSUTRA_* environment. A .env file is read
// first when present, then real environment variables win.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is everything main needs to wire the app.
type Config struct {
	Addr string
	Env  string // "development" or "production"

	// Hosted backend.
	BackendURL string
	AnonKey    string
	ServiceKey string // service-role credential for pre-auth writes (demo leads)

	// DefaultGymID routes public demo leads into the house gym's Growth
	// page; empty leaves them unrouted.
	DefaultGymID string

	// Local session persistence.
	StorePath  string
	SealKeyHex string // 64 hex chars; empty disables sealing at rest

	CSRFKeyHex string // 64 hex chars; required in production

	// Email.
	ResendKey  string
	EmailFrom  string
	SalesInbox string

	StaticDir string
}

// Production reports whether the app runs with production hardening.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the FITSUTRA_* environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("config_event", "event", "dotenv_loaded")
	}

	cfg := Config{
		Addr:         envOrDefault("FITSUTRA_ADDR", ":8080"),
		Env:          envOrDefault("FITSUTRA_ENV", "development"),
		BackendURL:   strings.TrimRight(os.Getenv("FITSUTRA_BACKEND_URL"), "/"),
		AnonKey:      os.Getenv("FITSUTRA_ANON_KEY"),
		ServiceKey:   os.Getenv("FITSUTRA_SERVICE_KEY"),
		DefaultGymID: os.Getenv("FITSUTRA_DEFAULT_GYM_ID"),
		StorePath:    envOrDefault("FITSUTRA_STORE_PATH", "fitsutra.db"),
		SealKeyHex:   os.Getenv("FITSUTRA_SEAL_KEY"),
		CSRFKeyHex:   os.Getenv("FITSUTRA_CSRF_KEY"),
		ResendKey:    os.Getenv("FITSUTRA_RESEND_KEY"),
		EmailFrom:    envOrDefault("FITSUTRA_EMAIL_FROM", "FitSutra <hello@fitsutra.com>"),
		SalesInbox:   envOrDefault("FITSUTRA_SALES_INBOX", "sales@fitsutra.com"),
		StaticDir:    envOrDefault("FITSUTRA_STATIC_DIR", "static"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.BackendURL == "" {
		return errors.New("FITSUTRA_BACKEND_URL is required")
	}
	if c.AnonKey == "" {
		return errors.New("FITSUTRA_ANON_KEY is required")
	}
	if c.Production() && c.CSRFKeyHex == "" {
		return errors.New("FITSUTRA_CSRF_KEY is required in production")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
