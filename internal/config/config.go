// Package config loads broker configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Store driver names accepted in STORE_DRIVER.
const (
	DriverSurreal = "surreal"
	DriverMemory  = "memory"
)

// Config holds all configuration for the broker process.
type Config struct {
	// HTTPAddr is the listen address for the ingress API and the
	// WebSocket endpoint.
	HTTPAddr string

	// StoreDriver selects the durable store backend: "surreal" or
	// "memory". The memory driver keeps no state across restarts and is
	// intended for development and tests.
	StoreDriver string

	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string
}

// New loads configuration from environment variables, reading a .env file
// first when one is present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPAddr:    envOr("HTTP_ADDR", ":5000"),
		StoreDriver: envOr("STORE_DRIVER", DriverSurreal),
		DBUrl:       os.Getenv("SURREAL_URL"),
		DBUser:      os.Getenv("SURREAL_USER"),
		DBPass:      os.Getenv("SURREAL_PASS"),
		DBNs:        os.Getenv("SURREAL_NS"),
		DBDb:        os.Getenv("SURREAL_DB"),
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverSurreal:
		if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
			return nil, fmt.Errorf("config: SURREAL_URL, SURREAL_NS, and SURREAL_DB are required when STORE_DRIVER=%s", DriverSurreal)
		}
	default:
		return nil, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
