// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Prefix is prepended to every variable name, e.g. OBJECTS_HTTP_PORT.
const Prefix = "OBJECTS"

// Config holds the configuration for the objects service.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP
	HTTPPort int  `envconfig:"HTTP_PORT" default:"3000"`
	TLS      bool `envconfig:"TLS" default:"false"`

	// Store selection: mongo or memory
	Backend        string        `envconfig:"BACKEND" default:"mongo"`
	Database       string        `envconfig:"DATABASE" default:"test"`
	Collection     string        `envconfig:"COLLECTION" default:"objects"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`

	// MongoDB. MongoURL wins; otherwise it is built from the DB_* parts when DB_HOST is set.
	MongoURL   string `envconfig:"MONGO_URL"`
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"27017"`
	DBUsername string `envconfig:"DB_USERNAME"`
	DBPassword string `envconfig:"DB_PASSWORD"`

	// Memory backend snapshots; empty keeps the collection in memory only.
	DataDir string `envconfig:"DATA_DIR"`
}

// ResolveDefaults validates the backend and derives MongoURL.
func (c *Config) ResolveDefaults() error {
	switch c.Backend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unsupported BACKEND: %s", c.Backend)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.Collection == "" {
		return fmt.Errorf("COLLECTION must not be empty")
	}

	if c.MongoURL == "" {
		if c.DBHost == "" {
			c.MongoURL = "mongodb://127.0.0.1:27017"
		} else {
			u := url.URL{
				Scheme: "mongodb",
				Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
				Path:   "/" + c.Database,
			}
			if c.DBUsername != "" {
				u.User = url.UserPassword(c.DBUsername, c.DBPassword)
			}
			c.MongoURL = u.String()
		}
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with OBJECTS_
// Example: OBJECTS_HTTP_PORT, OBJECTS_BACKEND
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Bool("tls", cfg.TLS).
		Str("backend", cfg.Backend).
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Bool("credentials_present", cfg.DBUsername != "").
		Str("data_dir", cfg.DataDir).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting returns an in-memory configuration.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:    EnvTesting,
		LogLevel:       "debug",
		HTTPPort:       3000,
		Backend:        "memory",
		Database:       "test",
		Collection:     "objects",
		ConnectTimeout: time.Second,
		DBPort:         27017,
	}
	_ = cfg.ResolveDefaults()
	return cfg
}
