// Package config provides daemon configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds contextbus daemon configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"contextbus-priv"`

	// Bus wiring.
	SubjectPrefix string `envconfig:"BUS_SUBJECT_PREFIX" default:"bus"`
	DedupWindow   int    `envconfig:"BUS_DEDUP_WINDOW" default:"4096"`
	MaxPayload    int    `envconfig:"BUS_MAX_PAYLOAD" default:"262144"`

	// Database (optional): when set, blob handles are backed by Postgres so
	// they reach consumers in other processes; otherwise an in-memory store
	// is used.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// HTTP health endpoint.
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the daemon.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("%s - BUS_DEDUP_WINDOW must be positive", logPrefix)
	}
	if c.MaxPayload <= 0 {
		return fmt.Errorf("%s - BUS_MAX_PAYLOAD must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands.
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
