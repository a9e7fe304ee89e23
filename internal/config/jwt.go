package config

import (
	"fmt"
	"time"
)

// JWTConfig holds configuration for bearer token generation and validation.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// JWT returns the token configuration, or nil when no secret is configured and
// requests are served without authentication.
func (c *Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}

	cfg := &JWTConfig{
		Secret:     c.JWTSecret,
		Expiration: time.Duration(c.JWTExpirationHours) * time.Hour,
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Expiration < time.Hour {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %s", c.Expiration)
	}
	return nil
}
