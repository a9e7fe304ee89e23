package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_DisabledWithoutSecret(t *testing.T) {
	cfg := Defaults()
	jwtCfg, err := cfg.JWT()
	require.NoError(t, err)
	assert.Nil(t, jwtCfg)
}

func TestJWT_DefaultExpiration(t *testing.T) {
	cfg := Defaults()
	cfg.JWTSecret = "test-secret-key-123456"

	jwtCfg, err := cfg.JWT()
	require.NoError(t, err)
	require.NotNil(t, jwtCfg)
	assert.Equal(t, "test-secret-key-123456", jwtCfg.Secret)
	assert.Equal(t, 24*time.Hour, jwtCfg.Expiration, "should use default expiration of 24 hours")
}

func TestJWT_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		hours   int
		wantErr string
	}{
		{"short secret", "short", 24, "at least 16 characters"},
		{"zero hours", "test-secret-key-123456", 0, "at least 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{JWTSecret: tt.secret, JWTExpirationHours: tt.hours}
			_, err := cfg.JWT()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
