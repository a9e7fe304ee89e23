package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the rate limit of one route, matched on method and path suffix.
type EndpointConfig struct {
	Suffix string        // Path suffix such as "/start"; workflow ids vary in front of it
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// key identifies the bucket family of the route, independent of the workflow id
func (c *EndpointConfig) key() string {
	return c.Method + " *" + c.Suffix
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) *Config {
	if !getEnvBool(getenv, "RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	startLimit := getEnvInt(getenv, "RATE_LIMIT_START_LIMIT", 10)
	uploadLimit := getEnvInt(getenv, "RATE_LIMIT_UPLOAD_LIMIT", 60)

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt(getenv, "RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   getEnvDuration(getenv, "RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration(getenv, "RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(startLimit, uploadLimit),
	}
}

// DefaultEndpointConfigs returns the route limits of the workflow API.
// Starting a workflow triggers paid document-parsing and LLM calls, so it is the strictest.
func DefaultEndpointConfigs(startPerHour, uploadsPerMinute int) []EndpointConfig {
	uploadBurst := max(uploadsPerMinute/6, 1)
	return []EndpointConfig{
		{Suffix: "/start", Method: "POST", Limit: startPerHour, Window: time.Hour, Burst: max(startPerHour/5, 1)},
		{Suffix: "/setup", Method: "POST", Limit: uploadsPerMinute, Window: time.Minute, Burst: uploadBurst},
		{Suffix: "/resume", Method: "POST", Limit: uploadsPerMinute, Window: time.Minute, Burst: uploadBurst},
		{Suffix: "/application-form", Method: "POST", Limit: uploadsPerMinute, Window: time.Minute, Burst: uploadBurst},
	}
}

func getEnvInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
