// Package config provides configuration loading and validation for the resume-analysis service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default values applied by MergeWithDefaults
const (
	DefaultPort               = 8080
	DefaultLLMProvider        = "gemini"
	DefaultLlamaCloudBaseURL  = "https://api.cloud.eu.llamaindex.ai"
	DefaultStepTimeout        = 30 * time.Second
	DefaultStepRetryDelay     = time.Second
	DefaultPollInterval       = 3 * time.Second
	DefaultPollDeadline       = 30 * time.Second
	DefaultMaxUploadBytes     = 20 << 20
	DefaultJWTExpirationHours = 24
)

// Duration is a time.Duration that reads and writes as a Go duration string in JSON
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. Plain numbers are read as seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if numErr := json.Unmarshal(data, &secs); numErr != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the service configuration.
// Values come from an optional JSON file, then environment variables, then defaults.
type Config struct {
	// Server
	Port           int    `json:"port,omitempty" validate:"gte=0,lte=65535"`
	MaxUploadBytes int64  `json:"max_upload_bytes,omitempty" validate:"gte=0"`
	DatabaseURL    string `json:"database_url,omitempty"` // postgres://, sqlite:// or file:; empty keeps state in memory

	// External services
	LLMProvider       string `json:"llm_provider,omitempty" validate:"omitempty,oneof=gemini openai anthropic"`
	GeminiAPIKey      string `json:"gemini_api_key,omitempty"`
	OpenAIAPIKey      string `json:"openai_api_key,omitempty"`
	AnthropicAPIKey   string `json:"anthropic_api_key,omitempty"`
	LlamaCloudAPIKey  string `json:"llama_cloud_api_key,omitempty"`
	LlamaCloudBaseURL string `json:"llama_cloud_base_url,omitempty" validate:"omitempty,url"`

	// Step policy
	StepTimeout    Duration `json:"step_timeout,omitempty" validate:"gte=0"`
	StepMaxRetries int      `json:"step_max_retries,omitempty" validate:"gte=0"`
	StepRetryDelay Duration `json:"step_retry_delay,omitempty" validate:"gte=0"`
	PollInterval   Duration `json:"poll_interval,omitempty" validate:"gte=0"`
	PollDeadline   Duration `json:"poll_deadline,omitempty" validate:"gte=0"`

	// Setup documents
	SetupResumePath          string `json:"setup_resume_path,omitempty"`
	SetupApplicationFormPath string `json:"setup_application_form_path,omitempty"`

	// Auth
	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty" validate:"gte=0"`

	Verbose bool `json:"verbose,omitempty"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() Config {
	return Config{
		Port:               DefaultPort,
		MaxUploadBytes:     DefaultMaxUploadBytes,
		LLMProvider:        DefaultLLMProvider,
		LlamaCloudBaseURL:  DefaultLlamaCloudBaseURL,
		StepTimeout:        Duration(DefaultStepTimeout),
		StepRetryDelay:     Duration(DefaultStepRetryDelay),
		PollInterval:       Duration(DefaultPollInterval),
		PollDeadline:       Duration(DefaultPollDeadline),
		JWTExpirationHours: DefaultJWTExpirationHours,
	}
}

// Load reads the optional JSON file at path, applies environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields with the environment variables that are set
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATABASE_URL":                &c.DatabaseURL,
		"LLM_PROVIDER":                &c.LLMProvider,
		"GEMINI_API_KEY":              &c.GeminiAPIKey,
		"OPENAI_API_KEY":              &c.OpenAIAPIKey,
		"ANTHROPIC_API_KEY":           &c.AnthropicAPIKey,
		"LLAMA_CLOUD_API_KEY":         &c.LlamaCloudAPIKey,
		"LLAMA_CLOUD_BASE_URL":        &c.LlamaCloudBaseURL,
		"SETUP_RESUME_PATH":           &c.SetupResumePath,
		"SETUP_APPLICATION_FORM_PATH": &c.SetupApplicationFormPath,
		"JWT_SECRET":                  &c.JWTSecret,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":                 &c.Port,
		"STEP_MAX_RETRIES":     &c.StepMaxRetries,
		"JWT_EXPIRATION_HOURS": &c.JWTExpirationHours,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}

	durations := map[string]*Duration{
		"STEP_TIMEOUT":     &c.StepTimeout,
		"STEP_RETRY_DELAY": &c.StepRetryDelay,
		"POLL_INTERVAL":    &c.PollInterval,
		"POLL_DEADLINE":    &c.PollDeadline,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = Duration(d)
	}

	if v, ok := lookup("VERBOSE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	return nil
}

// Validate checks that the configuration has valid values.
// API keys are not required here; commands that call external services check them.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if (c.SetupResumePath == "") != (c.SetupApplicationFormPath == "") {
		return fmt.Errorf("config error: 'setup_resume_path' and 'setup_application_form_path' must be set together")
	}
	for _, p := range []string{c.SetupResumePath, c.SetupApplicationFormPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("config error: setup document not found: %s", p)
		}
	}

	if c.PollInterval > 0 && c.PollDeadline > 0 && c.PollInterval > c.PollDeadline {
		return fmt.Errorf("config error: 'poll_interval' must not exceed 'poll_deadline'")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// StepMaxRetries keeps zero since zero retries is the default policy.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LLMProvider == "" {
		result.LLMProvider = defaults.LLMProvider
	}
	if result.LlamaCloudBaseURL == "" {
		result.LlamaCloudBaseURL = defaults.LlamaCloudBaseURL
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.OpenAIAPIKey == "" {
		result.OpenAIAPIKey = defaults.OpenAIAPIKey
	}
	if result.AnthropicAPIKey == "" {
		result.AnthropicAPIKey = defaults.AnthropicAPIKey
	}
	if result.LlamaCloudAPIKey == "" {
		result.LlamaCloudAPIKey = defaults.LlamaCloudAPIKey
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}
	if result.StepTimeout == 0 {
		result.StepTimeout = defaults.StepTimeout
	}
	if result.StepRetryDelay == 0 {
		result.StepRetryDelay = defaults.StepRetryDelay
	}
	if result.PollInterval == 0 {
		result.PollInterval = defaults.PollInterval
	}
	if result.PollDeadline == 0 {
		result.PollDeadline = defaults.PollDeadline
	}

	return result
}

// LLMAPIKey returns the API key of the configured text-generation provider
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}

// RequireServices checks that the keys needed to call external services are present
func (c *Config) RequireServices() error {
	if c.LLMAPIKey() == "" {
		return fmt.Errorf("config error: API key for LLM provider %q is not set", c.LLMProvider)
	}
	if c.LlamaCloudAPIKey == "" {
		return fmt.Errorf("config error: LLAMA_CLOUD_API_KEY is not set")
	}
	return nil
}
