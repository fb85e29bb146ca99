// Package config provides configuration management for the digest.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Market data defaults
const (
	defaultProvider          = "yahoo"
	defaultRequestsPerMinute = 120
	defaultBurst             = 5
	defaultWindowRange       = "5d"
	defaultInterval          = "1d"
)

// SMTP defaults
const (
	defaultSMTPHost = "smtp.gmail.com"
	defaultSMTPPort = 587
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Paths       PathsConfig       `yaml:"paths"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Notify      NotifyConfig      `yaml:"notify"`
	Preview     PreviewConfig     `yaml:"preview"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode      string `yaml:"mode"`       // live | offline
	LogLevel  string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format"` // text | json
}

// MarketDataConfig defines the price source settings.
type MarketDataConfig struct {
	Provider          string               `yaml:"provider"`
	BaseURL           string               `yaml:"base_url"`
	RequestsPerMinute int                  `yaml:"requests_per_minute"`
	Burst             int                  `yaml:"burst"`
	Timeout           string               `yaml:"timeout"` // empty keeps transport defaults
	WindowRange       string               `yaml:"window_range"`
	Interval          string               `yaml:"interval"`
	CircuitBreaker    CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker around the price source.
type CircuitBreakerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MaxRequests  uint32  `yaml:"max_requests"`
	Interval     string  `yaml:"interval"`
	Timeout      string  `yaml:"timeout"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// PathsConfig locates the report inputs.
type PathsConfig struct {
	Positions    string `yaml:"positions"`
	Trades       string `yaml:"trades"`
	Summary      string `yaml:"summary"`
	AnalysisGlob string `yaml:"analysis_glob"`
	Watchlist    string `yaml:"watchlist"`
}

// SMTPConfig defines outbound mail settings.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	Cc       []string `yaml:"cc"`
	Bcc      []string `yaml:"bcc"`
}

// NotifyConfig points at the recipient-group file.
type NotifyConfig struct {
	Path string `yaml:"path"`
}

// PreviewConfig defines the preview server settings.
type PreviewConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.normalize()
	return c
}

// Load reads and parses the configuration file from the specified path, then
// overlays the environment.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyEnv()
	config.normalize()

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads configPath when it exists. A missing file is only an
// error when required is set; otherwise defaults plus environment are used.
func LoadOrDefault(configPath string, required bool) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && !required {
		c := &Config{}
		c.applyEnv()
		c.normalize()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return c, nil
	}
	return Load(configPath)
}

// applyEnv overlays the SMTP and logging environment variables, which take
// priority over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.SMTP.Port = p
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.SMTP.From = v
	}
	if v := os.Getenv("EMAIL_CC"); v != "" {
		c.SMTP.Cc = ParseAddressList(v)
	}
	if v := os.Getenv("EMAIL_BCC"); v != "" {
		c.SMTP.Bcc = ParseAddressList(v)
	}
	if v := os.Getenv("DIGEST_LOG_LEVEL"); v != "" {
		c.Environment.LogLevel = v
	}
}

// normalize sets default values for unset fields
func (c *Config) normalize() {
	if c.Environment.Mode == "" {
		c.Environment.Mode = "live"
	}
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Environment.LogFormat == "" {
		c.Environment.LogFormat = "text"
	}

	md := &c.MarketData
	if md.Provider == "" {
		md.Provider = defaultProvider
	}
	if md.RequestsPerMinute == 0 {
		md.RequestsPerMinute = defaultRequestsPerMinute
	}
	if md.Burst == 0 {
		md.Burst = defaultBurst
	}
	if md.WindowRange == "" {
		md.WindowRange = defaultWindowRange
	}
	if md.Interval == "" {
		md.Interval = defaultInterval
	}

	if c.SMTP.Host == "" {
		c.SMTP.Host = defaultSMTPHost
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = defaultSMTPPort
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}

	if c.Notify.Path == "" {
		c.Notify.Path = "notify.yaml"
	}
	if c.Preview.Port == 0 {
		c.Preview.Port = 8080
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	// Environment validation
	if c.Environment.Mode != "live" && c.Environment.Mode != "offline" {
		return fmt.Errorf("environment.mode must be 'live' or 'offline'")
	}
	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}
	if c.Environment.LogFormat != "text" && c.Environment.LogFormat != "json" {
		return fmt.Errorf("environment.log_format must be 'text' or 'json'")
	}

	// Market data validation
	if c.MarketData.Provider != "yahoo" {
		return fmt.Errorf("market_data.provider must be 'yahoo'")
	}
	if c.MarketData.RequestsPerMinute < 0 {
		return fmt.Errorf("market_data.requests_per_minute must be >= 0")
	}
	if c.MarketData.Burst < 0 {
		return fmt.Errorf("market_data.burst must be >= 0")
	}
	if c.MarketData.Timeout != "" {
		if _, err := time.ParseDuration(c.MarketData.Timeout); err != nil {
			return fmt.Errorf("market_data.timeout invalid: %w", err)
		}
	}
	cb := c.MarketData.CircuitBreaker
	for name, v := range map[string]string{"interval": cb.Interval, "timeout": cb.Timeout} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("market_data.circuit_breaker.%s invalid: %w", name, err)
		}
	}
	if cb.FailureRatio < 0 || cb.FailureRatio > 1 {
		return fmt.Errorf("market_data.circuit_breaker.failure_ratio must be between 0 and 1")
	}

	// SMTP validation
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be between 1 and 65535")
	}

	// Preview validation
	if c.Preview.Port <= 0 || c.Preview.Port > 65535 {
		return fmt.Errorf("preview.port must be between 1 and 65535")
	}

	return nil
}

// IsOffline returns true if prices come from the deterministic mock source.
func (c *Config) IsOffline() bool {
	return c.Environment.Mode == "offline"
}

// GetTimeout returns the market data HTTP timeout; zero means transport defaults.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.MarketData.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ParseAddressList splits a comma-separated address list, dropping blanks.
func ParseAddressList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
