package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Languages LanguageConfig  `mapstructure:"languages"`
	Explain   ExplainConfig   `mapstructure:"explain"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport          string `mapstructure:"transport"`
	HTTPPort           int    `mapstructure:"http_port"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`

	// Proxy IPs or CIDRs whose X-Forwarded-For is honoured. Empty means the
	// socket peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	TempDir       string `mapstructure:"temp_dir"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// LanguageConfig holds language-specific configurations
type LanguageConfig struct {
	Python PythonConfig `mapstructure:"python"`
	Java   JavaConfig   `mapstructure:"java"`
}

// PythonConfig holds Python-specific configuration.
// Environment entries use the KEY=VALUE form and are appended to the host environment.
type PythonConfig struct {
	Command     string   `mapstructure:"command"`
	Environment []string `mapstructure:"environment"`
}

// JavaConfig holds Java-specific configuration
type JavaConfig struct {
	Compiler    string   `mapstructure:"compiler"`
	Runtime     string   `mapstructure:"runtime"`
	Environment []string `mapstructure:"environment"`
}

// ExplainConfig holds the chat model used to explain execution errors
type ExplainConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Host        string  `mapstructure:"host"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	TimeoutSec  int     `mapstructure:"timeout_sec"`
}

// RateLimitConfig holds per-client request rate limiting
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CODELAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.shutdown_timeout_sec", 15)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.temp_dir", "")
	v.SetDefault("sandbox.max_concurrent", 0)

	v.SetDefault("languages.python.command", "python3")
	v.SetDefault("languages.java.compiler", "javac")
	v.SetDefault("languages.java.runtime", "java")

	v.SetDefault("explain.enabled", true)
	v.SetDefault("explain.host", "http://localhost:11434")
	v.SetDefault("explain.model", "gpt-4")
	v.SetDefault("explain.temperature", 0.3)
	v.SetDefault("explain.timeout_sec", 30)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("invalid server.trusted_proxies entry: %s", proxy)
		}
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MaxConcurrent < 0 {
		return fmt.Errorf("sandbox.max_concurrent must not be negative, got: %d", c.Sandbox.MaxConcurrent)
	}

	if c.Languages.Python.Command == "" {
		return fmt.Errorf("languages.python.command must be set")
	}

	if c.Languages.Java.Compiler == "" || c.Languages.Java.Runtime == "" {
		return fmt.Errorf("languages.java.compiler and languages.java.runtime must be set")
	}

	if c.Explain.Enabled {
		if c.Explain.Model == "" {
			return fmt.Errorf("explain.model must be set when explain.enabled is true")
		}
		if c.Explain.Temperature < 0 || c.Explain.Temperature > 2 {
			return fmt.Errorf("explain.temperature must be between 0 and 2, got: %v", c.Explain.Temperature)
		}
		if c.Explain.TimeoutSec <= 0 {
			return fmt.Errorf("explain.timeout_sec must be positive, got: %d", c.Explain.TimeoutSec)
		}
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.requests_per_second and ratelimit.burst must be positive when ratelimit.enabled is true")
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetExplainTimeout returns the chat model call timeout as a duration
func (c *Config) GetExplainTimeout() time.Duration {
	return time.Duration(c.Explain.TimeoutSec) * time.Second
}

// GetShutdownTimeout returns the graceful shutdown budget as a duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
