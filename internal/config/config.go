// Package config handles configuration loading for the aula CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	defaultConfig "github.com/aula-chat/aula-go/config"
	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/logging"
	"github.com/aula-chat/aula-go/internal/rest"
)

const (
	// RCFileEnv overrides the configuration file path.
	RCFileEnv = "AULARC"
	// BaseURIEnv overrides server.base_uri.
	BaseURIEnv = "AULA_BASE_URI"
	// TokenEnv overrides server.token.
	TokenEnv = "AULA_TOKEN"

	rcFileName = ".aularc"
)

// ErrBaseURINotConfigured is returned by BaseURL when no server is set.
var ErrBaseURINotConfigured = errors.New("server.base_uri is not configured (set it in the config file or AULA_BASE_URI)")

// ServerConfig identifies the Aula server and the credentials to use.
type ServerConfig struct {
	BaseURI string `yaml:"base_uri"`
	Token   string `yaml:"token"`
}

// GatewayConfig holds gateway connection settings.
type GatewayConfig struct {
	// Intents is "all", a number, or a comma separated list of intent names.
	Intents string `yaml:"intents"`
}

// GlobalRateLimitConfig bounds requests across all routes.
type GlobalRateLimitConfig struct {
	// RequestsPerSecond of 0 disables the limit.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RestConfig holds REST pipeline settings.
type RestConfig struct {
	AllowConcurrentRequests bool                  `yaml:"allow_concurrent_requests"`
	GlobalRateLimit         GlobalRateLimitConfig `yaml:"global_rate_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
	JSON       bool   `yaml:"json"`
}

// Config represents the complete aula configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Rest    RestConfig    `yaml:"rest"`
	Logging LoggingConfig `yaml:"logging"`
}

// ConfigSource indicates where the configuration was loaded from.
type ConfigSource int

const (
	// ConfigSourceEmbeddedDefaults indicates no file was found.
	ConfigSourceEmbeddedDefaults ConfigSource = iota
	// ConfigSourceRCFile indicates configuration was loaded from ~/.aularc or equivalent.
	ConfigSourceRCFile
	// ConfigSourceCustomFile indicates configuration was loaded from a custom file (--config flag).
	ConfigSourceCustomFile
)

func (s ConfigSource) String() string {
	switch s {
	case ConfigSourceEmbeddedDefaults:
		return "embedded defaults"
	case ConfigSourceRCFile:
		return "rc file"
	case ConfigSourceCustomFile:
		return "custom file"
	default:
		return fmt.Sprintf("ConfigSource(%d)", int(s))
	}
}

// LoadResult contains the loaded configuration and metadata about its source.
type LoadResult struct {
	Config *Config
	Source ConfigSource
	// SourcePath is empty for embedded defaults.
	SourcePath string
}

// DefaultConfigPath returns the default configuration file path for the current platform.
func DefaultConfigPath() string {
	if envPath := os.Getenv(RCFileEnv); envPath != "" {
		return envPath
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		configDir = home
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = xdgConfig
		} else {
			home, _ := os.UserHomeDir()
			configDir = home
		}
	}

	return filepath.Join(configDir, rcFileName)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg := &Config{}
	if err := decode(defaultConfig.DefaultConfigYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: invalid embedded defaults: %v", err))
	}
	return cfg
}

// Load reads and parses the configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data. Keys missing from data keep their
// default values; unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadWithFallback loads configuration in order of precedence:
//  1. explicitPath (the --config flag), which must exist
//  2. the RC file at DefaultConfigPath, if it exists
//  3. the embedded defaults
//
// Environment overrides are applied to the result.
func LoadWithFallback(explicitPath string) (*LoadResult, error) {
	result := &LoadResult{}

	switch {
	case explicitPath != "":
		cfg, err := Load(explicitPath)
		if err != nil {
			return nil, err
		}
		result.Config = cfg
		result.Source = ConfigSourceCustomFile
		result.SourcePath = explicitPath

	default:
		rcPath := DefaultConfigPath()
		if _, err := os.Stat(rcPath); err == nil {
			cfg, err := Load(rcPath)
			if err != nil {
				return nil, err
			}
			result.Config = cfg
			result.Source = ConfigSourceRCFile
			result.SourcePath = rcPath
		} else {
			result.Config = Default()
			result.Source = ConfigSourceEmbeddedDefaults
		}
	}

	result.Config.ApplyEnv(os.Getenv)
	if err := result.Config.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyEnv overrides server settings with AULA_BASE_URI and AULA_TOKEN when
// they are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(BaseURIEnv); v != "" {
		c.Server.BaseURI = v
	}
	if v := getenv(TokenEnv); v != "" {
		c.Server.Token = v
	}
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	if c.Server.BaseURI != "" {
		if _, err := parseBaseURI(c.Server.BaseURI); err != nil {
			return err
		}
	}
	if _, err := c.Intents(); err != nil {
		return err
	}
	if c.Rest.GlobalRateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rest.global_rate_limit.requests_per_second must not be negative")
	}
	if c.Rest.GlobalRateLimit.Burst < 0 {
		return fmt.Errorf("rest.global_rate_limit.burst must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging.max_size_mb and logging.max_backups must not be negative")
	}
	return nil
}

// BaseURL returns the parsed server address.
func (c *Config) BaseURL() (*url.URL, error) {
	if c.Server.BaseURI == "" {
		return nil, ErrBaseURINotConfigured
	}
	return parseBaseURI(c.Server.BaseURI)
}

func parseBaseURI(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("server.base_uri: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("server.base_uri %q must be an absolute http or https URL", s)
	}
	return u, nil
}

// Intents returns the gateway intents. An empty setting means all intents.
func (c *Config) Intents() (gateway.Intents, error) {
	if strings.TrimSpace(c.Gateway.Intents) == "" {
		return gateway.IntentsAll, nil
	}
	intents, ok := gateway.ParseIntents(c.Gateway.Intents)
	if !ok {
		return 0, fmt.Errorf("gateway.intents %q is not valid", c.Gateway.Intents)
	}
	return intents, nil
}

// RestOptions returns the REST client options for this configuration.
func (c *Config) RestOptions() []rest.Option {
	return []rest.Option{
		rest.WithAllowConcurrentRequests(c.Rest.AllowConcurrentRequests),
		rest.WithGlobalRateLimit(c.Rest.GlobalRateLimit.RequestsPerSecond, c.Rest.GlobalRateLimit.Burst),
	}
}

// LoggingOptions returns the logging configuration. A non-empty file
// enables rotated file output.
func (c *Config) LoggingOptions() logging.Config {
	out := logging.Config{
		Level: strings.ToLower(c.Logging.Level),
		JSON:  c.Logging.JSON,
	}
	if out.Level == "" {
		out.Level = "info"
	}
	if c.Logging.File != "" {
		fileLog := logging.DefaultFileLogConfig()
		fileLog.Path = c.Logging.File
		if c.Logging.MaxSizeMB > 0 {
			fileLog.MaxSizeMB = c.Logging.MaxSizeMB
		}
		if c.Logging.MaxBackups > 0 {
			fileLog.MaxBackups = c.Logging.MaxBackups
		}
		fileLog.Compress = c.Logging.Compress
		out.FileLog = &fileLog
	}
	return out
}
