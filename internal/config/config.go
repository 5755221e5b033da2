// ABOUTME: Configuration loading and parsing for wagate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wagate configuration
type Config struct {
	Environment string          `yaml:"environment"` // "production" or "development"
	Storage     StorageConfig   `yaml:"storage"`
	Database    DatabaseConfig  `yaml:"database"`
	Queue       QueueConfig     `yaml:"queue"`
	Auth        AuthConfig      `yaml:"auth"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
	Sessions    SessionsConfig  `yaml:"sessions"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// StorageConfig holds session credential storage configuration.
// SessionRoot is the preferred location; PersistentMount is the known
// durable disk mount tried next. A local ./sessions dir and (outside
// production) a temp dir round out the candidate list.
type StorageConfig struct {
	SessionRoot     string `yaml:"session_root"`
	PersistentMount string `yaml:"persistent_mount"`
	BackupDir       string `yaml:"backup_dir"` // optional; enables session backup/restore
}

// DatabaseConfig holds the tenant record database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig holds the inbound-message job queue configuration
type QueueConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds pairing negotiation configuration
type AuthConfig struct {
	QRTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	QRTimeoutRaw string `yaml:"qr_timeout"`
}

// ReconnectConfig holds the automatic reconnection policy
type ReconnectConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	BaseDelay time.Duration `yaml:"-"`
	MaxDelay  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	BaseDelayRaw string `yaml:"base_delay"`
	MaxDelayRaw  string `yaml:"max_delay"`
}

// SessionsConfig holds session retention and metadata cache configuration
type SessionsConfig struct {
	RetentionDays int `yaml:"retention_days"`

	SweepInterval time.Duration `yaml:"-"`
	MetadataTTL   time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SweepIntervalRaw string `yaml:"sweep_interval"`
	MetadataTTLRaw   string `yaml:"metadata_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Production reports whether the config declares a production environment.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in the fields that have sensible fallbacks.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Auth.QRTimeout == 0 {
		c.Auth.QRTimeout = 30 * time.Second
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 10
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = 5 * time.Second
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = 60 * time.Second
	}
	if c.Reconnect.BackoffMultiplier == 0 {
		c.Reconnect.BackoffMultiplier = 1.5
	}
	if c.Sessions.RetentionDays == 0 {
		c.Sessions.RetentionDays = 30
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = 24 * time.Hour
	}
	if c.Sessions.MetadataTTL == 0 {
		c.Sessions.MetadataTTL = time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Environment != "production" && c.Environment != "development" {
		return fmt.Errorf("environment must be production or development, got %q", c.Environment)
	}

	if c.Storage.SessionRoot == "" {
		return fmt.Errorf("storage.session_root is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Queue.Path == "" {
		return fmt.Errorf("queue.path is required")
	}

	if c.Reconnect.BackoffMultiplier < 1 {
		return fmt.Errorf("reconnect.backoff_multiplier must be >= 1, got %v", c.Reconnect.BackoffMultiplier)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.QRTimeoutRaw != "" {
		cfg.Auth.QRTimeout, err = time.ParseDuration(cfg.Auth.QRTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing qr_timeout %q: %w", cfg.Auth.QRTimeoutRaw, err)
		}
	}

	if cfg.Reconnect.BaseDelayRaw != "" {
		cfg.Reconnect.BaseDelay, err = time.ParseDuration(cfg.Reconnect.BaseDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing base_delay %q: %w", cfg.Reconnect.BaseDelayRaw, err)
		}
	}

	if cfg.Reconnect.MaxDelayRaw != "" {
		cfg.Reconnect.MaxDelay, err = time.ParseDuration(cfg.Reconnect.MaxDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing max_delay %q: %w", cfg.Reconnect.MaxDelayRaw, err)
		}
	}

	if cfg.Sessions.SweepIntervalRaw != "" {
		cfg.Sessions.SweepInterval, err = time.ParseDuration(cfg.Sessions.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Sessions.SweepIntervalRaw, err)
		}
	}

	if cfg.Sessions.MetadataTTLRaw != "" {
		cfg.Sessions.MetadataTTL, err = time.ParseDuration(cfg.Sessions.MetadataTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing metadata_ttl %q: %w", cfg.Sessions.MetadataTTLRaw, err)
		}
	}

	return nil
}
