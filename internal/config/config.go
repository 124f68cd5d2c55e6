// Package config provides configuration management for fleetrun.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved run configuration. It is validated once at load and
// treated as immutable afterwards; nothing in the pipeline mutates it.
type Config struct {
	Username       string `mapstructure:"username"`        // login username
	Password       string `mapstructure:"password"`        // login password (usually prompted, never persisted)
	SecondPassword string `mapstructure:"second-password"` // answer for in-command password prompts
	KeyFile        string `mapstructure:"keyfile"`         // private key path
	Port           int    `mapstructure:"port"`            // target port

	JumpHost     string `mapstructure:"jumpbox"`          // optional intermediary host
	JumpUser     string `mapstructure:"jumpbox-username"` // username on the jumpbox
	JumpPassword string `mapstructure:"jumpbox-password"` // password on the jumpbox
	JumpPort     int    `mapstructure:"jumpbox-port"`     // jumpbox port

	ConnectTimeout time.Duration `mapstructure:"connect-timeout"` // per-connection timeout
	CmdTimeout     time.Duration `mapstructure:"cmd-timeout"`     // per-command response timeout
	Workers        int           `mapstructure:"workers"`         // worker pool cap
	Delay          time.Duration `mapstructure:"delay"`           // pause between dispatches

	Style        int    `mapstructure:"style"`         // table box style (0-3)
	CSV          bool   `mapstructure:"csv"`           // render CSV instead of a table
	CSVSeparator string `mapstructure:"csv-separator"` // CSV field separator
	Stacked      bool   `mapstructure:"stacked"`       // render stacked instead of a table
	Width        int    `mapstructure:"width"`         // render width (0 for auto)
	OutputFile   string `mapstructure:"output-file"`   // append results to this file

	ExtraPrompts     []string `mapstructure:"extra-prompts"` // additional password-prompt patterns
	VerifyFirstLogin bool     `mapstructure:"verify-login"`  // verify the first login before fanning out
	Progress         bool     `mapstructure:"progress"`      // show a progress display
	Debug            bool     `mapstructure:"debug"`         // emit per-event debug lines
	Quiet            bool     `mapstructure:"quiet"`         // suppress non-error log output
	LogFormat        string   `mapstructure:"log-format"`    // log format (json, text)
}

// HasJump reports whether a jumpbox is configured.
func (c *Config) HasJump() bool {
	return c.JumpHost != ""
}

// Manager defines the interface for configuration management
type Manager interface {
	// Load reads configuration from all sources (file, env vars, bound flags)
	Load() (*Config, error)

	// BindFlags gives command-line flags the highest precedence
	BindFlags(flags *pflag.FlagSet) error

	// SetDefaults establishes default configuration values
	SetDefaults()

	// Validate ensures configuration values are valid and consistent
	Validate(config *Config) error
}

// ViperManager implements the Manager interface using Viper
type ViperManager struct {
	v *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager() Manager {
	return &ViperManager{
		v: viper.New(),
	}
}

// SetDefaults establishes default configuration values
func (m *ViperManager) SetDefaults() {
	m.v.SetDefault("port", 22)
	m.v.SetDefault("jumpbox-port", 22)
	m.v.SetDefault("connect-timeout", 20*time.Second)
	m.v.SetDefault("cmd-timeout", 20*time.Second)
	m.v.SetDefault("workers", 100)
	m.v.SetDefault("delay", time.Duration(0))
	m.v.SetDefault("style", 0)
	m.v.SetDefault("csv", false)
	m.v.SetDefault("csv-separator", ",")
	m.v.SetDefault("stacked", false)
	m.v.SetDefault("width", 0)
	m.v.SetDefault("verify-login", false)
	m.v.SetDefault("progress", false)
	m.v.SetDefault("debug", false)
	m.v.SetDefault("quiet", false)
	m.v.SetDefault("log-format", "text")
}

// BindFlags gives command-line flags the highest precedence
func (m *ViperManager) BindFlags(flags *pflag.FlagSet) error {
	return m.v.BindPFlags(flags)
}

// Load reads configuration from all sources with proper precedence
func (m *ViperManager) Load() (*Config, error) {
	m.SetDefaults()

	m.v.SetConfigName("config")
	m.v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		m.v.AddConfigPath(filepath.Join(homeDir, ".config", "fleetrun"))
	}
	m.v.AddConfigPath("/etc/fleetrun/")

	m.v.SetEnvPrefix("FLEETRUN")
	m.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	m.v.AutomaticEnv()

	m.v.SetConfigType("yaml")
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := m.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate ensures configuration values are valid and consistent
func (m *ViperManager) Validate(config *Config) error {
	if config.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", config.Workers)
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port %d", config.Port)
	}
	if config.HasJump() && (config.JumpPort < 1 || config.JumpPort > 65535) {
		return fmt.Errorf("invalid jumpbox port %d", config.JumpPort)
	}

	if config.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be positive, got %v", config.ConnectTimeout)
	}
	if config.CmdTimeout <= 0 {
		return fmt.Errorf("cmd-timeout must be positive, got %v", config.CmdTimeout)
	}
	if config.Delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %v", config.Delay)
	}

	if config.CSV && config.Stacked {
		return fmt.Errorf("csv and stacked output are mutually exclusive")
	}
	if len(config.CSVSeparator) != 1 {
		return fmt.Errorf("csv-separator must be a single character, got %q", config.CSVSeparator)
	}
	if config.Width < 0 {
		return fmt.Errorf("width must be non-negative, got %d", config.Width)
	}

	switch config.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log-format '%s': must be 'json' or 'text'", config.LogFormat)
	}

	return nil
}
