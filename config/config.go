package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Languages LanguagesConfig `mapstructure:"languages"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds transport configuration for the MCP server and REST API
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	MCPPort   int    `mapstructure:"mcp_port"`
	APIPort   int    `mapstructure:"api_port"`
}

// SandboxConfig holds execution sandbox configuration
type SandboxConfig struct {
	// Enabled turns on the security deny-list scan and the in-language
	// filesystem-confinement header. Off means scripts run unscreened.
	Enabled     bool   `mapstructure:"enabled"`
	TimeoutSec  int    `mapstructure:"timeout_sec"`
	TempRoot    string `mapstructure:"temp_root"`
	MaxOutputKB int    `mapstructure:"max_output_kb"`
	MaxScriptKB int    `mapstructure:"max_script_kb"`
}

// RegistryConfig holds the script registry configuration
type RegistryConfig struct {
	CatalogPath        string `mapstructure:"catalog_path"`
	ScriptsDir         string `mapstructure:"scripts_dir"`
	RemoteTimeoutSec   int    `mapstructure:"remote_timeout_sec"`
	GitCloneTimeoutSec int    `mapstructure:"git_clone_timeout_sec"`
}

// LanguagesConfig holds per-language interpreter settings
type LanguagesConfig struct {
	Python LanguageSettings `mapstructure:"python"`
	R      LanguageSettings `mapstructure:"r"`
	Scilab LanguageSettings `mapstructure:"scilab"`
}

// LanguageSettings configures a single language runtime
type LanguageSettings struct {
	Enabled     bool   `mapstructure:"enabled"`
	Interpreter string `mapstructure:"interpreter"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.mcp_port", 8080)
	viper.SetDefault("server.api_port", 8081)

	viper.SetDefault("sandbox.enabled", true)
	viper.SetDefault("sandbox.timeout_sec", 30)
	viper.SetDefault("sandbox.temp_root", "")
	viper.SetDefault("sandbox.max_output_kb", 1024)
	viper.SetDefault("sandbox.max_script_kb", 1024)

	viper.SetDefault("registry.catalog_path", "scripts.yaml")
	viper.SetDefault("registry.scripts_dir", "scripts")
	viper.SetDefault("registry.remote_timeout_sec", 30)
	viper.SetDefault("registry.git_clone_timeout_sec", 60)

	viper.SetDefault("languages.python.enabled", true)
	viper.SetDefault("languages.python.interpreter", "python3")
	viper.SetDefault("languages.r.enabled", true)
	viper.SetDefault("languages.r.interpreter", "Rscript")
	viper.SetDefault("languages.scilab.enabled", true)
	viper.SetDefault("languages.scilab.interpreter", "scilab-cli")

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}

	if c.Sandbox.MaxScriptKB <= 0 {
		return fmt.Errorf("sandbox.max_script_kb must be positive, got: %d", c.Sandbox.MaxScriptKB)
	}

	if c.Registry.RemoteTimeoutSec <= 0 {
		return fmt.Errorf("registry.remote_timeout_sec must be positive, got: %d", c.Registry.RemoteTimeoutSec)
	}

	if c.Registry.GitCloneTimeoutSec <= 0 {
		return fmt.Errorf("registry.git_clone_timeout_sec must be positive, got: %d", c.Registry.GitCloneTimeoutSec)
	}

	return nil
}

// GetTimeout returns the default execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetRemoteTimeout returns the remote delegate timeout as a duration
func (c *Config) GetRemoteTimeout() time.Duration {
	return time.Duration(c.Registry.RemoteTimeoutSec) * time.Second
}

// GetGitCloneTimeout returns the git clone timeout as a duration
func (c *Config) GetGitCloneTimeout() time.Duration {
	return time.Duration(c.Registry.GitCloneTimeoutSec) * time.Second
}
