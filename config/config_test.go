package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			MCPPort:   8080,
			APIPort:   8081,
		},
		Sandbox: SandboxConfig{
			Enabled:     true,
			TimeoutSec:  30,
			MaxOutputKB: 1024,
			MaxScriptKB: 1024,
		},
		Registry: RegistryConfig{
			CatalogPath:        "scripts.yaml",
			ScriptsDir:         "scripts",
			RemoteTimeoutSec:   30,
			GitCloneTimeoutSec: 60,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := validConfig()
		err := cfg.validate()
		require.NoError(t, err)
	})

	t.Run("InvalidServerTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "invalid"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.transport")
	})

	t.Run("InvalidSandboxTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.TimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.timeout_sec must be positive")
	})

	t.Run("InvalidMaxOutput", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MaxOutputKB = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.max_output_kb must be positive")
	})

	t.Run("InvalidMaxScript", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MaxScriptKB = -1

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.max_script_kb must be positive")
	})

	t.Run("InvalidRemoteTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Registry.RemoteTimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry.remote_timeout_sec must be positive")
	})

	t.Run("InvalidGitCloneTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Registry.GitCloneTimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry.git_clone_timeout_sec must be positive")
	})

	t.Run("StdioTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "stdio"

		err := cfg.validate()
		require.NoError(t, err)
	})
}

func TestConfigDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Sandbox.TimeoutSec = 45
	cfg.Registry.RemoteTimeoutSec = 15
	cfg.Registry.GitCloneTimeoutSec = 90

	assert.Equal(t, 45*time.Second, cfg.GetTimeout())
	assert.Equal(t, 15*time.Second, cfg.GetRemoteTimeout())
	assert.Equal(t, 90*time.Second, cfg.GetGitCloneTimeout())
}
