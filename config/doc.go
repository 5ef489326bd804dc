// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files. It supports configuration for server
// transports, sandbox execution parameters, the script registry, and
// per-language interpreter settings.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox mode enabled: %v\n", cfg.Sandbox.Enabled)
package config
