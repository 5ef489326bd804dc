// Package main is the entry point for the Scriptbox execution server.
//
// Scriptbox is a sandboxed script execution service for LLM and orchestration
// callers. It runs Python, R, and Scilab scripts in ephemeral workspaces with
// restricted environments and hard timeouts, exposes wrapper generators for
// optimization and simulation workloads, and serves a registry of curated
// scripts resolved from inline code, local files, remote delegates, or git
// repositories. Tools are exposed over the Model Context Protocol (stdio or
// HTTP) alongside a REST API.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/httpapi"
	"github.com/isdmx/scriptbox/logger"
	"github.com/isdmx/scriptbox/mcpserver"
	"github.com/isdmx/scriptbox/registry"
	"github.com/isdmx/scriptbox/sandbox"
)

// newValidator builds the security validator from the sandbox mode flag.
func newValidator(cfg *config.Config, log *zap.Logger, metrics *sandbox.Metrics) *sandbox.Validator {
	return sandbox.NewValidator(cfg.Sandbox.Enabled, log,
		sandbox.WithValidatorMetrics(metrics))
}

// newExecutor builds the executor with adapters for the enabled languages,
// each bound to its configured interpreter.
func newExecutor(cfg *config.Config, log *zap.Logger, metrics *sandbox.Metrics) *sandbox.Executor {
	var adapters []sandbox.Adapter
	if cfg.Languages.Python.Enabled {
		adapters = append(adapters, sandbox.NewPythonAdapter(cfg.Languages.Python.Interpreter))
	}
	if cfg.Languages.R.Enabled {
		adapters = append(adapters, sandbox.NewRAdapter(cfg.Languages.R.Interpreter))
	}
	if cfg.Languages.Scilab.Enabled {
		adapters = append(adapters, sandbox.NewScilabAdapter(cfg.Languages.Scilab.Interpreter))
	}

	return sandbox.NewExecutor(log, sandbox.ExecutorConfig{
		TempRoot:       cfg.Sandbox.TempRoot,
		SandboxEnabled: cfg.Sandbox.Enabled,
		DefaultTimeout: cfg.GetTimeout(),
		MaxOutputBytes: cfg.Sandbox.MaxOutputKB * 1024,
	},
		sandbox.WithAdapters(sandbox.NewAdapterSet(adapters...)),
		sandbox.WithMetrics(metrics),
	)
}

// newRegistry loads the script catalog and wires the source loaders.
func newRegistry(cfg *config.Config, log *zap.Logger, exec *sandbox.Executor, validator *sandbox.Validator) (*registry.Registry, error) {
	return registry.New(log, registry.Config{
		CatalogPath:     cfg.Registry.CatalogPath,
		ScriptsDir:      cfg.Registry.ScriptsDir,
		RemoteTimeout:   cfg.GetRemoteTimeout(),
		GitCloneTimeout: cfg.GetGitCloneTimeout(),
	}, exec, validator)
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Metrics on a private registry
			sandbox.NewMetrics,

			// Security validator and sandbox executor
			newValidator,
			newExecutor,

			// Script registry with source loaders
			newRegistry,

			// MCP server and REST API
			mcpserver.New,
			httpapi.New,
		),

		// Start the MCP transport and the REST API
		fx.Invoke(
			func(cfg *config.Config, mcp *mcpserver.MCPServer, api *httpapi.Server) {
				switch cfg.Server.Transport {
				case "stdio":
					go func() {
						if err := mcp.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := mcp.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}

				go func() {
					if err := api.Start(); err != nil {
						panic(err)
					}
				}()
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
