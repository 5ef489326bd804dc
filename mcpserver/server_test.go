package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/registry"
	"github.com/isdmx/scriptbox/sandbox"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			MCPPort:   8080,
			APIPort:   8081,
		},
		Sandbox: config.SandboxConfig{
			Enabled:     true,
			TimeoutSec:  30,
			MaxOutputKB: 1024,
			MaxScriptKB: 1024,
		},
		Languages: config.LanguagesConfig{
			Python: config.LanguageSettings{Enabled: true, Interpreter: "python3"},
			R:      config.LanguageSettings{Enabled: true, Interpreter: "Rscript"},
			Scilab: config.LanguageSettings{Enabled: true, Interpreter: "scilab-cli"},
		},
		Logging: config.LoggingConfig{Mode: "production", Level: "info"},
	}
}

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := testConfig()

	// Interpreters deliberately do not exist so executions that get past
	// validation fail with interpreter_not_found instead of running code.
	executor := sandbox.NewExecutor(logger, sandbox.ExecutorConfig{
		TempRoot:       t.TempDir(),
		SandboxEnabled: true,
	}, sandbox.WithAdapters(sandbox.NewAdapterSet(
		sandbox.NewPythonAdapter("scriptbox-test-missing-python"),
	)))
	validator := sandbox.NewValidator(true, logger)

	reg, err := registry.New(logger, registry.Config{
		CatalogPath: t.TempDir() + "/absent.yaml",
	}, executor, validator)
	require.NoError(t, err)

	srv, err := New(cfg, logger, executor, validator, reg)
	require.NoError(t, err)
	return srv
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultPayload(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	executor := sandbox.NewExecutor(logger, sandbox.ExecutorConfig{TempRoot: t.TempDir()})
	validator := sandbox.NewValidator(true, logger)

	reg, err := registry.New(logger, registry.Config{CatalogPath: t.TempDir() + "/absent.yaml"}, executor, validator)
	require.NoError(t, err)

	srv, err := New(cfg, logger, executor, validator, reg)
	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.Equal(t, cfg, srv.config)
	assert.Equal(t, executor, srv.executor)
	assert.NotNil(t, srv.GetMCPServer())
}

func TestHandleExecuteScript(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("MissingScriptParameter", func(t *testing.T) {
		_, err := srv.handleExecuteScript(ctx, callRequest(map[string]any{}), sandbox.LanguagePython)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script parameter is required")
	})

	t.Run("SecurityRejection", func(t *testing.T) {
		res, err := srv.handleExecuteScript(ctx, callRequest(map[string]any{
			"script": "import subprocess\nsubprocess.run(['ls'])",
		}), sandbox.LanguagePython)
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Equal(t, "security_violation", payload["error_kind"])
		assert.Contains(t, payload["error"], "import subprocess")
	})

	t.Run("InterpreterNotFound", func(t *testing.T) {
		res, err := srv.handleExecuteScript(ctx, callRequest(map[string]any{
			"script": "print('hello')",
			"data":   map[string]any{"x": 1},
		}), sandbox.LanguagePython)
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Equal(t, false, payload["success"])
		assert.Equal(t, "interpreter_not_found", payload["error_kind"])
		assert.Contains(t, payload["error"], "not found")
	})

	t.Run("OversizedScript", func(t *testing.T) {
		big := make([]byte, 2<<20)
		for i := range big {
			big[i] = 'x'
		}

		res, err := srv.handleExecuteScript(ctx, callRequest(map[string]any{
			"script": string(big),
		}), sandbox.LanguagePython)
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Equal(t, "validation_error", payload["error_kind"])
		assert.Contains(t, payload["error"], "exceeds maximum size")
	})

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		res, err := srv.handleExecuteScript(ctx, callRequest(map[string]any{
			"script": "cat(1)",
		}), sandbox.LanguageR)
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Contains(t, payload["error"], "unsupported language")
	})
}

func TestHandleOptimizeFunction(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("MissingObjective", func(t *testing.T) {
		_, err := srv.handleOptimizeFunction(ctx, callRequest(map[string]any{
			"initial_guess": []any{0.0},
		}))
		require.Error(t, err)
	})

	t.Run("InvalidInitialGuess", func(t *testing.T) {
		_, err := srv.handleOptimizeFunction(ctx, callRequest(map[string]any{
			"objective_function": "x[0]**2",
			"initial_guess":      []any{"zero"},
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a number")
	})

	t.Run("FragmentScannedBeforeWrapping", func(t *testing.T) {
		res, err := srv.handleOptimizeFunction(ctx, callRequest(map[string]any{
			"objective_function": "eval(payload)",
			"initial_guess":      []any{0.0},
		}))
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Equal(t, "security_violation", payload["error_kind"])
	})

	t.Run("ReachesExecution", func(t *testing.T) {
		res, err := srv.handleOptimizeFunction(ctx, callRequest(map[string]any{
			"objective_function": "x[0]**2",
			"initial_guess":      []any{1.0, 2.0},
		}))
		require.NoError(t, err)

		// Assembly and both scans pass; the fake interpreter is missing.
		payload := resultPayload(t, res)
		assert.Equal(t, "interpreter_not_found", payload["error_kind"])
	})
}

func TestHandleRunSimulation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("MissingBody", func(t *testing.T) {
		_, err := srv.handleRunSimulation(ctx, callRequest(map[string]any{}))
		require.Error(t, err)
	})

	t.Run("FragmentScanned", func(t *testing.T) {
		res, err := srv.handleRunSimulation(ctx, callRequest(map[string]any{
			"simulation_script": "result = __import__('os').getpid()",
		}))
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Equal(t, "security_violation", payload["error_kind"])
	})

	t.Run("ReachesExecution", func(t *testing.T) {
		res, err := srv.handleRunSimulation(ctx, callRequest(map[string]any{
			"simulation_script": "result = random.random()",
			"iterations":        50,
			"parameters":        map[string]any{"scale": 2.0},
		}))
		require.NoError(t, err)

		payload := resultPayload(t, res)
		assert.Equal(t, "interpreter_not_found", payload["error_kind"])
	})
}

func TestRegistryTools(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("ListScriptsEmpty", func(t *testing.T) {
		res, err := srv.handleListScripts(ctx, callRequest(nil))
		require.NoError(t, err)

		payload := resultPayload(t, res)
		assert.Equal(t, float64(0), payload["count"])
	})

	t.Run("SchemaUnknownID", func(t *testing.T) {
		res, err := srv.handleGetScriptSchema(ctx, callRequest(map[string]any{
			"script_id": "nope",
		}))
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Contains(t, payload["error"], "unknown script id")
	})

	t.Run("ExecuteUnknownID", func(t *testing.T) {
		res, err := srv.handleExecuteRegistryScript(ctx, callRequest(map[string]any{
			"script_id": "nope",
		}))
		require.NoError(t, err)
		require.True(t, res.IsError)

		payload := resultPayload(t, res)
		assert.Equal(t, "error", payload["status"])
	})
}
