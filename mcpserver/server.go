// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes tools
// for sandboxed script execution. It uses the mark3labs/mcp-go library to
// handle the protocol details and provides per-language execution tools,
// wrapper-generator tools, and registry tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/registry"
	"github.com/isdmx/scriptbox/sandbox"
	"github.com/isdmx/scriptbox/scriptgen"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  *sandbox.Executor
	validator *sandbox.Validator
	registry  *registry.Registry
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor *sandbox.Executor, validator *sandbox.Validator, reg *registry.Registry) (*MCPServer, error) {
	s := &MCPServer{
		config:    cfg,
		logger:    logger,
		executor:  executor,
		validator: validator,
		registry:  reg,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.mcp_port", s.config.Server.MCPPort),
		zap.Int("server.api_port", s.config.Server.APIPort),
		zap.Bool("sandbox.enabled", s.config.Sandbox.Enabled),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.String("registry.catalog_path", s.config.Registry.CatalogPath),
		zap.String("languages.python.interpreter", s.config.Languages.Python.Interpreter),
		zap.String("languages.r.interpreter", s.config.Languages.R.Interpreter),
		zap.String("languages.scilab.interpreter", s.config.Languages.Scilab.Interpreter),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("scriptbox-executor", "A sandboxed script execution server")

	s.registerExecuteTools()
	s.registerGeneratorTools()
	s.registerRegistryTools()

	return s, nil
}

// registerExecuteTools registers one execute_<language>_script tool per
// enabled language.
func (s *MCPServer) registerExecuteTools() {
	type langTool struct {
		name     string
		language sandbox.Language
		enabled  bool
		desc     string
	}

	for _, lt := range []langTool{
		{"execute_python_script", sandbox.LanguagePython, s.config.Languages.Python.Enabled, "Execute a Python script in the sandbox"},
		{"execute_r_script", sandbox.LanguageR, s.config.Languages.R.Enabled, "Execute an R script in the sandbox"},
		{"execute_scilab_script", sandbox.LanguageScilab, s.config.Languages.Scilab.Enabled, "Execute a Scilab script in the sandbox"},
	} {
		if !lt.enabled {
			s.logger.Info("language disabled, tool not registered", zap.String("tool", lt.name))
			continue
		}

		tool := mcp.Tool{
			Name:        lt.name,
			Description: lt.desc,
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"script": map[string]any{
						"type":        "string",
						"description": "Script source code to execute",
					},
					"data": map[string]any{
						"type":        "object",
						"description": "Structured input made available to the script (optional)",
					},
					"timeout_seconds": map[string]any{
						"type":        "number",
						"description": "Hard wall-clock limit for this call (optional)",
					},
				},
				Required: []string{"script"},
			},
		}

		language := lt.language
		s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.handleExecuteScript(ctx, request, language)
		})
	}
}

// registerGeneratorTools registers optimize_function and run_simulation.
func (s *MCPServer) registerGeneratorTools() {
	optimizeTool := mcp.Tool{
		Name:        "optimize_function",
		Description: "Minimize a Python objective expression with scipy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"objective_function": map[string]any{
					"type":        "string",
					"description": "Python expression over a vector x, e.g. 'x[0]**2 + x[1]**2'",
				},
				"initial_guess": map[string]any{
					"type":        "array",
					"description": "Starting point for the minimizer",
					"items":       map[string]any{"type": "number"},
				},
				"constraints": map[string]any{
					"type":        "string",
					"description": "Python expression for a scipy constraints sequence (optional)",
				},
				"method": map[string]any{
					"type":        "string",
					"description": "Minimizer method, defaults to Nelder-Mead (optional)",
				},
				"timeout_seconds": map[string]any{
					"type":        "number",
					"description": "Hard wall-clock limit for this call (optional)",
				},
			},
			Required: []string{"objective_function", "initial_guess"},
		},
	}
	s.mcpServer.AddTool(optimizeTool, s.handleOptimizeFunction)

	simulateTool := mcp.Tool{
		Name:        "run_simulation",
		Description: "Run a Monte-Carlo simulation around a per-iteration Python fragment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"simulation_script": map[string]any{
					"type":        "string",
					"description": "Per-iteration Python logic that assigns its outcome to 'result'",
				},
				"iterations": map[string]any{
					"type":        "integer",
					"description": "Number of iterations, defaults to 1000 (optional)",
				},
				"parameters": map[string]any{
					"type":        "object",
					"description": "Values exposed to the fragment as 'parameters' (optional)",
				},
				"timeout_seconds": map[string]any{
					"type":        "number",
					"description": "Hard wall-clock limit for this call (optional)",
				},
			},
			Required: []string{"simulation_script"},
		},
	}
	s.mcpServer.AddTool(simulateTool, s.handleRunSimulation)
}

// registerRegistryTools registers list_scripts, get_script_schema, and
// execute_script.
func (s *MCPServer) registerRegistryTools() {
	listTool := mcp.Tool{
		Name:        "list_scripts",
		Description: "List the scripts available in the registry",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
	s.mcpServer.AddTool(listTool, s.handleListScripts)

	schemaTool := mcp.Tool{
		Name:        "get_script_schema",
		Description: "Return the input schema of a registered script",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"script_id": map[string]any{
					"type":        "string",
					"description": "Registry id of the script",
				},
			},
			Required: []string{"script_id"},
		},
	}
	s.mcpServer.AddTool(schemaTool, s.handleGetScriptSchema)

	executeTool := mcp.Tool{
		Name:        "execute_script",
		Description: "Execute a registered script with structured input",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"script_id": map[string]any{
					"type":        "string",
					"description": "Registry id of the script",
				},
				"input_data": map[string]any{
					"type":        "object",
					"description": "Input validated against the script's schema (optional)",
				},
			},
			Required: []string{"script_id"},
		},
	}
	s.mcpServer.AddTool(executeTool, s.handleExecuteRegistryScript)
}

// handleExecuteScript handles the per-language execute tools. The raw user
// fragment is scanned before assembly, and the assembled script again after,
// so deny-listed constructs cannot hide behind the injected header.
func (s *MCPServer) handleExecuteScript(ctx context.Context, request mcp.CallToolRequest, language sandbox.Language) (*mcp.CallToolResult, error) {
	script, err := request.RequireString("script")
	if err != nil {
		return nil, fmt.Errorf("script parameter is required: %w", err)
	}

	if maxBytes := s.config.Sandbox.MaxScriptKB * 1024; maxBytes > 0 && len(script) > maxBytes {
		return s.errorResult(sandbox.ErrKindValidation,
			fmt.Sprintf("script exceeds maximum size of %d KB", s.config.Sandbox.MaxScriptKB)), nil
	}

	data := objectArgument(request, "data")
	timeout := s.timeoutArgument(request)

	s.logger.Info("script execution requested",
		zap.String("language", string(language)),
		zap.Int("script_len", len(script)),
		zap.Bool("has_data", len(data) > 0))

	if v := s.validator.Validate(script, language); !v.Valid {
		return s.securityResult(language, v), nil
	}

	adapter, err := s.executor.Adapters().Get(language)
	if err != nil {
		return s.errorResult(sandbox.ErrKindValidation, err.Error()), nil
	}

	final, err := adapter.BuildScript(script, data, s.executor.SandboxEnabled())
	if err != nil {
		return s.errorResult(sandbox.ErrKindInternal, err.Error()), nil
	}

	if v := s.validator.Validate(final, language); !v.Valid {
		return s.securityResult(language, v), nil
	}

	result := s.executor.Execute(ctx, sandbox.ExecRequest{
		Language: language,
		Script:   final,
		Timeout:  timeout,
	})

	return s.executionResult(result), nil
}

// handleOptimizeFunction handles the optimize_function tool.
func (s *MCPServer) handleOptimizeFunction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	objective, err := request.RequireString("objective_function")
	if err != nil {
		return nil, fmt.Errorf("objective_function parameter is required: %w", err)
	}

	guess, err := floatsArgument(request, "initial_guess")
	if err != nil {
		return nil, err
	}

	// The user fragment is scanned on its own before it is wrapped, so a
	// deny-listed construct cannot be smuggled through the generator.
	if v := s.validator.Validate(objective, sandbox.LanguagePython); !v.Valid {
		return s.securityResult(sandbox.LanguagePython, v), nil
	}

	script, err := scriptgen.Optimization(objective, guess,
		request.GetString("constraints", ""),
		request.GetString("method", ""))
	if err != nil {
		return s.errorResult(sandbox.ErrKindValidation, err.Error()), nil
	}

	s.logger.Info("optimization requested", zap.Int("dimensions", len(guess)))

	return s.runGenerated(ctx, request, script)
}

// handleRunSimulation handles the run_simulation tool.
func (s *MCPServer) handleRunSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := request.RequireString("simulation_script")
	if err != nil {
		return nil, fmt.Errorf("simulation_script parameter is required: %w", err)
	}

	if v := s.validator.Validate(body, sandbox.LanguagePython); !v.Valid {
		return s.securityResult(sandbox.LanguagePython, v), nil
	}

	iterations := request.GetInt("iterations", 0)
	parameters := objectArgument(request, "parameters")

	script, err := scriptgen.Simulation(body, iterations, parameters)
	if err != nil {
		return s.errorResult(sandbox.ErrKindValidation, err.Error()), nil
	}

	s.logger.Info("simulation requested", zap.Int("iterations", iterations))

	return s.runGenerated(ctx, request, script)
}

// runGenerated validates and executes a generator-assembled Python script.
func (s *MCPServer) runGenerated(ctx context.Context, request mcp.CallToolRequest, script string) (*mcp.CallToolResult, error) {
	adapter, err := s.executor.Adapters().Get(sandbox.LanguagePython)
	if err != nil {
		return s.errorResult(sandbox.ErrKindValidation, err.Error()), nil
	}

	final, err := adapter.BuildScript(script, nil, s.executor.SandboxEnabled())
	if err != nil {
		return s.errorResult(sandbox.ErrKindInternal, err.Error()), nil
	}

	if v := s.validator.Validate(final, sandbox.LanguagePython); !v.Valid {
		return s.securityResult(sandbox.LanguagePython, v), nil
	}

	result := s.executor.Execute(ctx, sandbox.ExecRequest{
		Language: sandbox.LanguagePython,
		Script:   final,
		Timeout:  s.timeoutArgument(request),
	})

	return s.executionResult(result), nil
}

// handleListScripts handles the list_scripts tool.
func (s *MCPServer) handleListScripts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.registry.List()

	type listed struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Category    string `json:"category,omitempty"`
		Language    string `json:"language"`
		SourceType  string `json:"source_type"`
	}

	out := make([]listed, 0, len(entries))
	for _, e := range entries {
		out = append(out, listed{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Category:    e.Category,
			Language:    string(e.Language),
			SourceType:  string(e.SourceType),
		})
	}

	return s.jsonResult(map[string]any{"scripts": out, "count": len(out)})
}

// handleGetScriptSchema handles the get_script_schema tool.
func (s *MCPServer) handleGetScriptSchema(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("script_id")
	if err != nil {
		return nil, fmt.Errorf("script_id parameter is required: %w", err)
	}

	entry, ok := s.registry.Get(id)
	if !ok {
		return s.errorResult(sandbox.ErrKindValidation, "unknown script id: "+id), nil
	}

	return s.jsonResult(map[string]any{
		"script_id":     entry.ID,
		"name":          entry.Name,
		"input_schema":  entry.InputSchema,
		"output_schema": entry.OutputSchema,
	})
}

// handleExecuteRegistryScript handles the execute_script tool.
func (s *MCPServer) handleExecuteRegistryScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("script_id")
	if err != nil {
		return nil, fmt.Errorf("script_id parameter is required: %w", err)
	}

	input := objectArgument(request, "input_data")

	s.logger.Info("registry execution requested", zap.String("script_id", id))

	env := s.registry.Execute(ctx, id, input)
	return s.envelopeResult(env)
}

// executionResult converts a sandbox result into a tool result.
func (s *MCPServer) executionResult(result sandbox.Result) *mcp.CallToolResult {
	payload, err := json.Marshal(result)
	if err != nil {
		return s.errorResult(sandbox.ErrKindInternal, "encoding result: "+err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(payload)},
		},
		IsError: !result.Success,
	}
}

// envelopeResult converts a registry envelope into a tool result.
func (s *MCPServer) envelopeResult(env *registry.Envelope) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return s.errorResult(sandbox.ErrKindInternal, "encoding result: "+err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(payload)},
		},
		IsError: env.Status == registry.StatusError,
	}, nil
}

func (s *MCPServer) jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return s.errorResult(sandbox.ErrKindInternal, "encoding result: "+err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(payload)},
		},
	}, nil
}

func (s *MCPServer) securityResult(language sandbox.Language, v sandbox.ValidationResult) *mcp.CallToolResult {
	patterns := make([]string, 0, len(v.Findings))
	for _, f := range v.Findings {
		patterns = append(patterns, f.Pattern)
	}
	s.logger.Warn("script rejected by security scan",
		zap.String("language", string(language)),
		zap.Strings("patterns", patterns))
	return s.errorResult(sandbox.ErrKindSecurity,
		"script rejected by security scan: "+strings.Join(patterns, ", "))
}

func (s *MCPServer) errorResult(kind sandbox.ErrorKind, message string) *mcp.CallToolResult {
	payload, _ := json.Marshal(map[string]any{
		"success":    false,
		"error":      message,
		"error_kind": kind,
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(payload)},
		},
		IsError: true,
	}
}

// timeoutArgument reads the optional timeout_seconds parameter, falling back
// to the configured default. The value is per-call, never stored.
func (s *MCPServer) timeoutArgument(request mcp.CallToolRequest) time.Duration {
	secs := request.GetFloat("timeout_seconds", 0)
	if secs <= 0 {
		return s.config.GetTimeout()
	}
	return time.Duration(secs * float64(time.Second))
}

// objectArgument reads an optional object parameter from the raw arguments.
func objectArgument(request mcp.CallToolRequest, name string) map[string]any {
	args := request.GetArguments()
	if args == nil {
		return nil
	}
	obj, _ := args[name].(map[string]any)
	return obj
}

// floatsArgument reads a required array-of-numbers parameter.
func floatsArgument(request mcp.CallToolRequest, name string) ([]float64, error) {
	args := request.GetArguments()
	raw, ok := args[name].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%s parameter must be a non-empty array of numbers", name)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not a number", name, i)
		}
		out[i] = f
	}
	return out, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.MCPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
