// Package httpapi provides the REST surface of the execution service: the
// task endpoint, the registry endpoints, health, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/registry"
	"github.com/isdmx/scriptbox/sandbox"
	"github.com/isdmx/scriptbox/scriptgen"
)

const maxRequestBodyBytes = 8 << 20

// Server is the HTTP server for the REST API.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	executor  *sandbox.Executor
	validator *sandbox.Validator
	registry  *registry.Registry
	metrics   *sandbox.Metrics
	router    chi.Router
	http      *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, logger *zap.Logger, executor *sandbox.Executor, validator *sandbox.Validator, reg *registry.Registry, metrics *sandbox.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		executor:  executor,
		validator: validator,
		registry:  reg,
		metrics:   metrics,
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Post("/tasks/execute", s.handleExecuteTask)

		r.Get("/scripts", s.handleListScripts)
		r.Get("/scripts/{id}/schema", s.handleScriptSchema)
		r.Post("/scripts/{id}/execute", s.handleExecuteScript)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// taskRequest is the body of POST /api/tasks/execute. Variables carries the
// execution_type, an optional script_content, and optional parameters for
// synthesized scripts.
type taskRequest struct {
	TaskName  string         `json:"task_name"`
	Variables map[string]any `json:"variables"`
}

// handleExecuteTask runs a named task: either the caller's script_content or
// a script synthesized from the task name and execution type.
func (s *Server) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.TaskName) == "" {
		s.writeError(w, http.StatusBadRequest, sandbox.ErrKindValidation, "task_name is required")
		return
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}

	script, _ := req.Variables["script_content"].(string)
	synthesized := false
	if strings.TrimSpace(script) == "" {
		generated, err := scriptgen.FromTask(req.TaskName, req.Variables)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, sandbox.ErrKindValidation, err.Error())
			return
		}
		script = generated
		synthesized = true
	}

	s.logger.Info("task execution requested",
		zap.String("task_name", req.TaskName),
		zap.Bool("synthesized", synthesized))

	// Caller fragments are scanned before assembly; synthesized scripts are
	// still scanned after assembly like everything else.
	if !synthesized {
		if v := s.validator.Validate(script, sandbox.LanguagePython); !v.Valid {
			s.writeSecurityError(w, v)
			return
		}
	}

	adapter, err := s.executor.Adapters().Get(sandbox.LanguagePython)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, sandbox.ErrKindInternal, err.Error())
		return
	}

	parameters, _ := req.Variables["parameters"].(map[string]any)
	final, err := adapter.BuildScript(script, parameters, s.executor.SandboxEnabled())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, sandbox.ErrKindInternal, err.Error())
		return
	}

	if v := s.validator.Validate(final, sandbox.LanguagePython); !v.Valid {
		s.writeSecurityError(w, v)
		return
	}

	result := s.executor.Execute(r.Context(), sandbox.ExecRequest{
		ScriptID: "task-" + req.TaskName,
		Language: sandbox.LanguagePython,
		Script:   final,
	})

	status := http.StatusOK
	if !result.Success {
		status = statusForKind(result.ErrorKind)
	}
	s.writeJSON(w, status, result)
}

func (s *Server) handleListScripts(w http.ResponseWriter, _ *http.Request) {
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

	s.writeJSON(w, http.StatusOK, map[string]any{"scripts": out, "count": len(out)})
}

func (s *Server) handleScriptSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, sandbox.ErrKindValidation, "unknown script id: "+id)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"script_id":     entry.ID,
		"name":          entry.Name,
		"input_schema":  entry.InputSchema,
		"output_schema": entry.OutputSchema,
	})
}

type executeScriptRequest struct {
	InputData map[string]any `json:"input_data"`
}

func (s *Server) handleExecuteScript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req executeScriptRequest
	if r.ContentLength != 0 {
		if err := s.decodeBody(w, r, &req); err != nil {
			return
		}
	}

	env := s.registry.Execute(r.Context(), id, req.InputData)

	status := http.StatusOK
	if env.Status == registry.StatusError {
		status = statusForKind(env.ErrorKind)
	}
	s.writeJSON(w, status, env)
}

// decodeBody parses the JSON request body, writing the error response itself
// on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, sandbox.ErrKindValidation, "invalid request body: "+err.Error())
		return err
	}
	return nil
}

func (s *Server) writeSecurityError(w http.ResponseWriter, v sandbox.ValidationResult) {
	patterns := make([]string, 0, len(v.Findings))
	for _, f := range v.Findings {
		patterns = append(patterns, f.Pattern)
	}
	s.logger.Warn("script rejected by security scan", zap.Strings("patterns", patterns))
	s.writeError(w, http.StatusForbidden, sandbox.ErrKindSecurity,
		"script rejected by security scan: "+strings.Join(patterns, ", "))
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind sandbox.ErrorKind, message string) {
	s.writeJSON(w, status, map[string]any{
		"success":    false,
		"error":      message,
		"error_kind": kind,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind sandbox.ErrorKind) int {
	switch kind {
	case sandbox.ErrKindValidation:
		return http.StatusBadRequest
	case sandbox.ErrKindSecurity:
		return http.StatusForbidden
	case sandbox.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case sandbox.ErrKindInterpreterNotFound, sandbox.ErrKindSourceFetch:
		return http.StatusBadGateway
	case sandbox.ErrKindRuntime:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening on the configured API port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.APIPort)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting REST API server", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
