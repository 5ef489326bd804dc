package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status tracks the per-call execution state machine:
// Created -> Running -> {Completed | Failed | TimedOut}.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

const (
	// DefaultTimeout bounds executions that do not request their own.
	DefaultTimeout = 30 * time.Second

	// defaultMaxOutputBytes caps stdout/stderr to prevent OOM from chatty scripts.
	defaultMaxOutputBytes = 1 << 20 // 1 MB
)

// ExecRequest describes one execution. Timeout is per-call state — the
// executor holds no mutable timeout field shared across requests.
type ExecRequest struct {
	// ScriptID labels the execution in results and logs. Empty generates an
	// opaque ad-hoc id.
	ScriptID string

	// Language selects the adapter whose interpreter runs the script.
	Language Language

	// Script is the final assembled script text, ready to write and run.
	Script string

	// Timeout is the hard wall-clock bound. Zero uses the executor default.
	Timeout time.Duration
}

// Result is the execution envelope. Exactly one Result is produced per
// request — never zero, never more — on success, failure, timeout, and
// interpreter-missing paths alike. Immutable after creation.
type Result struct {
	Success   bool          `json:"success"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"return_code"`
	ScriptID  string        `json:"script_id"`
	Language  Language      `json:"language"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Status    Status        `json:"-"`
	Duration  time.Duration `json:"-"`
}

// ExecutorConfig holds the executor settings.
type ExecutorConfig struct {
	// TempRoot is the directory under which per-call workspaces are created.
	// Empty uses the system temp directory.
	TempRoot string

	// SandboxEnabled is communicated to the child via SCRIPTBOX_SANDBOX.
	SandboxEnabled bool

	// DefaultTimeout applies when a request does not carry its own.
	DefaultTimeout time.Duration

	// MaxOutputBytes caps each of stdout and stderr.
	MaxOutputBytes int
}

// Executor orchestrates one execution per call: workspace, child process
// with restricted environment, timeout enforcement, guaranteed cleanup.
type Executor struct {
	logger   *zap.Logger
	cfg      ExecutorConfig
	adapters *AdapterSet
	metrics  *Metrics
}

// ExecutorOption defines a functional option for Executor
type ExecutorOption func(*Executor)

// WithAdapters replaces the built-in adapter set.
func WithAdapters(set *AdapterSet) ExecutorOption {
	return func(e *Executor) {
		e.adapters = set
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an Executor with default adapters and optional overrides.
func NewExecutor(logger *zap.Logger, cfg ExecutorConfig, opts ...ExecutorOption) *Executor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}

	e := &Executor{
		logger:   logger,
		cfg:      cfg,
		adapters: NewAdapterSet(DefaultAdapters()...),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Adapters exposes the adapter set for callers assembling scripts.
func (e *Executor) Adapters() *AdapterSet {
	return e.adapters
}

// SandboxEnabled reports whether sandbox mode is active.
func (e *Executor) SandboxEnabled() bool {
	return e.cfg.SandboxEnabled
}

// Execute runs one script to completion and always returns a Result.
func (e *Executor) Execute(ctx context.Context, req ExecRequest) Result {
	if req.ScriptID == "" {
		req.ScriptID = "adhoc-" + uuid.NewString()
	}

	start := time.Now()
	res := e.run(ctx, req)
	res.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.ObserveExecution(req.Language, res.Status, res.Duration)
	}

	e.logger.Info("execution finished",
		zap.String("script_id", res.ScriptID),
		zap.String("language", string(res.Language)),
		zap.String("status", string(res.Status)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))

	return res
}

func (e *Executor) run(ctx context.Context, req ExecRequest) Result {
	res := Result{
		ScriptID: req.ScriptID,
		Language: req.Language,
		Status:   StatusCreated,
		ExitCode: -1,
	}

	adapter, err := e.adapters.Get(req.Language)
	if err != nil {
		res.Status = StatusFailed
		res.ErrorKind = ErrKindValidation
		res.Error = err.Error()
		return res
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	ws, err := NewWorkspace(e.cfg.TempRoot)
	if err != nil {
		res.Status = StatusFailed
		res.ErrorKind = ErrKindInternal
		res.Error = err.Error()
		return res
	}
	// The workspace is removed on every exit path, leaked files included.
	defer func() {
		if dispErr := ws.Dispose(); dispErr != nil {
			e.logger.Warn("workspace cleanup failed",
				zap.String("dir", ws.Dir()),
				zap.Error(dispErr))
		}
	}()

	scriptName := "script-" + uuid.NewString() + adapter.FileExtension()
	scriptPath, err := ws.WriteScript(scriptName, []byte(req.Script))
	if err != nil {
		res.Status = StatusFailed
		res.ErrorKind = ErrKindInternal
		res.Error = err.Error()
		return res
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := adapter.Command(scriptPath)
	cmd := exec.CommandContext(tctx, argv[0], argv[1:]...) //nolint:gosec // Interpreter argv is adapter-controlled
	cmd.Dir = ws.Dir()
	cmd.Env = e.buildEnv(ws.Dir())

	// The child runs in its own process group so a timeout kills the whole
	// tree, not only the interpreter.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, remaining: e.cfg.MaxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, remaining: e.cfg.MaxOutputBytes}

	res.Status = StatusRunning
	runErr := cmd.Run()

	// Partial output is preserved on every failure path.
	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()

	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		res.Status = StatusTimedOut
		res.ErrorKind = ErrKindTimeout
		res.Error = "execution timed out after " + timeout.String()
		return res
	}

	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) {
			res.Status = StatusFailed
			res.ErrorKind = ErrKindInterpreterNotFound
			res.Error = adapter.InterpreterName() + " not found: interpreter is not installed or not on PATH"
			return res
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Status = StatusFailed
			res.ErrorKind = ErrKindRuntime
			return res
		}

		res.Status = StatusFailed
		res.ErrorKind = ErrKindInternal
		res.Error = "execution failed: " + runErr.Error()
		return res
	}

	res.ExitCode = 0
	res.Success = true
	res.Status = StatusCompleted
	return res
}

// buildEnv constructs the explicit environment allow-list. The parent
// environment is never inherited wholesale; only PATH passes through, so
// secrets in the host environment stay invisible to scripts.
func (e *Executor) buildEnv(workDir string) []string {
	sandboxFlag := "0"
	if e.cfg.SandboxEnabled {
		sandboxFlag = "1"
	}
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"LANG=en_US.UTF-8",
		"TERM=dumb",
		EnvSandboxMode + "=" + sandboxFlag,
		EnvTempRoot + "=" + e.tempRoot(),
	}
}

func (e *Executor) tempRoot() string {
	if e.cfg.TempRoot != "" {
		return e.cfg.TempRoot
	}
	return os.TempDir()
}

// limitedWriter stops writing after a byte limit. Excess output is silently
// discarded rather than treated as an error.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	orig := len(p)
	if lw.remaining <= 0 {
		return orig, nil
	}
	if len(p) > lw.remaining {
		p = p[:lw.remaining]
	}
	n, err := lw.w.Write(p)
	lw.remaining -= n
	if err != nil {
		return n, err
	}
	return orig, nil
}
