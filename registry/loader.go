package registry

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metadata describes one execution attempt, stamped on every envelope.
type Metadata struct {
	SourceType SourceType `json:"source_type"`
	Timestamp  time.Time  `json:"timestamp"`
	DurationMS int64      `json:"duration_ms"`
}

// Envelope is the uniform result of a registry execution. Callers always
// receive a well-formed envelope; failures carry a typed error instead of
// propagating as faults.
type Envelope struct {
	Status    string            `json:"status"`
	ScriptID  string            `json:"script_id"`
	Output    map[string]any    `json:"output,omitempty"`
	Stdout    string            `json:"stdout,omitempty"`
	Stderr    string            `json:"stderr,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind sandbox.ErrorKind `json:"error_kind,omitempty"`
	Metadata  Metadata          `json:"execution_metadata"`
}

func errorEnvelope(scriptID string, kind sandbox.ErrorKind, message string) *Envelope {
	return &Envelope{
		Status:    StatusError,
		ScriptID:  scriptID,
		Error:     message,
		ErrorKind: kind,
	}
}

// SourceLoader resolves an entry's code (or delegates execution) based on
// its declared origin. One implementation per SourceType.
type SourceLoader interface {
	SourceType() SourceType
	Run(ctx context.Context, entry *Entry, input map[string]any) *Envelope
}

// resultMarker prefixes the stdout line carrying the execute() return value.
const resultMarker = "__SCRIPTBOX_RESULT__:"

// pythonDriver is appended to Python entries. It enforces the conventional
// execute(input_data) entry point and emits the return value as a marked
// JSON line that the loader lifts into the envelope output.
const pythonDriver = `

import json as _scriptbox_json
try:
    _scriptbox_fn = execute
except NameError:
    raise SystemExit("script does not define execute(input_data)")
_scriptbox_result = _scriptbox_fn(script_data)
print("` + resultMarker + `" + _scriptbox_json.dumps(_scriptbox_result))
`

// scriptRunner turns resolved entry code into a sandbox execution and an
// envelope. Shared by the inline, local-file, and git loaders.
type scriptRunner struct {
	exec      *sandbox.Executor
	validator *sandbox.Validator
	logger    *zap.Logger
}

func (r *scriptRunner) run(ctx context.Context, entry *Entry, code string, input map[string]any) *Envelope {
	adapter, err := r.exec.Adapters().Get(entry.Language)
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindValidation, err.Error())
	}

	if input == nil {
		input = map[string]any{}
	}

	// Python entries follow the execute(input_data) convention; other
	// languages run the code directly with the input injected as data.
	program := code
	if entry.Language == sandbox.LanguagePython {
		program = code + pythonDriver
	}

	final, err := adapter.BuildScript(program, input, r.exec.SandboxEnabled())
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindInternal, err.Error())
	}

	if v := r.validator.Validate(final, entry.Language); !v.Valid {
		patterns := make([]string, 0, len(v.Findings))
		for _, f := range v.Findings {
			patterns = append(patterns, f.Pattern)
		}
		return errorEnvelope(entry.ID, sandbox.ErrKindSecurity,
			"script rejected by security scan: "+strings.Join(patterns, ", "))
	}

	res := r.exec.Execute(ctx, sandbox.ExecRequest{
		ScriptID: entry.ID,
		Language: entry.Language,
		Script:   final,
		Timeout:  entry.Timeout(),
	})

	env := &Envelope{
		ScriptID: res.ScriptID,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}

	if !res.Success {
		env.Status = StatusError
		env.ErrorKind = res.ErrorKind
		env.Error = res.Error
		if env.Error == "" {
			env.Error = "script exited with status " + strconv.Itoa(res.ExitCode)
		}
		return env
	}

	env.Status = StatusSuccess
	if entry.Language == sandbox.LanguagePython {
		env.Output, env.Stdout = extractResult(res.Stdout)
	}
	return env
}

// extractResult lifts the marked JSON result line out of stdout. The
// remaining lines are returned as the user-visible stdout.
func extractResult(stdout string) (map[string]any, string) {
	var output map[string]any
	lines := strings.Split(stdout, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		if !strings.HasPrefix(line, resultMarker) {
			kept = append(kept, line)
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, resultMarker)), &v); err != nil {
			kept = append(kept, line)
			continue
		}
		if m, ok := v.(map[string]any); ok {
			output = m
		} else {
			output = map[string]any{"result": v}
		}
	}

	return output, strings.Join(kept, "\n")
}
