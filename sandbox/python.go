package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// pythonSafetyHeader redefines the builtin open to reject paths outside the
// temp root communicated via SCRIPTBOX_TMPDIR. This is a best-effort
// secondary guard: any code path not going through open() bypasses it. The
// primary confinement is the restricted child-process environment.
const pythonSafetyHeader = `import builtins as _builtins, os as _os

_scriptbox_root = _os.path.realpath(_os.environ.get("SCRIPTBOX_TMPDIR") or "/tmp")
_scriptbox_open = _builtins.open

def _scriptbox_guarded_open(file, *args, **kwargs):
    if not isinstance(file, int):
        _path = _os.path.realpath(_os.fspath(file))
        if _path != _scriptbox_root and not _path.startswith(_scriptbox_root + _os.sep):
            raise PermissionError("file access outside sandbox: %s" % _path)
    return _scriptbox_open(file, *args, **kwargs)

_builtins.open = _scriptbox_guarded_open
`

// PythonAdapter assembles Python scripts and their interpreter invocation.
type PythonAdapter struct {
	interpreter string
}

// NewPythonAdapter creates a Python adapter. An empty interpreter selects
// python3 from PATH.
func NewPythonAdapter(interpreter string) *PythonAdapter {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &PythonAdapter{interpreter: interpreter}
}

func (*PythonAdapter) Language() Language { return LanguagePython }

func (*PythonAdapter) FileExtension() string { return ".py" }

func (a *PythonAdapter) InterpreterName() string {
	return fmt.Sprintf("Python (%s)", a.interpreter)
}

// Command returns the interpreter argv: unbuffered output, no .pyc files.
func (a *PythonAdapter) Command(scriptPath string) []string {
	return []string{a.interpreter, "-u", "-B", scriptPath}
}

// BuildScript assembles the final script: optional safety header, optional
// injected data as the script_data variable, then the user code. The data is
// embedded as a JSON literal so nested objects, arrays, numbers and strings
// round-trip exactly.
func (a *PythonAdapter) BuildScript(code string, data map[string]any, sandboxEnabled bool) (string, error) {
	var b strings.Builder

	if sandboxEnabled {
		b.WriteString(pythonSafetyHeader)
		b.WriteString("\n")
	}

	if data != nil {
		lit, err := PythonJSONLiteral(data)
		if err != nil {
			return "", err
		}
		b.WriteString("import json as _json\n")
		fmt.Fprintf(&b, "%s = _json.loads(%s)\n\n", DataVariable, lit)
	}

	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}

	return b.String(), nil
}

// PythonJSONLiteral renders v as a Python string literal containing its JSON
// encoding. JSON string escapes are a subset of Python string escapes, so
// json.loads of the literal reproduces v exactly.
func PythonJSONLiteral(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize data: %w", err)
	}
	lit, err := json.Marshal(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to quote data literal: %w", err)
	}
	return string(lit), nil
}
