package sandbox

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterSet(t *testing.T) {
	set := NewAdapterSet(DefaultAdapters()...)

	t.Run("KnownLanguages", func(t *testing.T) {
		for _, lang := range []Language{LanguagePython, LanguageR, LanguageScilab} {
			adapter, err := set.Get(lang)
			require.NoError(t, err)
			assert.Equal(t, lang, adapter.Language())
		}
		assert.Len(t, set.Languages(), 3)
	})

	t.Run("UnknownLanguage", func(t *testing.T) {
		_, err := set.Get("fortran")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported language")
	})

	t.Run("LaterAdapterOverrides", func(t *testing.T) {
		custom := NewPythonAdapter("python3.12")
		set := NewAdapterSet(NewPythonAdapter(""), custom)

		adapter, err := set.Get(LanguagePython)
		require.NoError(t, err)
		assert.Equal(t, custom, adapter)
	})
}

func TestPythonAdapter(t *testing.T) {
	adapter := NewPythonAdapter("")

	t.Run("Command", func(t *testing.T) {
		assert.Equal(t, []string{"python3", "-u", "-B", "/tmp/s.py"}, adapter.Command("/tmp/s.py"))
		assert.Equal(t, ".py", adapter.FileExtension())
		assert.Equal(t, "Python (python3)", adapter.InterpreterName())
	})

	t.Run("CustomInterpreter", func(t *testing.T) {
		custom := NewPythonAdapter("/opt/python3.12")
		assert.Equal(t, "/opt/python3.12", custom.Command("/tmp/s.py")[0])
		assert.Equal(t, "Python (/opt/python3.12)", custom.InterpreterName())
	})

	t.Run("SafetyHeaderOnlyWhenSandboxed", func(t *testing.T) {
		sandboxed, err := adapter.BuildScript("print(1)", nil, true)
		require.NoError(t, err)
		assert.Contains(t, sandboxed, "_scriptbox_guarded_open")
		assert.Contains(t, sandboxed, EnvTempRoot)

		open, err := adapter.BuildScript("print(1)", nil, false)
		require.NoError(t, err)
		assert.NotContains(t, open, "_scriptbox_guarded_open")
	})

	t.Run("DataInjectionRoundTrips", func(t *testing.T) {
		data := map[string]any{
			"name":   `quo"te` + "\nnewline",
			"values": []any{1.0, 2.5, -3.0},
			"nested": map[string]any{"flag": true, "none": nil},
		}

		script, err := adapter.BuildScript("pass", data, false)
		require.NoError(t, err)
		assert.Contains(t, script, DataVariable+" = _json.loads(")

		// The embedded literal is a JSON-encoded string of JSON. Decoding it
		// the same way Python would must reproduce the original data.
		start := strings.Index(script, "_json.loads(") + len("_json.loads(")
		end := strings.Index(script[start:], ")\n") + start
		literal := script[start:end]

		var inner string
		require.NoError(t, json.Unmarshal([]byte(literal), &inner))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(inner), &decoded))
		assert.Equal(t, data, decoded)
	})

	t.Run("UserCodeComesLast", func(t *testing.T) {
		script, err := adapter.BuildScript("print(script_data)", map[string]any{"x": 1}, true)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(script, "print(script_data)\n"))
	})
}

func TestPythonJSONLiteral(t *testing.T) {
	lit, err := PythonJSONLiteral(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `"{\"a\":1}"`, lit)

	_, err = PythonJSONLiteral(map[string]any{"bad": func() {}})
	assert.Error(t, err)
}

func TestRAdapter(t *testing.T) {
	adapter := NewRAdapter("")

	t.Run("Command", func(t *testing.T) {
		assert.Equal(t, []string{"Rscript", "--vanilla", "/tmp/s.R"}, adapter.Command("/tmp/s.R"))
		assert.Equal(t, ".R", adapter.FileExtension())
		assert.Equal(t, "R (Rscript)", adapter.InterpreterName())
	})

	t.Run("DataInjection", func(t *testing.T) {
		script, err := adapter.BuildScript("print(x)", map[string]any{
			"x":     []any{1.0, 2.0, 3.0},
			"label": "hello",
			"flag":  true,
			"none":  nil,
		}, true)
		require.NoError(t, err)

		assert.Contains(t, script, "x <- c(1, 2, 3)\n")
		assert.Contains(t, script, `label <- "hello"`+"\n")
		assert.Contains(t, script, "flag <- TRUE\n")
		assert.Contains(t, script, "none <- NA\n")
		assert.True(t, strings.HasSuffix(script, "print(x)\n"))
	})

	t.Run("SortedAssignments", func(t *testing.T) {
		script, err := adapter.BuildScript("1", map[string]any{"b": 2, "a": 1, "c": 3}, false)
		require.NoError(t, err)
		assert.Less(t, strings.Index(script, "a <-"), strings.Index(script, "b <-"))
		assert.Less(t, strings.Index(script, "b <-"), strings.Index(script, "c <-"))
	})

	t.Run("StringEscaping", func(t *testing.T) {
		script, err := adapter.BuildScript("1", map[string]any{"s": `pa"th\x` + "\nend"}, false)
		require.NoError(t, err)
		assert.Contains(t, script, `s <- "pa\"th\\x\nend"`)
	})

	t.Run("InvalidVariableName", func(t *testing.T) {
		_, err := adapter.BuildScript("1", map[string]any{"2bad": 1}, false)
		assert.Error(t, err)

		_, err = adapter.BuildScript("1", map[string]any{"a;rm": 1}, false)
		assert.Error(t, err)
	})

	t.Run("UnsupportedValue", func(t *testing.T) {
		_, err := adapter.BuildScript("1", map[string]any{"m": map[string]any{"k": 1}}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported value type")
	})
}

func TestScilabAdapter(t *testing.T) {
	adapter := NewScilabAdapter("")

	t.Run("Command", func(t *testing.T) {
		assert.Equal(t, []string{"scilab-cli", "-nb", "-f", "/tmp/s.sce"}, adapter.Command("/tmp/s.sce"))
		assert.Equal(t, ".sce", adapter.FileExtension())
		assert.Equal(t, "Scilab (scilab-cli)", adapter.InterpreterName())
	})

	t.Run("DataInjection", func(t *testing.T) {
		script, err := adapter.BuildScript("disp(x)", map[string]any{
			"x":     []any{1.0, 2.0},
			"label": `say "hi"`,
			"flag":  false,
		}, true)
		require.NoError(t, err)

		assert.Contains(t, script, "x = [1, 2];\n")
		assert.Contains(t, script, `label = "say ""hi""";`+"\n")
		assert.Contains(t, script, "flag = %f;\n")
	})

	t.Run("AppendsExit", func(t *testing.T) {
		script, err := adapter.BuildScript("disp(1)", nil, false)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(script, "disp(1)\nexit();\n"))
	})
}
