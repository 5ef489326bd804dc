package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ScilabAdapter assembles Scilab scripts and their headless invocation.
type ScilabAdapter struct {
	interpreter string
}

// NewScilabAdapter creates a Scilab adapter. An empty interpreter selects
// scilab-cli from PATH.
func NewScilabAdapter(interpreter string) *ScilabAdapter {
	if interpreter == "" {
		interpreter = "scilab-cli"
	}
	return &ScilabAdapter{interpreter: interpreter}
}

func (*ScilabAdapter) Language() Language { return LanguageScilab }

func (*ScilabAdapter) FileExtension() string { return ".sce" }

func (a *ScilabAdapter) InterpreterName() string {
	return fmt.Sprintf("Scilab (%s)", a.interpreter)
}

// Command returns the headless batch invocation: no banner, run file.
func (a *ScilabAdapter) Command(scriptPath string) []string {
	return []string{a.interpreter, "-nb", "-f", scriptPath}
}

// BuildScript prepends one assignment per data entry (lists as [...] row
// vectors, scalars as bare literals) and appends exit() so the batch
// interpreter terminates after the script.
func (a *ScilabAdapter) BuildScript(code string, data map[string]any, sandboxEnabled bool) (string, error) {
	var b strings.Builder

	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !validRName(k) {
				return "", fmt.Errorf("invalid Scilab variable name: %q", k)
			}
			lit, err := scilabValue(data[k])
			if err != nil {
				return "", fmt.Errorf("data entry %q: %w", k, err)
			}
			fmt.Fprintf(&b, "%s = %s;\n", k, lit)
		}
		b.WriteString("\n")
	}

	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("exit();\n")

	return b.String(), nil
}

func scilabValue(v any) (string, error) {
	switch val := v.(type) {
	case []any:
		elems := make([]string, 0, len(val))
		for i, e := range val {
			lit, err := scilabScalar(e)
			if err != nil {
				return "", fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, lit)
		}
		return "[" + strings.Join(elems, ", ") + "]", nil
	default:
		return scilabScalar(v)
	}
}

func scilabScalar(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "%nan", nil
	case bool:
		if val {
			return "%t", nil
		}
		return "%f", nil
	case string:
		// Scilab escapes embedded double quotes by doubling them.
		return `"` + strings.ReplaceAll(val, `"`, `""`) + `"`, nil
	case float64:
		if math.IsNaN(val) {
			return "%nan", nil
		}
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
