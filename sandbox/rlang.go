package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// RAdapter assembles R scripts and their Rscript invocation.
type RAdapter struct {
	interpreter string
}

// NewRAdapter creates an R adapter. An empty interpreter selects Rscript
// from PATH.
func NewRAdapter(interpreter string) *RAdapter {
	if interpreter == "" {
		interpreter = "Rscript"
	}
	return &RAdapter{interpreter: interpreter}
}

func (*RAdapter) Language() Language { return LanguageR }

func (*RAdapter) FileExtension() string { return ".R" }

func (a *RAdapter) InterpreterName() string {
	return fmt.Sprintf("R (%s)", a.interpreter)
}

// Command returns the interpreter argv. --vanilla skips site/user profiles
// and workspace restore so runs are reproducible.
func (a *RAdapter) Command(scriptPath string) []string {
	return []string{a.interpreter, "--vanilla", scriptPath}
}

// BuildScript prepends one assignment statement per data entry: list values
// become c(...) vectors, scalars become bare literal assignments. Keys are
// emitted in sorted order so assembly is deterministic.
func (a *RAdapter) BuildScript(code string, data map[string]any, sandboxEnabled bool) (string, error) {
	var b strings.Builder

	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !validRName(k) {
				return "", fmt.Errorf("invalid R variable name: %q", k)
			}
			lit, err := rValue(data[k])
			if err != nil {
				return "", fmt.Errorf("data entry %q: %w", k, err)
			}
			fmt.Fprintf(&b, "%s <- %s\n", k, lit)
		}
		b.WriteString("\n")
	}

	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}

	return b.String(), nil
}

// rValue renders a scalar or flat list as an R literal.
func rValue(v any) (string, error) {
	switch val := v.(type) {
	case []any:
		elems := make([]string, 0, len(val))
		for i, e := range val {
			lit, err := rScalar(e)
			if err != nil {
				return "", fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, lit)
		}
		return "c(" + strings.Join(elems, ", ") + ")", nil
	default:
		return rScalar(v)
	}
}

func rScalar(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NA", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return rString(val), nil
	case float64:
		if math.IsNaN(val) {
			return "NaN", nil
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

func rString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// validRName reports whether s is a syntactic R identifier.
func validRName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '.', r == '_':
			if i == 0 && r == '_' {
				return false
			}
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
