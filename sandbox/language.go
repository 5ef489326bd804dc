package sandbox

import (
	"fmt"
)

// Language identifies a supported scripting language.
type Language string

// Supported languages.
const (
	LanguagePython Language = "python"
	LanguageR      Language = "r"
	LanguageScilab Language = "scilab"
)

// DataVariable is the fixed name under which structured input data is made
// available to Python scripts.
const DataVariable = "script_data"

// Environment variables communicated to the child process. The sandbox flag
// tells the script whether confinement is active; the temp-root path backs
// the Python guarded-open header.
const (
	EnvSandboxMode = "SCRIPTBOX_SANDBOX"
	EnvTempRoot    = "SCRIPTBOX_TMPDIR"
)

// Adapter assembles the final script text and the interpreter invocation for
// one language. Implementations are stateless and safe for concurrent use.
type Adapter interface {
	// Language returns the language tag this adapter serves.
	Language() Language

	// FileExtension returns the script file extension, dot included.
	FileExtension() string

	// InterpreterName is the human-readable interpreter description used in
	// interpreter-missing errors, e.g. "R (Rscript)".
	InterpreterName() string

	// Command returns the interpreter argv for a written script file.
	Command(scriptPath string) []string

	// BuildScript produces the final script text: optional safety header,
	// optional injected data, then the user code. Data injection is
	// language specific and must round-trip the input exactly.
	BuildScript(code string, data map[string]any, sandboxEnabled bool) (string, error)
}

// DefaultAdapters returns the built-in adapter set with default interpreters.
func DefaultAdapters() []Adapter {
	return []Adapter{
		NewPythonAdapter(""),
		NewRAdapter(""),
		NewScilabAdapter(""),
	}
}

// AdapterSet is an immutable lookup table of adapters keyed by language.
type AdapterSet struct {
	byLanguage map[Language]Adapter
}

// NewAdapterSet builds a lookup table from the given adapters. Later entries
// for the same language override earlier ones.
func NewAdapterSet(adapters ...Adapter) *AdapterSet {
	m := make(map[Language]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Language()] = a
	}
	return &AdapterSet{byLanguage: m}
}

// Get returns the adapter for the given language.
func (s *AdapterSet) Get(lang Language) (Adapter, error) {
	a, ok := s.byLanguage[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return a, nil
}

// Languages lists the languages with a registered adapter.
func (s *AdapterSet) Languages() []Language {
	langs := make([]Language, 0, len(s.byLanguage))
	for l := range s.byLanguage {
		langs = append(langs, l)
	}
	return langs
}
