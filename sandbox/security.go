package sandbox

import (
	"strings"

	"go.uber.org/zap"
)

// Severity ranks a security finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

// Finding is one deny-list hit in a script.
type Finding struct {
	Pattern  string   `json:"pattern"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the outcome of a security scan. When sandbox mode is
// disabled the scan is skipped and the result is always valid.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Skipped  bool      `json:"skipped"`
	Findings []Finding `json:"findings,omitempty"`
}

type denyPattern struct {
	pattern  string
	severity Severity
}

// denyLists holds the per-language disallowed substrings: process spawning,
// dynamic code evaluation, direct OS file manipulation, shell invocation.
// This is a plain substring scan — a coarse pre-filter, not a security
// boundary. The process-level sandbox is the real enforcement.
var denyLists = map[Language][]denyPattern{
	LanguagePython: {
		{"import subprocess", SeverityCritical},
		{"from subprocess", SeverityCritical},
		{"os.system", SeverityCritical},
		{"os.popen", SeverityCritical},
		{"os.exec", SeverityCritical},
		{"os.spawn", SeverityCritical},
		{"os.fork", SeverityCritical},
		{"pty.spawn", SeverityCritical},
		{"eval(", SeverityHigh},
		{"exec(", SeverityHigh},
		{"compile(", SeverityHigh},
		{"__import__", SeverityHigh},
		{"importlib", SeverityHigh},
		{"ctypes", SeverityCritical},
		{"os.remove", SeverityHigh},
		{"os.unlink", SeverityHigh},
		{"os.rmdir", SeverityHigh},
		{"shutil.rmtree", SeverityCritical},
		{"shutil.move", SeverityHigh},
	},
	LanguageR: {
		{"system(", SeverityCritical},
		{"system2(", SeverityCritical},
		{"shell(", SeverityCritical},
		{"shell.exec(", SeverityCritical},
		{"file.remove", SeverityHigh},
		{"unlink(", SeverityHigh},
		{"Sys.setenv", SeverityHigh},
		{"download.file", SeverityHigh},
		{"source(", SeverityHigh},
		{"eval(parse(", SeverityHigh},
	},
	LanguageScilab: {
		{"unix(", SeverityCritical},
		{"unix_g(", SeverityCritical},
		{"unix_w(", SeverityCritical},
		{"host(", SeverityCritical},
		{"dos(", SeverityCritical},
		{"deletefile(", SeverityHigh},
		{"mdelete(", SeverityHigh},
		{"removedir(", SeverityHigh},
		{"execstr(", SeverityHigh},
		{"getenv(", SeverityHigh},
	},
}

// Validator scans assembled script text against the per-language deny-list.
// Only enforced when sandbox mode is enabled.
type Validator struct {
	enabled bool
	logger  *zap.Logger
	metrics *Metrics
}

// ValidatorOption defines a functional option for Validator
type ValidatorOption func(*Validator)

// WithValidatorMetrics attaches a metrics collector for rejection counts.
func WithValidatorMetrics(m *Metrics) ValidatorOption {
	return func(v *Validator) {
		v.metrics = m
	}
}

// NewValidator creates a security validator. enabled mirrors the system-wide
// sandbox mode flag.
func NewValidator(enabled bool, logger *zap.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{enabled: enabled, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled reports whether the deny-list scan is active.
func (v *Validator) Enabled() bool {
	return v.enabled
}

// Validate scans script for disallowed constructs. With sandbox mode
// disabled it always reports valid with an empty finding list, but records
// that the check was skipped.
func (v *Validator) Validate(script string, lang Language) ValidationResult {
	if !v.enabled {
		v.logger.Debug("security scan skipped, sandbox mode disabled",
			zap.String("language", string(lang)))
		return ValidationResult{Valid: true, Skipped: true}
	}

	var findings []Finding
	for _, d := range denyLists[lang] {
		if strings.Contains(script, d.pattern) {
			findings = append(findings, Finding{Pattern: d.pattern, Severity: d.severity})
		}
	}

	if len(findings) > 0 {
		v.logger.Warn("security scan rejected script",
			zap.String("language", string(lang)),
			zap.Int("findings", len(findings)))
		if v.metrics != nil {
			v.metrics.ObserveSecurityRejection(lang)
		}
	}

	return ValidationResult{Valid: len(findings) == 0, Findings: findings}
}
