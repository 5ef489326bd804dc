package registry

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/scriptbox/sandbox"
)

// SourceType tags where an entry's code lives and how it is executed.
type SourceType string

const (
	SourceInline        SourceType = "inline"
	SourceLocalFile     SourceType = "local_file"
	SourceRemoteServer  SourceType = "remote_server"
	SourceGitRepository SourceType = "git_repository"
)

var knownSourceTypes = map[SourceType]bool{
	SourceInline:        true,
	SourceLocalFile:     true,
	SourceRemoteServer:  true,
	SourceGitRepository: true,
}

// Entry is one catalog record. Read-mostly after load; one entry maps to
// exactly one source strategy.
type Entry struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Category    string           `yaml:"category" json:"category"`
	Language    sandbox.Language `yaml:"language" json:"language"`
	SourceType  SourceType       `yaml:"source_type" json:"source_type"`

	// SourceLocation is interpreted per SourceType: the program text for
	// inline entries, a file path for local_file, the delegate URL for
	// remote_server, and the clone URL for git_repository.
	SourceLocation string `yaml:"source_location" json:"-"`

	// SourcePath locates the target file inside a git clone.
	SourcePath string `yaml:"source_path,omitempty" json:"source_path,omitempty"`

	InputSchema  Schema            `yaml:"input_schema" json:"input_schema"`
	OutputSchema map[string]any    `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`
	TimeoutSec   int               `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`
	Metadata     map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Timeout returns the entry's execution bound, zero when unset.
func (e *Entry) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

func (e *Entry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !knownSourceTypes[e.SourceType] {
		return fmt.Errorf("unknown source_type %q", e.SourceType)
	}
	if e.SourceLocation == "" {
		return fmt.Errorf("source_location is required")
	}
	if e.SourceType == SourceGitRepository && e.SourcePath == "" {
		return fmt.Errorf("source_path is required for git_repository entries")
	}
	if e.TimeoutSec < 0 {
		return fmt.Errorf("timeout_sec must not be negative")
	}
	return nil
}

type catalogFile struct {
	Scripts []Entry `yaml:"scripts"`
}

// LoadError records a per-entry validation error.
type LoadError struct {
	ID      string
	Message string
}

// LoadResult summarizes a catalog load.
type LoadResult struct {
	Loaded int
	Errors []LoadError
}

// LoadCatalog reads and validates the YAML catalog at path. Invalid entries
// are skipped and reported in the result; only an unreadable or unparseable
// file is an error.
func LoadCatalog(path string, logger *zap.Logger) ([]Entry, *LoadResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	result := &LoadResult{}
	entries := make([]Entry, 0, len(file.Scripts))
	seen := make(map[string]bool, len(file.Scripts))

	for i := range file.Scripts {
		entry := file.Scripts[i]
		if entry.Language == "" {
			entry.Language = sandbox.LanguagePython
		}

		if err := entry.validate(); err != nil {
			logger.Warn("catalog entry rejected",
				zap.String("id", entry.ID),
				zap.String("error", err.Error()))
			result.Errors = append(result.Errors, LoadError{ID: entry.ID, Message: err.Error()})
			continue
		}
		if seen[entry.ID] {
			logger.Warn("duplicate catalog entry rejected", zap.String("id", entry.ID))
			result.Errors = append(result.Errors, LoadError{ID: entry.ID, Message: "duplicate id"})
			continue
		}

		seen[entry.ID] = true
		entries = append(entries, entry)
		result.Loaded++
	}

	logger.Info("script catalog loaded",
		zap.String("path", path),
		zap.Int("loaded", result.Loaded),
		zap.Int("errors", len(result.Errors)))

	return entries, result, nil
}
