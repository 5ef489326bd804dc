package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

// LocalFileLoader executes entries whose code lives on the service's own
// filesystem. Relative locations resolve against the configured scripts dir.
type LocalFileLoader struct {
	runner  scriptRunner
	baseDir string
}

// NewLocalFileLoader creates the local-file source loader.
func NewLocalFileLoader(baseDir string, exec *sandbox.Executor, validator *sandbox.Validator, logger *zap.Logger) *LocalFileLoader {
	return &LocalFileLoader{
		runner:  scriptRunner{exec: exec, validator: validator, logger: logger},
		baseDir: baseDir,
	}
}

func (*LocalFileLoader) SourceType() SourceType { return SourceLocalFile }

// Run reads the entry's file and executes it.
func (l *LocalFileLoader) Run(ctx context.Context, entry *Entry, input map[string]any) *Envelope {
	path := entry.SourceLocation
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}

	code, err := os.ReadFile(path) //nolint:gosec // Catalog-controlled path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "script file not found: "+path)
		}
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "reading script file: "+err.Error())
	}

	return l.runner.run(ctx, entry, string(code), input)
}
