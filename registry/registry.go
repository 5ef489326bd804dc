package registry

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

// Config holds the registry settings.
type Config struct {
	// CatalogPath is the YAML catalog loaded at startup. A missing file
	// yields an empty registry rather than an error.
	CatalogPath string

	// ScriptsDir anchors relative local_file locations.
	ScriptsDir string

	// RemoteTimeout bounds delegate calls for entries without their own.
	RemoteTimeout time.Duration

	// GitCloneTimeout bounds repository clones.
	GitCloneTimeout time.Duration
}

// Registry holds the script catalog and dispatches execution to the loader
// matching each entry's source type. The catalog is immutable after New, so
// concurrent reads need no locking.
type Registry struct {
	logger  *zap.Logger
	entries map[string]*Entry
	order   []string
	loaders map[SourceType]SourceLoader
}

// New loads the catalog and builds the source-loader dispatch table.
func New(logger *zap.Logger, cfg Config, exec *sandbox.Executor, validator *sandbox.Validator) (*Registry, error) {
	r := &Registry{
		logger:  logger,
		entries: make(map[string]*Entry),
		loaders: make(map[SourceType]SourceLoader),
	}

	for _, loader := range []SourceLoader{
		NewInlineLoader(exec, validator, logger),
		NewLocalFileLoader(cfg.ScriptsDir, exec, validator, logger),
		NewRemoteServerLoader(cfg.RemoteTimeout, logger),
		NewGitRepositoryLoader(cfg.GitCloneTimeout, exec, validator, logger),
	} {
		r.loaders[loader.SourceType()] = loader
	}

	entries, _, err := LoadCatalog(cfg.CatalogPath, logger)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("script catalog not found, starting with an empty registry",
				zap.String("path", cfg.CatalogPath))
			return r, nil
		}
		return nil, err
	}

	for i := range entries {
		entry := entries[i]
		r.entries[entry.ID] = &entry
		r.order = append(r.order, entry.ID)
	}

	return r, nil
}

// List returns all entries in catalog order.
func (r *Registry) List() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Get returns the entry with the given id.
func (r *Registry) Get(id string) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Schema returns the input schema declared by the entry with the given id.
func (r *Registry) Schema(id string) (*Schema, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return &e.InputSchema, true
}

// Execute is the single dispatch point: look up the entry, validate the
// input against its schema, and delegate to the loader for its source type.
// Unknown ids and unsupported source types fail immediately with a
// structured error — never a silent no-op.
func (r *Registry) Execute(ctx context.Context, id string, input map[string]any) *Envelope {
	start := time.Now()
	env := r.dispatch(ctx, id, input)
	env.Metadata.Timestamp = start.UTC()
	env.Metadata.DurationMS = time.Since(start).Milliseconds()
	if entry, ok := r.entries[id]; ok {
		env.Metadata.SourceType = entry.SourceType
	}
	return env
}

func (r *Registry) dispatch(ctx context.Context, id string, input map[string]any) *Envelope {
	entry, ok := r.entries[id]
	if !ok {
		return errorEnvelope(id, sandbox.ErrKindValidation, "unknown script id: "+id)
	}

	if violations := entry.InputSchema.Validate(input); len(violations) > 0 {
		return errorEnvelope(id, sandbox.ErrKindValidation,
			"input validation failed: "+strings.Join(violations, "; "))
	}

	loader, ok := r.loaders[entry.SourceType]
	if !ok {
		return errorEnvelope(id, sandbox.ErrKindValidation,
			"unsupported source type: "+string(entry.SourceType))
	}

	r.logger.Info("dispatching registry execution",
		zap.String("script_id", id),
		zap.String("source_type", string(entry.SourceType)))

	return loader.Run(ctx, entry, input)
}
