package registry

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

// InlineLoader executes entries whose code is stored directly in the catalog.
type InlineLoader struct {
	runner scriptRunner
}

// NewInlineLoader creates the inline source loader.
func NewInlineLoader(exec *sandbox.Executor, validator *sandbox.Validator, logger *zap.Logger) *InlineLoader {
	return &InlineLoader{runner: scriptRunner{exec: exec, validator: validator, logger: logger}}
}

func (*InlineLoader) SourceType() SourceType { return SourceInline }

// Run executes the entry's stored code text.
func (l *InlineLoader) Run(ctx context.Context, entry *Entry, input map[string]any) *Envelope {
	if strings.TrimSpace(entry.SourceLocation) == "" {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "inline entry has no code")
	}
	return l.runner.run(ctx, entry, entry.SourceLocation, input)
}
