package registry

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

const defaultCloneTimeout = 60 * time.Second

// GitRepositoryLoader clones the entry's repository into a fresh temporary
// directory, locates the target file, and then behaves like the local-file
// loader. The clone directory is always removed, regardless of outcome.
type GitRepositoryLoader struct {
	runner       scriptRunner
	cloneTimeout time.Duration
	logger       *zap.Logger
}

// NewGitRepositoryLoader creates the git source loader.
func NewGitRepositoryLoader(cloneTimeout time.Duration, exec *sandbox.Executor, validator *sandbox.Validator, logger *zap.Logger) *GitRepositoryLoader {
	if cloneTimeout <= 0 {
		cloneTimeout = defaultCloneTimeout
	}
	return &GitRepositoryLoader{
		runner:       scriptRunner{exec: exec, validator: validator, logger: logger},
		cloneTimeout: cloneTimeout,
		logger:       logger,
	}
}

func (*GitRepositoryLoader) SourceType() SourceType { return SourceGitRepository }

// Run clones, reads the target file, and executes it.
func (l *GitRepositoryLoader) Run(ctx context.Context, entry *Entry, input map[string]any) *Envelope {
	cloneDir, err := os.MkdirTemp("", "scriptbox-git-*")
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindInternal, "creating clone dir: "+err.Error())
	}
	defer func() {
		if rmErr := os.RemoveAll(cloneDir); rmErr != nil {
			l.logger.Warn("failed to remove clone dir",
				zap.String("dir", cloneDir),
				zap.Error(rmErr))
		}
	}()

	if err := l.clone(ctx, entry.SourceLocation, cloneDir); err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, err.Error())
	}

	target := filepath.Join(cloneDir, filepath.Clean(entry.SourcePath))
	if !strings.HasPrefix(target, cloneDir+string(filepath.Separator)) {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch,
			"source_path escapes the repository: "+entry.SourcePath)
	}

	code, err := os.ReadFile(target) //nolint:gosec // Containment checked above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch,
				"script file not found in repository: "+entry.SourcePath)
		}
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "reading script file: "+err.Error())
	}

	return l.runner.run(ctx, entry, string(code), input)
}

// clone performs a shallow clone with a credential-stripped environment so
// the host's git identity and SSH agent never reach the remote.
func (l *GitRepositoryLoader) clone(ctx context.Context, url, dir string) error {
	cctx, cancel := context.WithTimeout(ctx, l.cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", "clone", "--depth", "1", "--quiet", url, dir)
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"GIT_TERMINAL_PROMPT=0",
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	l.logger.Info("cloning script repository", zap.String("url", url))

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return errors.New("Git clone failed: " + diag)
	}
	return nil
}
