package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

const (
	defaultRemoteTimeout = 30 * time.Second

	// maxRemoteBodyBytes caps how much of a delegate response is read.
	maxRemoteBodyBytes = 4 << 20
)

// remoteRequest is the body forwarded to a delegate execution server.
type remoteRequest struct {
	ScriptID      string         `json:"script_id"`
	InputData     map[string]any `json:"input_data"`
	ExecutionType string         `json:"execution_type"`
}

// RemoteServerLoader forwards execution to another HTTP execution service
// instead of running the script locally.
type RemoteServerLoader struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewRemoteServerLoader creates the remote-delegate source loader.
func NewRemoteServerLoader(timeout time.Duration, logger *zap.Logger) *RemoteServerLoader {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteServerLoader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

func (*RemoteServerLoader) SourceType() SourceType { return SourceRemoteServer }

// Run posts the execution request to the entry's delegate URL and merges the
// response body into the envelope.
func (l *RemoteServerLoader) Run(ctx context.Context, entry *Entry, input map[string]any) *Envelope {
	if input == nil {
		input = map[string]any{}
	}

	body, err := json.Marshal(remoteRequest{
		ScriptID:      entry.ID,
		InputData:     input,
		ExecutionType: "registry",
	})
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindInternal, "encoding remote request: "+err.Error())
	}

	timeout := entry.Timeout()
	if timeout <= 0 {
		timeout = l.timeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, entry.SourceLocation, bytes.NewReader(body))
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "building remote request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	l.logger.Info("delegating execution to remote server",
		zap.String("script_id", entry.ID),
		zap.String("url", entry.SourceLocation))

	resp, err := l.client.Do(req)
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "remote execution request failed: "+err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBodyBytes))
	if err != nil {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch, "reading remote response: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorEnvelope(entry.ID, sandbox.ErrKindSourceFetch,
			fmt.Sprintf("remote server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	env := &Envelope{Status: StatusSuccess, ScriptID: entry.ID}

	var merged map[string]any
	if err := json.Unmarshal(respBody, &merged); err != nil {
		// Non-JSON success bodies are surfaced verbatim.
		env.Stdout = string(respBody)
		return env
	}

	if status, ok := merged["status"].(string); ok && status == StatusError {
		env.Status = StatusError
		env.ErrorKind = sandbox.ErrKindRuntime
		if msg, ok := merged["error"].(string); ok {
			env.Error = msg
		} else {
			env.Error = "remote execution reported an error"
		}
	}
	env.Output = merged
	return env
}
