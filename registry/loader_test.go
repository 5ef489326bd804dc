package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/scriptbox/sandbox"
)

func TestInlineLoaderEmptyCode(t *testing.T) {
	logger := zaptest.NewLogger(t)
	executor := sandbox.NewExecutor(logger, sandbox.ExecutorConfig{TempRoot: t.TempDir()})
	loader := NewInlineLoader(executor, sandbox.NewValidator(true, logger), logger)

	env := loader.Run(context.Background(), &Entry{
		ID:             "empty",
		Language:       sandbox.LanguagePython,
		SourceType:     SourceInline,
		SourceLocation: "   \n",
	}, nil)

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, sandbox.ErrKindSourceFetch, env.ErrorKind)
	assert.Contains(t, env.Error, "inline entry has no code")
}

func TestExtractResult(t *testing.T) {
	t.Run("ObjectResult", func(t *testing.T) {
		output, stdout := extractResult("before\n" + resultMarker + `{"sum":5}` + "\nafter\n")

		require.NotNil(t, output)
		assert.Equal(t, float64(5), output["sum"])
		assert.Equal(t, "before\nafter\n", stdout)
	})

	t.Run("ScalarResultWrapped", func(t *testing.T) {
		output, _ := extractResult(resultMarker + "42\n")

		require.NotNil(t, output)
		assert.Equal(t, float64(42), output["result"])
	})

	t.Run("NoMarker", func(t *testing.T) {
		output, stdout := extractResult("plain output\n")

		assert.Nil(t, output)
		assert.Equal(t, "plain output\n", stdout)
	})

	t.Run("MalformedMarkerLineKept", func(t *testing.T) {
		output, stdout := extractResult(resultMarker + "{not json}\n")

		assert.Nil(t, output)
		assert.Contains(t, stdout, resultMarker+"{not json}")
	})
}
