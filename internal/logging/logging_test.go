package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("json at info", func(t *testing.T) {
		logger, err := New("info", FormatJSON)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("console at debug", func(t *testing.T) {
		logger, err := New("debug", FormatConsole)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("empty format defaults to json", func(t *testing.T) {
		_, err := New("warn", "")
		assert.NoError(t, err)
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := New("loud", FormatJSON)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New("info", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log format")
	})
}
