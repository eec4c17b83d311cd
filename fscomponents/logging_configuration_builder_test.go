package fscomponents

import (
	"testing"

	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingConfigurationBuilder(t *testing.T) {
	context := sharedtest.NewSimpleTestContext("")

	t.Run("defaults", func(t *testing.T) {
		c, err := Logging().Build(context)
		require.NoError(t, err)
		assert.False(t, c.LogUserKeyInErrors)
	})

	t.Run("LogUserKeyInErrors", func(t *testing.T) {
		c, err := Logging().LogUserKeyInErrors(true).Build(context)
		require.NoError(t, err)
		assert.True(t, c.LogUserKeyInErrors)
	})

	t.Run("Loggers", func(t *testing.T) {
		mockLoggers := ldlogtest.NewMockLog()
		c, err := Logging().Loggers(mockLoggers.Loggers).Build(context)
		require.NoError(t, err)
		assert.Equal(t, mockLoggers.Loggers, c.Loggers)
	})

	t.Run("MinLevel", func(t *testing.T) {
		mockLoggers := ldlogtest.NewMockLog()
		c, err := Logging().Loggers(mockLoggers.Loggers).MinLevel(ldlog.Error).Build(context)
		require.NoError(t, err)
		c.Loggers.Info("suppress this message")
		c.Loggers.Error("log this message")
		assert.Len(t, mockLoggers.GetOutput(ldlog.Info), 0)
		assert.Equal(t, []string{"log this message"}, mockLoggers.GetOutput(ldlog.Error))
	})

	t.Run("NoLogging", func(t *testing.T) {
		c, err := NoLogging().Build(context)
		require.NoError(t, err)
		assert.Equal(t, ldlog.NewDisabledLoggers(), c.Loggers)
	})

	t.Run("nil safety", func(t *testing.T) {
		var b *LoggingConfigurationBuilder
		b = b.LogUserKeyInErrors(true).Loggers(ldlog.NewDefaultLoggers()).MinLevel(ldlog.Debug)
		_, err := b.Build(context)
		assert.NoError(t, err)
	})
}
