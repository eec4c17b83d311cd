package main

import (
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/fscomponents"
	"github.com/flagsync/go-client-sdk/fsfiledata"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/caarlos0/env/v11"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(env.Options{Environment: map[string]string{"FLAGSYNC_SDK_KEY": "key"}})
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.SDKKey)
	assert.Equal(t, []string{"anonymous"}, cfg.UserKeys)
	assert.True(t, cfg.Streaming)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.InitTimeout)

	level, err := cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, ldlog.Info, level)

	config := cfg.clientConfig()
	assert.IsType(t, &fscomponents.StreamingDataSourceBuilder{}, config.DataSource)
	assert.Nil(t, config.Cache)
}

func TestParseConfigCustomValues(t *testing.T) {
	cfg, err := parseConfig(env.Options{Environment: map[string]string{
		"FLAGSYNC_SDK_KEY":       "key",
		"FLAGSYNC_USER_KEYS":     "u1, u2,,",
		"FLAGSYNC_STREAMING":     "false",
		"FLAGSYNC_POLL_INTERVAL": "2m",
		"FLAGSYNC_FLAG_SETS":     "a,b",
		"FLAGSYNC_CACHE_PATH":    "/tmp/flags.db",
		"FLAGSYNC_RELAY_URI":     "http://relay:8080",
		"FLAGSYNC_LOG_LEVEL":     "DEBUG",
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u2"}, cfg.UserKeys)
	config := cfg.clientConfig()
	assert.IsType(t, &fscomponents.PollingDataSourceBuilder{}, config.DataSource)
	assert.NotNil(t, config.Cache)
	assert.Equal(t, []string{"a", "b"}, config.Filter.Sets)
	assert.Equal(t, "http://relay:8080/sse", config.ServiceEndpoints.Streaming)
}

func TestParseConfigWithDataFilesDoesNotNeedSDKKey(t *testing.T) {
	cfg, err := parseConfig(env.Options{Environment: map[string]string{
		"FLAGSYNC_DATA_FILES":  "a.yml,b.json",
		"FLAGSYNC_WATCH_FILES": "true",
	}})
	require.NoError(t, err)
	assert.IsType(t, &fsfiledata.DataSourceBuilder{}, cfg.clientConfig().DataSource)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := parseConfig(env.Options{Environment: map[string]string{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLAGSYNC_SDK_KEY")

	_, err = parseConfig(env.Options{Environment: map[string]string{
		"FLAGSYNC_SDK_KEY": "key", "FLAGSYNC_USER_KEYS": " , ",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLAGSYNC_USER_KEYS")

	_, err = parseConfig(env.Options{Environment: map[string]string{
		"FLAGSYNC_SDK_KEY": "key", "FLAGSYNC_LOG_LEVEL": "loud",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")

	_, err = parseConfig(env.Options{Environment: map[string]string{
		"FLAGSYNC_SDK_KEY": "key", "FLAGSYNC_POLL_INTERVAL": "soon",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}
