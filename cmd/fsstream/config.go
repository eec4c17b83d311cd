package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flagsync/go-client-sdk/fscomponents"
	"github.com/flagsync/go-client-sdk/fsfiledata"
	"github.com/flagsync/go-client-sdk/fsfilewatch"
	"github.com/flagsync/go-client-sdk/interfaces"

	fsclient "github.com/flagsync/go-client-sdk"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// streamConfig holds the environment-based configuration of fsstream.
type streamConfig struct {
	SDKKey   string   `env:"FLAGSYNC_SDK_KEY"`
	UserKeys []string `env:"FLAGSYNC_USER_KEYS" envSeparator:"," envDefault:"anonymous"`

	// RelayURI replaces every service endpoint with a single relay proxy.
	RelayURI string `env:"FLAGSYNC_RELAY_URI"`

	Streaming    bool          `env:"FLAGSYNC_STREAMING" envDefault:"true"`
	PollInterval time.Duration `env:"FLAGSYNC_POLL_INTERVAL" envDefault:"60s"`
	InitTimeout  time.Duration `env:"FLAGSYNC_INIT_TIMEOUT" envDefault:"10s"`
	FlagSets     []string      `env:"FLAGSYNC_FLAG_SETS" envSeparator:","`
	CachePath    string        `env:"FLAGSYNC_CACHE_PATH"`
	Offline      bool          `env:"FLAGSYNC_OFFLINE" envDefault:"false"`

	// DataFiles makes the client read definitions from local files instead of the service.
	DataFiles []string `env:"FLAGSYNC_DATA_FILES" envSeparator:","`
	WatchFile bool     `env:"FLAGSYNC_WATCH_FILES" envDefault:"false"`

	LogLevel string `env:"FLAGSYNC_LOG_LEVEL" envDefault:"info"`
}

// loadConfig reads a .env file if present, then parses the environment.
func loadConfig() (*streamConfig, error) {
	_ = godotenv.Load()
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (*streamConfig, error) {
	cfg := &streamConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *streamConfig) validate() error {
	if c.SDKKey == "" && !c.Offline && len(c.DataFiles) == 0 {
		return errors.New("FLAGSYNC_SDK_KEY is required unless running offline or from data files")
	}
	keys := c.UserKeys[:0]
	for _, k := range c.UserKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return errors.New("FLAGSYNC_USER_KEYS must name at least one key")
	}
	c.UserKeys = keys
	if _, err := c.logLevel(); err != nil {
		return err
	}
	return nil
}

func (c *streamConfig) logLevel() (ldlog.LogLevel, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return ldlog.Debug, nil
	case "info", "":
		return ldlog.Info, nil
	case "warn":
		return ldlog.Warn, nil
	case "error":
		return ldlog.Error, nil
	case "none":
		return ldlog.None, nil
	}
	return ldlog.None, fmt.Errorf("unknown log level %q", c.LogLevel)
}

// clientConfig translates the environment settings into an SDK configuration.
func (c *streamConfig) clientConfig() fsclient.Config {
	level, _ := c.logLevel()
	config := fsclient.Config{
		Logging: fscomponents.Logging().MinLevel(level),
		Offline: c.Offline,
		Filter:  interfaces.FlagFilter{Sets: c.FlagSets},
	}
	if c.RelayURI != "" {
		config.ServiceEndpoints = fscomponents.RelayServiceEndpoints(c.RelayURI)
	}
	if c.CachePath != "" {
		config.Cache = fscomponents.PersistentCache(c.CachePath)
	}
	switch {
	case len(c.DataFiles) > 0:
		files := fsfiledata.DataSource().FilePaths(c.DataFiles...)
		if c.WatchFile {
			files.Reloader(fsfilewatch.WatchFiles)
		}
		config.DataSource = files
	case c.Streaming:
		config.DataSource = fscomponents.StreamingDataSource().FallbackPollInterval(c.PollInterval)
	default:
		config.DataSource = fscomponents.PollingDataSource().PollInterval(c.PollInterval)
	}
	return config
}
