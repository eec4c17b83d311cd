package fscomponents

import (
	"time"

	"github.com/flagsync/go-client-sdk/internal/backoff"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// DefaultSDKBaseURI is the default base URI of the service that serves definitions and memberships.
const DefaultSDKBaseURI = endpoints.DefaultSDKBaseURI

// DefaultPollInterval is the default value for PollingDataSourceBuilder.PollInterval.
const DefaultPollInterval = synchronizer.DefaultPollInterval

// MinimumPollInterval is the shortest poll interval that can be configured.
const MinimumPollInterval = 5 * time.Second

// PollingDataSourceBuilder provides methods for configuring the polling data source.
//
// See PollingDataSource for usage.
type PollingDataSourceBuilder struct {
	pollInterval time.Duration
}

// PollingDataSource returns a configurable factory for using polling mode to get flag data.
//
// Polling is not the default behavior; by default, the SDK uses a streaming connection to learn about
// changes. In polling mode, the SDK instead fetches definitions and memberships at regular intervals.
// HTTP caching avoids redundantly downloading data that has not changed, but changes take up to a
// full interval to be seen.
//
// To use polling mode, create a builder with PollingDataSource(), set its properties with the methods of
// PollingDataSourceBuilder, and then store it in the DataSource field of your SDK configuration:
//
//	config := fsclient.Config{
//	    DataSource: fscomponents.PollingDataSource().PollInterval(45 * time.Second),
//	}
func PollingDataSource() *PollingDataSourceBuilder {
	return &PollingDataSourceBuilder{
		pollInterval: DefaultPollInterval,
	}
}

// PollInterval sets the interval at which the SDK will poll for updates.
//
// The default value is DefaultPollInterval. Values less than MinimumPollInterval are set to the minimum.
func (b *PollingDataSourceBuilder) PollInterval(pollInterval time.Duration) *PollingDataSourceBuilder {
	b.pollInterval = max(pollInterval, MinimumPollInterval)
	return b
}

// Used in tests to skip parameter validation.
//
//nolint:unused // it is used in tests
func (b *PollingDataSourceBuilder) forcePollInterval(
	pollInterval time.Duration,
) *PollingDataSourceBuilder {
	b.pollInterval = pollInterval
	return b
}

// Build is called internally by the SDK.
func (b *PollingDataSourceBuilder) Build(context subsystems.ClientContext) (subsystems.DataSource, error) {
	cci, err := sdkClientContext(context)
	if err != nil {
		return nil, err
	}
	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("SyncManager:")
	loggers.Warn("Streaming is disabled; changes will only be seen at the next poll")

	return newSyncManager(cci, nil, synchronizer.SyncManagerConfig{
		Fetch: synchronizer.FetchConfig{
			PollInterval:    b.pollInterval,
			BackoffBase:     backoff.DefaultBase,
			MaxBackoffDelay: backoff.DefaultMaxDelay,
		},
	}, loggers), nil
}
