package fscomponents

import (
	"time"

	"github.com/flagsync/go-client-sdk/internal/auth"
	"github.com/flagsync/go-client-sdk/internal/backoff"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/internal/push"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// DefaultStreamingBaseURI is the default base URI of the streaming service.
const DefaultStreamingBaseURI = endpoints.DefaultStreamingBaseURI

// DefaultAuthBaseURI is the default base URI of the service that issues streaming tokens.
const DefaultAuthBaseURI = endpoints.DefaultAuthBaseURI

// DefaultMaxBackoffDelay is the default value for StreamingDataSourceBuilder.MaxBackoffDelay.
const DefaultMaxBackoffDelay = backoff.DefaultMaxDelay

// DefaultFallbackPollInterval is the default value for StreamingDataSourceBuilder.FallbackPollInterval.
const DefaultFallbackPollInterval = synchronizer.DefaultPollInterval

// DefaultMaxSyncPeriod is the default value for StreamingDataSourceBuilder.MaxSyncPeriod.
const DefaultMaxSyncPeriod = synchronizer.DefaultMaxSyncPeriod

// StreamingDataSourceBuilder provides methods for configuring the streaming data source.
//
// See StreamingDataSource for usage.
type StreamingDataSourceBuilder struct {
	backoffBase          int
	maxBackoffDelay      time.Duration
	fallbackPollInterval time.Duration
	keepAliveTimeout     time.Duration
	maxSyncPeriod        time.Duration
	retryableErrorMin    int
	retryableErrorMax    int
}

// StreamingDataSource returns a configurable factory for using streaming mode to get flag data.
//
// By default, the SDK receives change notifications over a server-sent events connection, and polls
// only while that connection is unavailable. To use the default behavior, you do not need to call this
// method. However, if you want to customize the behavior of the connection, call this method to obtain
// a builder, set its properties with the StreamingDataSourceBuilder methods, and then store it in the
// DataSource field of your SDK configuration:
//
//	config := fsclient.Config{
//	    DataSource: fscomponents.StreamingDataSource().MaxBackoffDelay(5 * time.Minute),
//	}
func StreamingDataSource() *StreamingDataSourceBuilder {
	return &StreamingDataSourceBuilder{
		backoffBase:          backoff.DefaultBase,
		maxBackoffDelay:      DefaultMaxBackoffDelay,
		fallbackPollInterval: DefaultFallbackPollInterval,
		keepAliveTimeout:     push.DefaultKeepAliveTimeout,
		maxSyncPeriod:        DefaultMaxSyncPeriod,
		retryableErrorMin:    push.DefaultRetryableErrorMin,
		retryableErrorMax:    push.DefaultRetryableErrorMax,
	}
}

// BackoffBase sets the base of the exponential backoff used between reconnection attempts and between
// retries of a fetch. With a base of b, the delays are b, 2b, 4b... seconds.
//
// The default is 1. Values below 1 are set to the default.
func (b *StreamingDataSourceBuilder) BackoffBase(base int) *StreamingDataSourceBuilder {
	if base < 1 {
		b.backoffBase = backoff.DefaultBase
	} else {
		b.backoffBase = base
	}
	return b
}

// MaxBackoffDelay sets the longest delay between two reconnection attempts.
//
// The default value is DefaultMaxBackoffDelay.
func (b *StreamingDataSourceBuilder) MaxBackoffDelay(maxDelay time.Duration) *StreamingDataSourceBuilder {
	b.maxBackoffDelay = durationOrDefault(maxDelay, DefaultMaxBackoffDelay)
	return b
}

// FallbackPollInterval sets the interval of the periodic fetches that run while the streaming connection
// is unavailable.
//
// The default value is DefaultFallbackPollInterval. Values less than MinimumPollInterval are set to
// the minimum.
func (b *StreamingDataSourceBuilder) FallbackPollInterval(interval time.Duration) *StreamingDataSourceBuilder {
	b.fallbackPollInterval = max(interval, MinimumPollInterval)
	return b
}

// KeepAliveTimeout sets how long the stream may stay silent before the connection is considered lost.
// The service sends a keep-alive comment well within the default.
func (b *StreamingDataSourceBuilder) KeepAliveTimeout(timeout time.Duration) *StreamingDataSourceBuilder {
	b.keepAliveTimeout = durationOrDefault(timeout, push.DefaultKeepAliveTimeout)
	return b
}

// MaxSyncPeriod sets the minimum time between two full synchronizations triggered by resuming a paused
// client while streaming. The service may override it with a control notification.
func (b *StreamingDataSourceBuilder) MaxSyncPeriod(period time.Duration) *StreamingDataSourceBuilder {
	b.maxSyncPeriod = durationOrDefault(period, DefaultMaxSyncPeriod)
	return b
}

// RetryableErrorCodes sets the range of streaming error codes, inclusive, after which the SDK
// reconnects with a new token. Other error codes stop streaming for the life of the client.
func (b *StreamingDataSourceBuilder) RetryableErrorCodes(minCode, maxCode int) *StreamingDataSourceBuilder {
	if minCode > maxCode {
		minCode, maxCode = maxCode, minCode
	}
	b.retryableErrorMin, b.retryableErrorMax = minCode, maxCode
	return b
}

// Build is called internally by the SDK.
func (b *StreamingDataSourceBuilder) Build(context subsystems.ClientContext) (subsystems.DataSource, error) {
	cci, err := sdkClientContext(context)
	if err != nil {
		return nil, err
	}
	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("SyncManager:")

	serviceEndpoints := context.GetServiceEndpoints()
	authenticator := auth.NewHTTPAuthenticator(context,
		endpoints.SelectBaseURI(serviceEndpoints, endpoints.AuthService, loggers))
	pushConfig := push.Config{
		StreamingURI:      endpoints.SelectBaseURI(serviceEndpoints, endpoints.StreamingService, loggers),
		KeepAliveTimeout:  b.keepAliveTimeout,
		BackoffBase:       b.backoffBase,
		MaxBackoffDelay:   b.maxBackoffDelay,
		RetryableErrorMin: b.retryableErrorMin,
		RetryableErrorMax: b.retryableErrorMax,
	}
	newPush := func(sink push.NotificationSink, keys []string) synchronizer.PushManager {
		return push.NewManager(context, authenticator, sink, keys, pushConfig)
	}

	return newSyncManager(cci, newPush, synchronizer.SyncManagerConfig{
		StreamingEnabled: true,
		Fetch: synchronizer.FetchConfig{
			PollInterval:    b.fallbackPollInterval,
			BackoffBase:     b.backoffBase,
			MaxBackoffDelay: b.maxBackoffDelay,
		},
		MaxSyncPeriod: b.maxSyncPeriod,
	}, loggers), nil
}
