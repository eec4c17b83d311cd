package fscomponents

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/push"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"
	"github.com/flagsync/go-client-sdk/internal/synchronizer"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourceBuildersRequireSDKContext(t *testing.T) {
	context := sharedtest.NewSimpleTestContext(testSDKKey)

	_, err := StreamingDataSource().Build(context)
	assert.Equal(t, errNotSDKContext, err)

	_, err = PollingDataSource().Build(context)
	assert.Equal(t, errNotSDKContext, err)
}

func TestStreamingDataSourceBuilder(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := StreamingDataSource()
		assert.Equal(t, 1, s.backoffBase)
		assert.Equal(t, DefaultMaxBackoffDelay, s.maxBackoffDelay)
		assert.Equal(t, DefaultFallbackPollInterval, s.fallbackPollInterval)
		assert.Equal(t, push.DefaultKeepAliveTimeout, s.keepAliveTimeout)
		assert.Equal(t, DefaultMaxSyncPeriod, s.maxSyncPeriod)
		assert.Equal(t, push.DefaultRetryableErrorMin, s.retryableErrorMin)
		assert.Equal(t, push.DefaultRetryableErrorMax, s.retryableErrorMax)
	})

	t.Run("BackoffBase", func(t *testing.T) {
		assert.Equal(t, 3, StreamingDataSource().BackoffBase(3).backoffBase)
		assert.Equal(t, 1, StreamingDataSource().BackoffBase(0).backoffBase)
	})

	t.Run("MaxBackoffDelay", func(t *testing.T) {
		assert.Equal(t, time.Minute, StreamingDataSource().MaxBackoffDelay(time.Minute).maxBackoffDelay)
		assert.Equal(t, DefaultMaxBackoffDelay, StreamingDataSource().MaxBackoffDelay(-1).maxBackoffDelay)
	})

	t.Run("FallbackPollInterval", func(t *testing.T) {
		s := StreamingDataSource().FallbackPollInterval(2 * time.Minute)
		assert.Equal(t, 2*time.Minute, s.fallbackPollInterval)

		s.FallbackPollInterval(time.Second)
		assert.Equal(t, MinimumPollInterval, s.fallbackPollInterval)
	})

	t.Run("KeepAliveTimeout", func(t *testing.T) {
		assert.Equal(t, time.Minute, StreamingDataSource().KeepAliveTimeout(time.Minute).keepAliveTimeout)
		assert.Equal(t, push.DefaultKeepAliveTimeout, StreamingDataSource().KeepAliveTimeout(0).keepAliveTimeout)
	})

	t.Run("MaxSyncPeriod", func(t *testing.T) {
		assert.Equal(t, time.Hour, StreamingDataSource().MaxSyncPeriod(time.Hour).maxSyncPeriod)
		assert.Equal(t, DefaultMaxSyncPeriod, StreamingDataSource().MaxSyncPeriod(0).maxSyncPeriod)
	})

	t.Run("RetryableErrorCodes", func(t *testing.T) {
		s := StreamingDataSource().RetryableErrorCodes(40150, 40140)
		assert.Equal(t, 40140, s.retryableErrorMin)
		assert.Equal(t, 40150, s.retryableErrorMax)
	})
}

func TestPollingDataSourceBuilder(t *testing.T) {
	t.Run("PollInterval", func(t *testing.T) {
		p := PollingDataSource()
		assert.Equal(t, DefaultPollInterval, p.pollInterval)

		p.PollInterval(7 * time.Minute)
		assert.Equal(t, 7*time.Minute, p.pollInterval)

		p.PollInterval(time.Millisecond)
		assert.Equal(t, MinimumPollInterval, p.pollInterval)
	})
}

func TestPollingDataSourceSynchronizesFromService(t *testing.T) {
	withServiceServer(func(server *httptest.Server, requests <-chan httphelpers.HTTPRequestInfo) {
		withSDKContext(RelayServiceEndpoints(server.URL), func(p sdkContextParams) {
			events := p.facade.Get(testKey).Events.AddListener()
			ds, err := PollingDataSource().forcePollInterval(time.Hour).Build(p.context)
			require.NoError(t, err)
			defer ds.Close()

			closeWhenReady := make(chan struct{})
			ds.Start(closeWhenReady)
			th.AssertChannelClosed(t, closeWhenReady, timeout)

			assert.True(t, ds.IsInitialized())
			assert.Equal(t, []string{"flag1"}, p.stores.Definitions.Names())
			assert.Equal(t, int64(10), p.stores.Definitions.ChangeNumber())
			assert.Equal(t, interfaces.SdkReady, th.RequireValue(t, events, timeout))
			assert.Equal(t, []string{"seg1"}, p.stores.Memberships.Get(testKey).MySegments.Names)
			assert.True(t, p.sink.WaitFor(interfaces.SyncModePolling, timeout))

			for len(requests) > 0 {
				r := <-requests
				assert.NotEqual(t, "/api/v2/auth", r.Request.URL.Path)
				assert.Equal(t, "Bearer "+testSDKKey, r.Request.Header.Get("Authorization"))
			}
		})
	})
}

func TestStreamingDataSourceFallsBackToPollingWhenPushIsDisabled(t *testing.T) {
	withServiceServer(func(server *httptest.Server, requests <-chan httphelpers.HTTPRequestInfo) {
		withSDKContext(RelayServiceEndpoints(server.URL), func(p sdkContextParams) {
			ds, err := StreamingDataSource().Build(p.context)
			require.NoError(t, err)
			defer ds.Close()
			require.IsType(t, &synchronizer.SyncManager{}, ds)

			closeWhenReady := make(chan struct{})
			ds.Start(closeWhenReady)
			th.AssertChannelClosed(t, closeWhenReady, timeout)

			assert.Equal(t, []string{"flag1"}, p.stores.Definitions.Names())
			require.True(t, p.sink.WaitFor(interfaces.SyncModePolling, timeout))
			assert.Nil(t, p.sink.GetLastStatus().LastError)
			assert.True(t, ds.(*synchronizer.SyncManager).IsPolling())

			sawAuth := false
			for len(requests) > 0 {
				if (<-requests).Request.URL.Path == "/api/v2/auth" {
					sawAuth = true
				}
			}
			assert.True(t, sawAuth)
		})
	})
}

func TestDataSourceKeyAddedFetchesMemberships(t *testing.T) {
	withServiceServer(func(server *httptest.Server, requests <-chan httphelpers.HTTPRequestInfo) {
		withSDKContext(RelayServiceEndpoints(server.URL), func(p sdkContextParams) {
			ds, err := PollingDataSource().forcePollInterval(time.Hour).Build(p.context)
			require.NoError(t, err)
			defer ds.Close()
			closeWhenReady := make(chan struct{})
			ds.Start(closeWhenReady)
			th.AssertChannelClosed(t, closeWhenReady, timeout)

			group := synchronizer.NewKeyGroup("user 2", keyHandle("user 2"))
			p.facade.Append(group)
			events := group.Events.AddListener()
			ds.KeyAdded("user 2")

			assert.Equal(t, interfaces.SdkReady, th.RequireValue(t, events, timeout))
			assert.Equal(t, []string{"seg1"}, p.stores.Memberships.Get("user 2").MySegments.Names)
		})
	})
}
