package fsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/fscomponents"
	"github.com/flagsync/go-client-sdk/interfaces"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCustomClientRejectsEmptyKey(t *testing.T) {
	client, err := MakeCustomClient(testSDKKey, "", Config{Offline: true}, 0)
	assert.Nil(t, client)
	assert.Equal(t, ErrEmptyKey, err)
}

func TestMakeCustomClientRejectsInvalidSDKKey(t *testing.T) {
	client, err := MakeCustomClient("sdk\nkey", testKey, Config{Offline: true}, 0)
	assert.Nil(t, client)
	assert.Error(t, err)
	assert.NotContains(t, err.Error(), "sdk\nkey")
}

func TestClientStartsAndFallsBackToPollingWhenPushIsDisabled(t *testing.T) {
	withServiceServer(func(server *httptest.Server, requests <-chan httphelpers.HTTPRequestInfo) {
		mockLog := ldlogtest.NewMockLog()
		defer mockLog.DumpIfTestFailed(t)

		client, err := MakeCustomClient(testSDKKey, testKey, makeTestConfig(server.URL, mockLog), timeout)
		require.NoError(t, err)
		defer client.Close()

		assert.True(t, client.IsInitialized())
		assert.False(t, client.IsOffline())
		assert.Equal(t, []string{"flag1", "flag2"}, client.DefinitionNames())
		assert.Equal(t, []string{"flag1"}, client.DefinitionNamesByFlagSet("front"))

		def, ok := client.Definition("flag2")
		require.True(t, ok)
		assert.Equal(t, "on", def.DefaultTreatment)
		_, ok = client.Definition("unknown")
		assert.False(t, ok)

		main := client.MainClient()
		require.NoError(t, main.WaitForReady(context.Background(), timeout))
		assert.True(t, main.IsReady())
		assert.Equal(t, []string{"seg1"}, main.Segments())
		assert.Equal(t, []string{"big1"}, main.LargeSegments())
		assert.True(t, main.IsInSegment("big1"))
		assert.False(t, main.IsInSegment("seg2"))

		require.True(t, waitForMode(client, interfaces.SyncModePolling))

		r := <-requests
		assert.Equal(t, testSDKKey, stripBearer(r.Request.Header.Get("Authorization")))
		assert.Contains(t, r.Request.Header.Get("User-Agent"), "GoClient/"+Version)
	})
}

func TestClientFailsToStartWith401Error(t *testing.T) {
	handler, _ := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(401))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		mockLog := ldlogtest.NewMockLog()
		config := makeTestConfig(server.URL, mockLog)
		config.DataSource = fscomponents.PollingDataSource()

		client, err := MakeCustomClient(testSDKKey, testKey, config, timeout)
		require.NotNil(t, client)
		defer client.Close()
		assert.Equal(t, ErrInitializationFailed, err)
		assert.False(t, client.IsInitialized())

		status := client.GetSyncStatusProvider().GetStatus()
		require.NotNil(t, status.LastError)
		assert.Equal(t, interfaces.SyncErrorKindErrorResponse, status.LastError.Kind)
		assert.Equal(t, 401, status.LastError.StatusCode)
		mockLog.AssertMessageMatch(t, true, ldlog.Warn, "initialization failed")
	})
}

func TestClientTimesOutWhenServerDoesNotRespond(t *testing.T) {
	hang := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-hang:
		case <-r.Context().Done():
		}
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		defer close(hang)
		mockLog := ldlogtest.NewMockLog()
		config := makeTestConfig(server.URL, mockLog)
		config.DataSource = fscomponents.PollingDataSource()

		client, err := MakeCustomClient(testSDKKey, testKey, config, 100*time.Millisecond)
		require.NotNil(t, client)
		assert.Equal(t, ErrInitializationTimeout, err)
		assert.False(t, client.MainClient().IsReady())
		assert.NoError(t, client.Close())
		mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Timeout encountered")
	})
}

func TestClientWithZeroWaitReturnsImmediatelyAndBecomesReady(t *testing.T) {
	withServiceServer(func(server *httptest.Server, _ <-chan httphelpers.HTTPRequestInfo) {
		client, err := MakeCustomClient(testSDKKey, testKey, makeTestConfig(server.URL, ldlogtest.NewMockLog()), 0)
		require.NoError(t, err)
		defer client.Close()

		th.AssertChannelClosed(t, client.MainClient().Ready(), timeout)
		assert.True(t, client.IsInitialized())
	})
}

func TestClientRegistersAdditionalKeys(t *testing.T) {
	withServiceServer(func(server *httptest.Server, _ <-chan httphelpers.HTTPRequestInfo) {
		client, err := MakeCustomClient(testSDKKey, testKey, makeTestConfig(server.URL, ldlogtest.NewMockLog()), timeout)
		require.NoError(t, err)
		defer client.Close()

		other, err := client.Client(" user-2 ")
		require.NoError(t, err)
		assert.Equal(t, "user-2", other.Key())
		events := other.AddEventListener()

		require.NoError(t, other.WaitForReady(context.Background(), timeout))
		assert.Equal(t, []string{"seg2"}, other.Segments())
		assert.Equal(t, []string{"seg1"}, client.MainClient().Segments())
		assert.Equal(t, []string{testKey, "user-2"}, client.Keys())

		same, err := client.Client("user-2")
		require.NoError(t, err)
		assert.Same(t, other, same)

		_, err = client.Client("  ")
		assert.Equal(t, ErrEmptyKey, err)

		other.Destroy()
		assert.Equal(t, []string{testKey}, client.Keys())
		assert.Nil(t, other.Segments())
		assert.Equal(t, ErrKeyClientDestroyed, other.WaitForReady(context.Background(), timeout))
		assertChannelDrainsAndCloses(t, events)
	})
}

func TestMainKeyClientCannotBeDestroyed(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	config := Config{Offline: true, Logging: fscomponents.Logging().Loggers(mockLog.Loggers)}
	client, err := MakeCustomClient(testSDKKey, testKey, config, 0)
	require.NoError(t, err)
	defer client.Close()

	client.MainClient().Destroy()
	assert.Equal(t, []string{testKey}, client.Keys())
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "cannot be destroyed")
}

func TestKeyClientAttributes(t *testing.T) {
	client, err := MakeCustomClient(testSDKKey, testKey, Config{Offline: true, Logging: fscomponents.NoLogging()}, 0)
	require.NoError(t, err)
	defer client.Close()
	kc := client.MainClient()

	kc.SetAttribute("plan", "gold")
	kc.SetAttributes(map[string]interface{}{"age": 30, "beta": true})
	value, ok := kc.GetAttribute("plan")
	assert.True(t, ok)
	assert.Equal(t, "gold", value)
	assert.Equal(t, map[string]interface{}{"plan": "gold", "age": 30, "beta": true}, kc.GetAttributes())

	kc.RemoveAttribute("age")
	_, ok = kc.GetAttribute("age")
	assert.False(t, ok)

	kc.ClearAttributes()
	assert.Len(t, kc.GetAttributes(), 0)
}

func TestOfflineClientIsReadyWithEmptyStores(t *testing.T) {
	client, err := MakeCustomClient(testSDKKey, testKey, Config{Offline: true, Logging: fscomponents.NoLogging()}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.IsOffline())
	assert.True(t, client.IsInitialized())
	assert.True(t, client.MainClient().IsReady())
	assert.Len(t, client.DefinitionNames(), 0)
	assert.Equal(t, interfaces.SyncModeOff, client.GetSyncStatusProvider().GetStatus().Mode)
}

func TestOfflineClientLoadsPersistentCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.db")
	withServiceServer(func(server *httptest.Server, _ <-chan httphelpers.HTTPRequestInfo) {
		config := makeTestConfig(server.URL, ldlogtest.NewMockLog())
		config.Cache = fscomponents.PersistentCache(path)
		client, err := MakeCustomClient(testSDKKey, testKey, config, timeout)
		require.NoError(t, err)
		require.NoError(t, client.MainClient().WaitForReady(context.Background(), timeout))
		require.NoError(t, client.Close())
	})

	config := Config{
		Cache:   fscomponents.PersistentCache(path),
		Logging: fscomponents.NoLogging(),
		Offline: true,
	}
	client, err := MakeCustomClient(testSDKKey, testKey, config, 0)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, []string{"flag1", "flag2"}, client.DefinitionNames())
	assert.Equal(t, []string{"seg1"}, client.MainClient().Segments())
	assert.True(t, client.MainClient().IsReady())

	other, err := client.Client("never-synced")
	require.NoError(t, err)
	assert.True(t, other.IsReady())
	assert.Nil(t, other.Segments())
}

func TestClientAppliesFlagSetFilter(t *testing.T) {
	withServiceServer(func(server *httptest.Server, requests <-chan httphelpers.HTTPRequestInfo) {
		config := makeTestConfig(server.URL, ldlogtest.NewMockLog())
		config.Filter = fscomponents.FlagSetsFilter("Front", "bad set!")
		client, err := MakeCustomClient(testSDKKey, testKey, config, timeout)
		require.NoError(t, err)
		defer client.Close()

		for {
			r := th.RequireValue(t, requests, timeout)
			if r.Request.URL.Path == "/api/splitChanges" {
				assert.Equal(t, "front", r.Request.URL.Query().Get("sets"))
				break
			}
		}
	})
}

func TestCloseShutsDownClient(t *testing.T) {
	withServiceServer(func(server *httptest.Server, _ <-chan httphelpers.HTTPRequestInfo) {
		client, err := MakeCustomClient(testSDKKey, testKey, makeTestConfig(server.URL, ldlogtest.NewMockLog()), timeout)
		require.NoError(t, err)
		events := client.MainClient().AddEventListener()
		statuses := client.GetSyncStatusProvider().AddStatusListener()

		require.NoError(t, client.Close())
		require.NoError(t, client.Close())

		assertChannelDrainsAndCloses(t, events)
		assertChannelDrainsAndCloses(t, statuses)
		assert.Len(t, client.Keys(), 0)
		_, err = client.Client("user-2")
		assert.Equal(t, ErrClientClosed, err)
	})
}

func TestPauseAndResumeAreSafeOnOfflineClient(t *testing.T) {
	client, err := MakeCustomClient(testSDKKey, testKey, Config{Offline: true, Logging: fscomponents.NoLogging()}, 0)
	require.NoError(t, err)
	defer client.Close()

	client.Pause()
	client.Resume()
	assert.True(t, client.IsInitialized())
}

func TestCacheBuildErrorPreventsClientCreation(t *testing.T) {
	client, err := MakeCustomClient(testSDKKey, testKey, Config{Cache: fscomponents.PersistentCache("")}, 0)
	assert.Nil(t, client)
	assert.Error(t, err)
}

func assertChannelDrainsAndCloses[V any](t *testing.T, ch <-chan V) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			require.Fail(t, "timed out waiting for channel to close")
		}
	}
}

func waitForMode(client *Client, mode interfaces.SyncMode) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.GetSyncStatusProvider().GetStatus().Mode == mode {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func stripBearer(value string) string {
	const prefix = "Bearer "
	if len(value) > len(prefix) && value[:len(prefix)] == prefix {
		return value[len(prefix):]
	}
	return value
}
