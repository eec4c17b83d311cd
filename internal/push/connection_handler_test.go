package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/internal/auth"
	"github.com/flagsync/go-client-sdk/internal/notification"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerTestParams struct {
	handler  *ConnectionHandler
	stream   httphelpers.SSEStreamControl
	requests <-chan httphelpers.HTTPRequestInfo
	token    *auth.JwtToken
}

func withConnectionHandler(
	t *testing.T,
	authenticator auth.Authenticator,
	cfg HandlerConfig,
	action func(handlerTestParams),
) {
	streamHandler, stream := httphelpers.SSEHandler(nil)
	defer stream.Close()
	handler, requests := httphelpers.RecordingHandler(streamHandler)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		cfg.StreamingURI = server.URL
		h := NewConnectionHandler(sharedtest.NewSimpleTestContext("sdk-key"), authenticator, cfg)
		defer h.Close()
		action(handlerTestParams{handler: h, stream: stream, requests: requests})
	})
}

func requireConnectionEvent(t *testing.T, h *ConnectionHandler, kind ConnectionEventKind) ConnectionEvent {
	t.Helper()
	event := th.RequireValue(t, h.Events(), timeout, "timed out waiting for connection event %d", kind)
	require.Equal(t, kind, event.Kind)
	return event
}

func TestConnectionHandlerOpensStreamWithTokenChannels(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	withConnectionHandler(t, successfulAuth(token), HandlerConfig{}, func(p handlerTestParams) {
		attempt := p.handler.Connect([]string{"user1"})

		ev := requireConnectionEvent(t, p.handler, EventAuthenticated)
		assert.Equal(t, attempt, ev.Attempt)
		assert.Equal(t, token, ev.Token)

		requireConnectionEvent(t, p.handler, EventOpen)
		assert.Equal(t, StateConnected, p.handler.State())

		r := th.RequireValue(t, p.requests, timeout)
		query := r.Request.URL.Query()
		assert.Equal(t, "1.1", query.Get("v"))
		assert.Equal(t, token.RawToken, query.Get("accessToken"))
		assert.Equal(t, notification.SubscriptionChannels(token.Channels), query.Get("channels"))
		assert.Equal(t, "text/event-stream", r.Request.Header.Get("Accept"))
	})
}

func TestConnectionHandlerDeliversStreamEvents(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	withConnectionHandler(t, successfulAuth(token), HandlerConfig{}, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventAuthenticated)
		requireConnectionEvent(t, p.handler, EventOpen)

		sent := sharedtest.MakeMessageEvent(sharedtest.TestFlagsChannel, 1000, `{"type":"SPLIT_KILL"}`)
		p.stream.Send(sent)

		ev := requireConnectionEvent(t, p.handler, EventMessage)
		assert.Equal(t, "message", ev.Message.Event())
		assert.Equal(t, sent.Data, ev.Message.Data())
	})
}

func TestConnectionHandlerWaitsForConnectionDelay(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	delay := 200 * time.Millisecond
	authenticator := authenticatorFunc(func(context.Context, []string) (auth.Result, error) {
		return auth.Result{PushEnabled: true, Token: token, ConnectionDelay: delay}, nil
	})
	withConnectionHandler(t, authenticator, HandlerConfig{}, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		ev := requireConnectionEvent(t, p.handler, EventAuthenticated)
		assert.Equal(t, delay, ev.ConnectionDelay)
		authenticatedAt := time.Now()

		requireConnectionEvent(t, p.handler, EventOpen)
		assert.GreaterOrEqual(t, time.Since(authenticatedAt), delay-20*time.Millisecond)
	})
}

func TestConnectionHandlerPushDisabled(t *testing.T) {
	authenticator := authenticatorFunc(func(context.Context, []string) (auth.Result, error) {
		return auth.Result{PushEnabled: false}, nil
	})
	withConnectionHandler(t, authenticator, HandlerConfig{}, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventPushDisabled)
		assert.Equal(t, StateIdle, p.handler.State())
		th.AssertNoMoreValues(t, p.requests, 50*time.Millisecond)
	})
}

func TestConnectionHandlerAuthErrors(t *testing.T) {
	for _, c := range []struct {
		name        string
		status      int
		recoverable bool
	}{
		{"401", 401, false},
		{"403", 403, false},
		{"500", 500, true},
		{"network error", 0, true},
	} {
		t.Run(c.name, func(t *testing.T) {
			withConnectionHandler(t, failingAuth(c.status, c.recoverable), HandlerConfig{}, func(p handlerTestParams) {
				p.handler.Connect([]string{"user1"})
				ev := requireConnectionEvent(t, p.handler, EventError)
				assert.Equal(t, c.recoverable, ev.Err.IsRecoverable())
				assert.Equal(t, c.status, ev.Err.StatusCode)
				assert.Equal(t, StateError, p.handler.State())
				th.AssertNoMoreValues(t, p.requests, 50*time.Millisecond)
			})
		})
	}
}

func TestConnectionHandlerStreamHTTPErrors(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	for _, c := range []struct {
		status      int
		recoverable bool
	}{
		{401, false},
		{404, false},
		{400, true},
		{503, true},
	} {
		httphelpers.WithServer(httphelpers.HandlerWithStatus(c.status), func(server *httptest.Server) {
			h := NewConnectionHandler(sharedtest.NewSimpleTestContext("sdk-key"), successfulAuth(token),
				HandlerConfig{StreamingURI: server.URL})
			defer h.Close()

			h.Connect([]string{"user1"})
			requireConnectionEvent(t, h, EventAuthenticated)
			ev := requireConnectionEvent(t, h, EventError)
			assert.Equal(t, c.recoverable, ev.Err.IsRecoverable(), "status %d", c.status)
			assert.Equal(t, c.status, ev.Err.StatusCode)
		})
	}
}

func TestConnectionHandlerStreamClosedByServer(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	withConnectionHandler(t, successfulAuth(token), HandlerConfig{}, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventAuthenticated)
		requireConnectionEvent(t, p.handler, EventOpen)

		p.stream.EndAll()

		ev := requireConnectionEvent(t, p.handler, EventError)
		assert.True(t, ev.Err.IsRecoverable())
	})
}

func TestConnectionHandlerKeepAliveTimeout(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	cfg := HandlerConfig{KeepAliveTimeout: 150 * time.Millisecond}
	withConnectionHandler(t, successfulAuth(token), cfg, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventAuthenticated)
		requireConnectionEvent(t, p.handler, EventOpen)

		ev := requireConnectionEvent(t, p.handler, EventError)
		assert.True(t, ev.Err.IsRecoverable())
		assert.Equal(t, errKeepAliveTimeout.Error(), ev.Err.Message)
	})
}

func TestConnectionHandlerCommentsKeepStreamAlive(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	cfg := HandlerConfig{KeepAliveTimeout: 150 * time.Millisecond}
	withConnectionHandler(t, successfulAuth(token), cfg, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventAuthenticated)
		requireConnectionEvent(t, p.handler, EventOpen)

		for i := 0; i < 6; i++ {
			time.Sleep(50 * time.Millisecond)
			p.stream.SendComment("keepalive")
		}
		th.AssertNoMoreValues(t, p.handler.Events(), 0)
		assert.Equal(t, StateConnected, p.handler.State())
	})
}

func TestConnectionHandlerDisconnect(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	withConnectionHandler(t, successfulAuth(token), HandlerConfig{}, func(p handlerTestParams) {
		p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventAuthenticated)
		requireConnectionEvent(t, p.handler, EventOpen)

		p.handler.Disconnect()
		p.handler.Disconnect()
		assert.Equal(t, StateIdle, p.handler.State())

		p.stream.Send(sharedtest.MakeMessageEvent(sharedtest.TestFlagsChannel, 1, `{"type":"SPLIT_KILL"}`))
		th.AssertNoMoreValues(t, p.handler.Events(), 100*time.Millisecond)
	})
}

func TestConnectionHandlerReconnectReplacesPreviousAttempt(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	withConnectionHandler(t, successfulAuth(token), HandlerConfig{}, func(p handlerTestParams) {
		first := p.handler.Connect([]string{"user1"})
		requireConnectionEvent(t, p.handler, EventAuthenticated)
		requireConnectionEvent(t, p.handler, EventOpen)
		<-p.requests

		second := p.handler.Connect([]string{"user1", "user2"})
		assert.Greater(t, second, first)

		ev := requireConnectionEvent(t, p.handler, EventAuthenticated)
		assert.Equal(t, second, ev.Attempt)
		ev = requireConnectionEvent(t, p.handler, EventOpen)
		assert.Equal(t, second, ev.Attempt)
		th.RequireValue(t, p.requests, timeout)
	})
}

func TestConnectionHandlerAuthenticatesWithKeys(t *testing.T) {
	keysCh := make(chan []string, 1)
	authenticator := authenticatorFunc(func(_ context.Context, keys []string) (auth.Result, error) {
		keysCh <- keys
		return auth.Result{PushEnabled: false}, nil
	})
	withConnectionHandler(t, authenticator, HandlerConfig{}, func(p handlerTestParams) {
		p.handler.Connect([]string{"a", "b"})
		assert.Equal(t, []string{"a", "b"}, th.RequireValue(t, keysCh, timeout))
	})
}

func TestConnectionHandlerSendsConfiguredHeaders(t *testing.T) {
	token := makeTestToken(t, time.Hour)
	streamHandler, stream := httphelpers.SSEHandler(nil)
	defer stream.Close()
	handler, requests := httphelpers.RecordingHandler(streamHandler)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		headers := http.Header{"My-Header": {"my-value"}}
		context := sharedtest.NewTestContext("sdk-key", sharedtest.TestHTTPConfigWithHeaders(headers), nil)
		h := NewConnectionHandler(context, successfulAuth(token), HandlerConfig{StreamingURI: server.URL})
		defer h.Close()

		h.Connect([]string{"user1"})
		r := th.RequireValue(t, requests, timeout)
		assert.Equal(t, "my-value", r.Request.Header.Get("My-Header"))
	})
}

func TestConnectionHandlerConnectAfterCloseIsNoOp(t *testing.T) {
	h := NewConnectionHandler(sharedtest.NewSimpleTestContext("sdk-key"), failingAuth(500, true), HandlerConfig{})
	h.Close()
	assert.Equal(t, uint64(0), h.Connect([]string{"user1"}))
	th.AssertNoMoreValues(t, h.Events(), 50*time.Millisecond)
}
