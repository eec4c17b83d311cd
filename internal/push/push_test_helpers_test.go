package push

import (
	"context"
	"sync"
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

const timeout = 3 * time.Second

var testControlChannels = []string{
	sharedtest.TestFlagsChannel,
	"NzM2MDI5Mzc0_MTgyNTg1MTgwNg==_" + sharedtest.TestPrimaryChannel,
	"NzM2MDI5Mzc0_MTgyNTg1MTgwNg==_" + sharedtest.TestSecondaryChannel,
}

var (
	testPrimaryChannel   = testControlChannels[1]
	testSecondaryChannel = testControlChannels[2]
)

type authenticatorFunc func(ctx context.Context, keys []string) (auth.Result, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, keys []string) (auth.Result, error) {
	return f(ctx, keys)
}

func makeTestToken(t *testing.T, ttl time.Duration) *auth.JwtToken {
	token, err := auth.ParseJwt(sharedtest.MakeStreamingToken(testControlChannels, time.Now(), ttl))
	require.NoError(t, err)
	return token
}

func successfulAuth(token *auth.JwtToken) authenticatorFunc {
	return func(context.Context, []string) (auth.Result, error) {
		return auth.Result{PushEnabled: true, Token: token}, nil
	}
}

func failingAuth(statusCode int, recoverable bool) authenticatorFunc {
	return func(context.Context, []string) (auth.Result, error) {
		return auth.Result{}, &auth.Error{StatusCode: statusCode, Recoverable: recoverable}
	}
}

// streamEvent adapts an httphelpers.SSEEvent to the event interface read from a stream.
type streamEvent struct {
	id, event, data string
}

func (e streamEvent) Id() string    { return e.id } //nolint:revive,stylecheck // interface method name
func (e streamEvent) Event() string { return e.event }
func (e streamEvent) Data() string  { return e.data }

// fakeConnection lets tests drive a Manager without a network.
type fakeConnection struct {
	events      chan ConnectionEvent
	connects    chan []string
	disconnects chan struct{}
	attempt     uint64
	lock        sync.Mutex
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		events:      make(chan ConnectionEvent, 100),
		connects:    make(chan []string, 100),
		disconnects: make(chan struct{}, 100),
	}
}

func (c *fakeConnection) Connect(keys []string) uint64 {
	c.lock.Lock()
	c.attempt++
	attempt := c.attempt
	c.lock.Unlock()
	c.connects <- keys
	return attempt
}

func (c *fakeConnection) Disconnect() {
	c.lock.Lock()
	c.attempt++
	c.lock.Unlock()
	c.disconnects <- struct{}{}
}

func (c *fakeConnection) Events() <-chan ConnectionEvent { return c.events }

func (c *fakeConnection) Close() {}

func (c *fakeConnection) emit(event ConnectionEvent) {
	c.lock.Lock()
	event.Attempt = c.attempt
	c.lock.Unlock()
	c.events <- event
}

func (c *fakeConnection) open(token *auth.JwtToken) {
	c.emit(ConnectionEvent{Kind: EventAuthenticated, Token: token})
	c.emit(ConnectionEvent{Kind: EventOpen})
}

func (c *fakeConnection) message(event httphelpers.SSEEvent) {
	c.emit(ConnectionEvent{Kind: EventMessage, Message: streamEvent{id: event.ID, event: event.Event, data: event.Data}})
}

type recordingNotificationSink struct {
	received chan notification.Notification
}

func newRecordingNotificationSink() *recordingNotificationSink {
	return &recordingNotificationSink{received: make(chan notification.Notification, 100)}
}

func (s *recordingNotificationSink) ProcessNotification(n notification.Notification) {
	s.received <- n
}

type recordingStatusSink struct {
	events chan PushEvent
}

func newRecordingStatusSink() *recordingStatusSink {
	return &recordingStatusSink{events: make(chan PushEvent, 100)}
}

func (s *recordingStatusSink) PublishPushEvent(event PushEvent) {
	s.events <- event
}

func requirePushEvent(t *testing.T, ch <-chan PushEvent, kind PushEventKind) PushEvent {
	t.Helper()
	event := th.RequireValue(t, ch, timeout, "timed out waiting for %s", kind)
	assert.Equal(t, kind, event.Kind)
	return event
}

func assertNoPushEvents(t *testing.T, ch <-chan PushEvent) {
	t.Helper()
	th.AssertNoMoreValues(t, ch, 50*time.Millisecond)
}
