package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/auth"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/internal/notification"
	"github.com/flagsync/go-client-sdk/internal/timers"
	"github.com/flagsync/go-client-sdk/subsystems"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"golang.org/x/exp/maps"
)

const (
	// DefaultKeepAliveTimeout is how long the stream may stay silent before it is considered dead. The
	// streaming service sends a keep-alive comment every minute.
	DefaultKeepAliveTimeout = 70 * time.Second

	connectionEventsBufferLength = 100

	streamingErrorContext = "in stream connection"
)

var errKeepAliveTimeout = errors.New("no data received on stream within keep-alive timeout")

// ConnectionState is the state of a ConnectionHandler.
type ConnectionState int

const (
	StateIdle           ConnectionState = iota //nolint:revive // self-explanatory
	StateAuthenticating                        //nolint:revive // self-explanatory
	StateConnecting                            //nolint:revive // self-explanatory
	StateConnected                             //nolint:revive // self-explanatory
	StateDisconnecting                         //nolint:revive // self-explanatory
	StateError                                 //nolint:revive // self-explanatory
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Connection is the part of ConnectionHandler that the Manager depends on.
type Connection interface {
	Connect(keys []string) uint64
	Disconnect()
	Events() <-chan ConnectionEvent
	Close()
}

// HandlerConfig describes the configuration of a ConnectionHandler.
type HandlerConfig struct {
	StreamingURI     string
	KeepAliveTimeout time.Duration
}

// ConnectionHandler owns at most one streaming connection at a time.
//
// Each call to Connect starts a new attempt: authenticate, wait for the connection delay, open the
// stream, and read events until the stream ends or is torn down. State transitions happen under a
// single lock, and a transition requested by an attempt that is no longer current is ignored. A new
// attempt does not open its stream until the previous attempt's stream has been closed.
type ConnectionHandler struct {
	authenticator auth.Authenticator
	httpClient    *http.Client
	headers       http.Header
	cfg           HandlerConfig
	loggers       ldlog.Loggers
	events        chan ConnectionEvent
	keepAlive     *timers.Manager

	state       ConnectionState
	attempt     uint64
	cancel      context.CancelFunc
	closeStream context.CancelCauseFunc
	done        chan struct{}
	closed      bool
	lock        sync.Mutex
}

// NewConnectionHandler creates a ConnectionHandler.
func NewConnectionHandler(
	context subsystems.ClientContext,
	authenticator auth.Authenticator,
	cfg HandlerConfig,
) *ConnectionHandler {
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	h := &ConnectionHandler{
		authenticator: authenticator,
		headers:       context.GetHTTP().DefaultHeaders,
		cfg:           cfg,
		loggers:       context.GetLogging().Loggers,
		events:        make(chan ConnectionEvent, connectionEventsBufferLength),
	}
	h.httpClient = context.GetHTTP().CreateHTTPClient()
	// Client.Timeout would break the stream once the timeout elapsed, since a streaming response never
	// completes. The connect timeout is a property of the transport's dialer instead.
	h.httpClient.Timeout = 0
	h.keepAlive = timers.NewManager(h.keepAliveExpired)
	return h
}

// Events returns the channel on which connection events are delivered.
func (h *ConnectionHandler) Events() <-chan ConnectionEvent {
	return h.events
}

// State returns the current state.
func (h *ConnectionHandler) State() ConnectionState {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.state
}

// Connect tears down any current connection and starts a new attempt for the given keys. It returns
// the attempt number that will be carried by every event of this attempt.
func (h *ConnectionHandler) Connect(keys []string) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return 0
	}
	previous := h.teardownLocked()
	h.attempt++
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.state = StateAuthenticating
	go h.run(ctx, h.attempt, append([]string(nil), keys...), previous, h.done)
	return h.attempt
}

// Disconnect tears down the current connection, if any. It is safe to call at any time and any
// number of times.
func (h *ConnectionHandler) Disconnect() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.cancel != nil {
		h.state = StateDisconnecting
	}
	h.teardownLocked()
	h.attempt++
	h.state = StateIdle
}

// Close disconnects and makes later calls to Connect no-ops.
func (h *ConnectionHandler) Close() {
	h.Disconnect()
	h.lock.Lock()
	h.closed = true
	h.lock.Unlock()
	h.keepAlive.Close()
}

// Returns the done channel of the attempt being torn down, or nil.
func (h *ConnectionHandler) teardownLocked() chan struct{} {
	h.keepAlive.CancelAll()
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	h.cancel = nil
	h.closeStream = nil
	return h.done
}

func (h *ConnectionHandler) transition(attempt uint64, state ConnectionState) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	if attempt != h.attempt {
		return false
	}
	h.state = state
	return true
}

func (h *ConnectionHandler) emit(ctx context.Context, event ConnectionEvent) bool {
	select {
	case h.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *ConnectionHandler) fail(ctx context.Context, attempt uint64, err *ConnectionError) {
	if !h.transition(attempt, StateError) {
		return
	}
	h.emit(ctx, ConnectionEvent{Kind: EventError, Attempt: attempt, Err: err})
}

func (h *ConnectionHandler) run(
	ctx context.Context,
	attempt uint64,
	keys []string,
	previous <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)
	if previous != nil {
		<-previous
	}

	result, err := h.authenticator.Authenticate(ctx, keys)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		h.fail(ctx, attempt, authConnectionError(err))
		return
	}
	if !result.PushEnabled {
		h.loggers.Info("Streaming is not enabled for this SDK key")
		if h.transition(attempt, StateIdle) {
			h.emit(ctx, ConnectionEvent{Kind: EventPushDisabled, Attempt: attempt})
		}
		return
	}
	if !h.emit(ctx, ConnectionEvent{
		Kind:            EventAuthenticated,
		Attempt:         attempt,
		Token:           result.Token,
		ConnectionDelay: result.ConnectionDelay,
	}) {
		return
	}

	if result.ConnectionDelay > 0 {
		if h.loggers.IsDebugEnabled() {
			h.loggers.Debugf("Waiting %s before opening stream", result.ConnectionDelay)
		}
		delay := time.NewTimer(result.ConnectionDelay)
		select {
		case <-delay.C:
		case <-ctx.Done():
			delay.Stop()
			return
		}
	}
	if !h.transition(attempt, StateConnecting) {
		return
	}
	h.stream(ctx, attempt, result.Token)
}

func (h *ConnectionHandler) stream(ctx context.Context, attempt uint64, token *auth.JwtToken) {
	streamCtx, closeStream := context.WithCancelCause(ctx)
	defer closeStream(nil)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, h.cfg.StreamingURI, nil)
	if err != nil {
		h.loggers.Errorf(
			"Unable to create a stream request; this is not a network problem, most likely a bad base URI: %s",
			err,
		)
		h.fail(ctx, attempt, &ConnectionError{Kind: ErrorKindNonRecoverable, Message: err.Error()})
		return
	}
	req.URL.RawQuery = url.Values{
		"v":           {endpoints.StreamingProtocolVersion},
		"accessToken": {token.RawToken},
		"channels":    {notification.SubscriptionChannels(token.Channels)},
	}.Encode()
	if h.headers != nil {
		req.Header = maps.Clone(h.headers)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	h.loggers.Info("Connecting to streaming service")
	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.loggers.Warnf("Error %s (%s); will retry", streamingErrorContext, err)
		h.fail(ctx, attempt, &ConnectionError{Kind: ErrorKindRecoverable, Message: err.Error()})
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if statusErr := internal.CheckForHTTPError(resp.StatusCode, req.URL.Path); statusErr != nil {
		recoverable := internal.CheckIfErrorIsRecoverableAndLog(
			h.loggers,
			internal.HTTPErrorDescription(resp.StatusCode),
			streamingErrorContext,
			resp.StatusCode,
			"will retry",
		)
		kind := ErrorKindNonRecoverable
		if recoverable {
			kind = ErrorKindRecoverable
		}
		h.fail(ctx, attempt, &ConnectionError{Kind: kind, StatusCode: resp.StatusCode, Message: statusErr.Error()})
		return
	}

	h.lock.Lock()
	if attempt != h.attempt {
		h.lock.Unlock()
		return
	}
	h.state = StateConnected
	h.closeStream = closeStream
	h.lock.Unlock()

	keepAliveID := keepAliveTimerID(attempt)
	h.keepAlive.Add(keepAliveID, h.cfg.KeepAliveTimeout)
	if !h.emit(ctx, ConnectionEvent{Kind: EventOpen, Attempt: attempt}) {
		return
	}

	body := &activityReader{r: resp.Body, onRead: func() {
		h.keepAlive.Add(keepAliveID, h.cfg.KeepAliveTimeout)
	}}
	decoder := es.NewDecoder(body)
	for {
		event, err := decoder.Decode()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.keepAlive.Cancel(keepAliveID)
			message := "stream closed by server"
			if errors.Is(context.Cause(streamCtx), errKeepAliveTimeout) {
				message = errKeepAliveTimeout.Error()
			} else if !errors.Is(err, io.EOF) {
				message = err.Error()
			}
			h.loggers.Warnf("Error %s (%s); will retry", streamingErrorContext, message)
			h.fail(ctx, attempt, &ConnectionError{Kind: ErrorKindRecoverable, Message: message})
			return
		}
		if !h.emit(ctx, ConnectionEvent{Kind: EventMessage, Attempt: attempt, Message: event}) {
			return
		}
	}
}

func (h *ConnectionHandler) keepAliveExpired(id timers.ID) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if id != keepAliveTimerID(h.attempt) || h.closeStream == nil {
		return
	}
	h.closeStream(errKeepAliveTimeout)
	h.closeStream = nil
}

func keepAliveTimerID(attempt uint64) timers.ID {
	return timers.ID(fmt.Sprintf("keepAlive-%d", attempt))
}

func authConnectionError(err error) *ConnectionError {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		kind := ErrorKindNonRecoverable
		if authErr.Recoverable {
			kind = ErrorKindRecoverable
		}
		return &ConnectionError{Kind: kind, StatusCode: authErr.StatusCode, Message: authErr.Error()}
	}
	return &ConnectionError{Kind: ErrorKindRecoverable, Message: err.Error()}
}

// activityReader reports every successful read, including reads of comment lines that the event
// decoder discards.
type activityReader struct {
	r      io.Reader
	onRead func()
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.onRead()
	}
	return n, err
}
