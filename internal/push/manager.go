package push

import (
	"sync"
	"time"

	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/internal/auth"
	"github.com/flagsync/go-client-sdk/internal/backoff"
	"github.com/flagsync/go-client-sdk/internal/notification"
	"github.com/flagsync/go-client-sdk/internal/timers"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// DefaultTokenRefreshMargin is how long before a token's expiration it is replaced.
	DefaultTokenRefreshMargin = 10 * time.Minute
	// DefaultMinTokenRefreshDelay is the default shortest interval between token refreshes.
	DefaultMinTokenRefreshDelay = time.Minute

	// DefaultRetryableErrorMin and DefaultRetryableErrorMax bound the SSE error codes that are retried.
	DefaultRetryableErrorMin = 40140
	DefaultRetryableErrorMax = 40149

	tokenRefreshTimer timers.ID = "tokenRefresh"
	reconnectTimer    timers.ID = "reconnect"
)

// NotificationSink receives the data notifications read from the stream.
type NotificationSink interface {
	ProcessNotification(n notification.Notification)
}

// Config describes the configuration of a Manager.
type Config struct {
	StreamingURI       string
	KeepAliveTimeout   time.Duration
	TokenRefreshMargin time.Duration
	// MinTokenRefreshDelay is the floor of the token refresh delay.
	MinTokenRefreshDelay time.Duration
	BackoffBase          int
	MaxBackoffDelay      time.Duration
	RetryableErrorMin    int
	RetryableErrorMax    int
}

func (c Config) withDefaults() Config {
	if c.TokenRefreshMargin <= 0 {
		c.TokenRefreshMargin = DefaultTokenRefreshMargin
	}
	if c.MinTokenRefreshDelay <= 0 {
		c.MinTokenRefreshDelay = DefaultMinTokenRefreshDelay
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = backoff.DefaultBase
	}
	if c.MaxBackoffDelay <= 0 {
		c.MaxBackoffDelay = backoff.DefaultMaxDelay
	}
	if c.RetryableErrorMin == 0 && c.RetryableErrorMax == 0 {
		c.RetryableErrorMin, c.RetryableErrorMax = DefaultRetryableErrorMin, DefaultRetryableErrorMax
	}
	return c
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdPause
	cmdResume
	cmdUpdateKeys
)

type command struct {
	kind commandKind
	keys []string
	ack  chan struct{}
}

// Manager orchestrates the push subsystem: authentication, the stream connection, token refresh, and
// reconnection with backoff. All of its state is owned by a single goroutine; public methods send
// commands to it and wait for them to be applied.
type Manager struct {
	conn        Connection
	keeper      *Keeper
	sink        NotificationSink
	broadcaster *internal.Broadcaster[PushEvent]
	timers      *timers.Manager
	backoff     *backoff.Counter
	cfg         Config
	loggers     ldlog.Loggers
	commands    chan command
	timerFired  chan timers.ID
	done        chan struct{}
	closeOnce   sync.Once

	// owned by the run loop
	keys     []string
	attempt  uint64
	running  bool
	paused   bool
	disabled bool
}

// NewManager creates a Manager that connects through a new ConnectionHandler.
func NewManager(
	context subsystems.ClientContext,
	authenticator auth.Authenticator,
	sink NotificationSink,
	keys []string,
	cfg Config,
) *Manager {
	conn := NewConnectionHandler(context, authenticator, HandlerConfig{
		StreamingURI:     cfg.StreamingURI,
		KeepAliveTimeout: cfg.KeepAliveTimeout,
	})
	return newManager(conn, sink, keys, cfg, context.GetLogging().Loggers)
}

func newManager(
	conn Connection,
	sink NotificationSink,
	keys []string,
	cfg Config,
	loggers ldlog.Loggers,
) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		conn:        conn,
		sink:        sink,
		broadcaster: internal.NewBroadcaster[PushEvent](),
		backoff:     backoff.New(cfg.BackoffBase, cfg.MaxBackoffDelay),
		cfg:         cfg,
		loggers:     loggers,
		commands:    make(chan command),
		timerFired:  make(chan timers.ID),
		done:        make(chan struct{}),
		keys:        append([]string(nil), keys...),
	}
	m.keeper = NewKeeper(m, loggers)
	m.timers = timers.NewManager(func(id timers.ID) {
		select {
		case m.timerFired <- id:
		case <-m.done:
		}
	})
	go m.run()
	return m
}

// Events returns a channel of push events. The channel is closed when the Manager is closed.
func (m *Manager) Events() <-chan PushEvent {
	return m.broadcaster.AddListener()
}

// RemoveEventListener unsubscribes a channel returned by Events.
func (m *Manager) RemoveEventListener(ch <-chan PushEvent) {
	m.broadcaster.RemoveListener(ch)
}

// Start begins authenticating and connecting. It has no effect if already started, or if push was
// disabled for this session.
func (m *Manager) Start() { m.send(command{kind: cmdStart}) }

// Stop cancels all timers, disconnects, and publishes PushSubsystemDown.
func (m *Manager) Stop() { m.send(command{kind: cmdStop}) }

// Pause disconnects without reporting a status change; Resume reconnects.
func (m *Manager) Pause() { m.send(command{kind: cmdPause}) }

// Resume reconnects after Pause.
func (m *Manager) Resume() { m.send(command{kind: cmdResume}) }

// UpdateKeys replaces the set of keys the stream is authenticated for, reconnecting if connected.
func (m *Manager) UpdateKeys(keys []string) {
	m.send(command{kind: cmdUpdateKeys, keys: append([]string(nil), keys...)})
}

// Close stops the Manager permanently.
func (m *Manager) Close() {
	select {
	case <-m.done:
		return
	default:
	}
	m.Stop()
	m.closeOnce.Do(func() {
		close(m.done)
		m.conn.Close()
		m.timers.Close()
		m.broadcaster.Close()
	})
}

func (m *Manager) send(cmd command) {
	cmd.ack = make(chan struct{})
	select {
	case m.commands <- cmd:
	case <-m.done:
		return
	}
	select {
	case <-cmd.ack:
	case <-m.done:
	}
}

// PublishPushEvent is called by the Keeper, always from the run loop.
func (m *Manager) PublishPushEvent(event PushEvent) {
	switch event.Kind {
	case PushSubsystemDisabled:
		m.loggers.Warn("Streaming was disabled by the server; falling back to polling")
		m.disablePush()
	case PushReset:
		m.loggers.Info("Streaming reset requested by the server")
	}
	m.broadcaster.Broadcast(event)
}

func (m *Manager) run() {
	events := m.conn.Events()
	for {
		select {
		case cmd := <-m.commands:
			m.handleCommand(cmd)
			close(cmd.ack)
		case event := <-events:
			if event.Attempt != m.attempt || m.attempt == 0 {
				continue
			}
			m.handleConnectionEvent(event)
		case id := <-m.timerFired:
			m.handleTimer(id)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdStart:
		if m.running {
			return
		}
		if m.disabled {
			m.loggers.Debug("Not starting streaming; it was disabled for this session")
			return
		}
		m.running = true
		m.backoff.Reset()
		m.connect()
	case cmdStop:
		m.running = false
		m.disconnect()
		m.broadcaster.Broadcast(PushEvent{Kind: PushSubsystemDown})
	case cmdPause:
		if m.paused {
			return
		}
		m.paused = true
		m.disconnect()
	case cmdResume:
		if !m.paused {
			return
		}
		m.paused = false
		m.backoff.Reset()
		m.connect()
	case cmdUpdateKeys:
		m.keys = cmd.keys
		m.connect()
	}
}

func (m *Manager) canConnect() bool {
	return m.running && !m.paused && !m.disabled
}

func (m *Manager) connect() {
	if !m.canConnect() {
		return
	}
	m.timers.Cancel(reconnectTimer)
	m.timers.Cancel(tokenRefreshTimer)
	m.attempt = m.conn.Connect(m.keys)
}

func (m *Manager) disconnect() {
	m.timers.CancelAll()
	m.conn.Disconnect()
	m.attempt = 0
}

func (m *Manager) disablePush() {
	m.disabled = true
	m.disconnect()
}

func (m *Manager) scheduleReconnect() {
	delay := m.backoff.NextDelay()
	m.loggers.Infof("Reconnecting to streaming service in %s", delay)
	m.timers.Add(reconnectTimer, delay)
}

func (m *Manager) handleConnectionEvent(event ConnectionEvent) {
	switch event.Kind {
	case EventAuthenticated:
		m.scheduleTokenRefresh(event.Token)
		m.broadcaster.Broadcast(PushEvent{
			Kind:         PushDelayReceived,
			DelaySeconds: int64(event.ConnectionDelay / time.Second),
		})
	case EventOpen:
		m.loggers.Info("Streaming connection established")
		m.backoff.Reset()
		m.keeper.Reset()
		m.broadcaster.Broadcast(PushEvent{Kind: PushSubsystemUp})
	case EventMessage:
		m.handleMessage(event)
	case EventError:
		m.attempt = 0
		if event.Err.IsRecoverable() {
			m.broadcaster.Broadcast(PushEvent{Kind: PushRetryableError, Err: event.Err})
			m.timers.Cancel(tokenRefreshTimer)
			m.scheduleReconnect()
			return
		}
		m.loggers.Errorf("Streaming connection failed permanently: %s", event.Err)
		m.disablePush()
		m.broadcaster.Broadcast(PushEvent{Kind: PushNonRetryableError, Err: event.Err})
	case EventPushDisabled:
		m.disablePush()
		m.broadcaster.Broadcast(PushEvent{Kind: PushSubsystemDisabled})
	}
}

func (m *Manager) handleMessage(event ConnectionEvent) {
	env, err := notification.ParseIncoming(event.Message)
	if err != nil {
		m.loggers.Errorf("Ignoring malformed streaming notification: %s", err)
		return
	}
	if env == nil {
		return
	}
	n, err := notification.Parse(env)
	if err != nil {
		m.loggers.Errorf("Ignoring malformed %s notification: %s", env.Type, err)
		return
	}
	switch typed := n.(type) {
	case notification.Occupancy:
		m.keeper.HandleOccupancy(typed)
	case notification.Control:
		m.keeper.HandleControl(typed)
	case notification.SseError:
		m.handleSseError(typed)
	default:
		m.sink.ProcessNotification(n)
	}
}

func (m *Manager) handleSseError(n notification.SseError) {
	err := &ConnectionError{Message: n.Message, StatusCode: n.StatusCode}
	if n.IsRetryable(m.cfg.RetryableErrorMin, m.cfg.RetryableErrorMax) {
		m.loggers.Warnf("Streaming service sent error %d (%s); will reconnect", n.Code, n.Message)
		err.Kind = ErrorKindRecoverable
		m.conn.Disconnect()
		m.attempt = 0
		m.timers.Cancel(tokenRefreshTimer)
		m.broadcaster.Broadcast(PushEvent{Kind: PushRetryableError, Err: err})
		m.scheduleReconnect()
		return
	}
	m.loggers.Errorf("Streaming service sent error %d (%s); streaming will not be retried", n.Code, n.Message)
	err.Kind = ErrorKindNonRecoverable
	m.disablePush()
	m.broadcaster.Broadcast(PushEvent{Kind: PushNonRetryableError, Err: err})
}

func (m *Manager) scheduleTokenRefresh(token *auth.JwtToken) {
	if token == nil {
		return
	}
	delay := tokenRefreshDelay(token, m.cfg.TokenRefreshMargin, m.cfg.MinTokenRefreshDelay)
	if m.loggers.IsDebugEnabled() {
		m.loggers.Debugf("Streaming token will be refreshed in %s", delay)
	}
	m.timers.Add(tokenRefreshTimer, delay)
}

func tokenRefreshDelay(token *auth.JwtToken, margin, minDelay time.Duration) time.Duration {
	delay := time.Duration(token.ExpirationTime-token.IssuedAt)*time.Second - margin
	if delay < minDelay {
		return minDelay
	}
	return delay
}

func (m *Manager) handleTimer(id timers.ID) {
	switch id {
	case reconnectTimer:
		m.connect()
	case tokenRefreshTimer:
		m.loggers.Info("Refreshing streaming token")
		m.connect()
	}
}
