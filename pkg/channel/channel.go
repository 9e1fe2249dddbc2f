// Package channel owns the realtime command channel to a remote device: the
// connection lifecycle state machine, reauthentication on unauthorized
// closes, single-slot fixed-delay reconnects, permission-gated sends, and
// the bounded buffers holding inbound frames, results, and the process list.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/remotia/remotia/pkg/observability"
	"github.com/remotia/remotia/pkg/permission"
	"github.com/remotia/remotia/pkg/protocol"
)

var (
	// ErrNotConnected is returned when a command is sent while the
	// transport is down. Commands are never queued for later delivery.
	ErrNotConnected = errors.New("channel not connected")

	// ErrPermissionDenied is returned when permission gating blocks a
	// command client-side. Nothing reaches the wire.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNoToken is returned when no access token can be obtained. This is
	// a dead-end state: the caller must re-login, no retry is scheduled.
	ErrNoToken = errors.New("no access token available")
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReauthenticating
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReauthenticating:
		return "reauthenticating"
	default:
		return "unknown"
	}
}

// closeCodeUnauthorized is the close status the gateway uses for auth
// failures, alongside a reason string containing "unauthorized".
const closeCodeUnauthorized = 4001

const (
	dialTimeout   = 30 * time.Second
	writeTimeout  = 10 * time.Second
	reauthTimeout = 30 * time.Second

	maxFrameBatches = 60
	maxResults      = 100
)

// Result is one completed command outcome retained in the result log.
type Result struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Output     string    `json:"output"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// TokenSource supplies access tokens for dialing and forces refreshes on
// auth failures. *auth.Refresher satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// PermissionSource resolves the capability set for a device.
// *permission.Resolver satisfies it.
type PermissionSource interface {
	Resolve(ctx context.Context, deviceID string, isOwner bool) permission.Set
}

// Options configures a Channel.
type Options struct {
	GatewayURL string
	DeviceID   string
	IsOwner    bool

	Tokens      TokenSource
	Permissions PermissionSource
	Policy      permission.Policy

	ReconnectDelay time.Duration
	PingInterval   time.Duration
	PingTimeout    time.Duration

	// Dialer defaults to WebsocketDialer.
	Dialer Dialer
	Logger *observability.Logger

	// OnStateChange, when set, observes every state transition. Called
	// outside the channel's lock; implementations may call back into the
	// channel.
	OnStateChange func(State)
}

// Channel is one control session for a (user, device) pair.
type Channel struct {
	opts      Options
	sessionID string
	logger    *observability.Logger

	mu             sync.Mutex
	state          State
	conn           Conn
	gen            uint64
	connDone       chan struct{}
	reconnectTimer *time.Timer
	closing        bool

	perms     *permission.Set
	frames    ring[protocol.FrameBatch]
	results   ring[Result]
	processes []protocol.ProcessInfo
	pending   *pendingTable

	// writeMu serializes transport writes; gorilla conns allow only one
	// concurrent writer.
	writeMu sync.Mutex
}

// New creates a Channel for the given device. The channel is Disconnected
// until Connect is called.
func New(opts Options) (*Channel, error) {
	if opts.GatewayURL == "" {
		return nil, errors.New("gateway URL is required")
	}
	if opts.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	if opts.Permissions == nil {
		return nil, errors.New("permission source is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}

	sessionID := ulid.Make().String()
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger("channel", slog.LevelInfo)
	}
	logger = logger.WithDevice(opts.DeviceID).WithSession(sessionID)

	return &Channel{
		opts:      opts,
		sessionID: sessionID,
		logger:    logger,
		state:     StateDisconnected,
		connDone:  make(chan struct{}),
		frames:    newRing[protocol.FrameBatch](maxFrameBatches),
		results:   newRing[Result](maxResults),
		pending:   newPendingTable(maxPendingCommands),
	}, nil
}

// bumpGenLocked retires the current connection generation: any in-flight dial,
// read loop, ping loop, or reauth goroutine stamped with an older generation
// must stand down. Closing the done channel wakes blocked helpers immediately.
func (c *Channel) bumpGenLocked() uint64 {
	c.gen++
	close(c.connDone)
	c.connDone = make(chan struct{})
	return c.gen
}

// SessionID identifies this session in logs and status output.
func (c *Channel) SessionID() string {
	return c.sessionID
}

// Connect opens the transport. Calling it while a connection attempt is in
// flight, the transport is live, or a reauthentication is running is a safe
// no-op. A pending scheduled reconnect is cancelled first; this call takes
// over the attempt.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.cancelReconnectLocked()
	c.closing = false
	c.state = StateConnecting
	attempt := c.bumpGenLocked()
	c.mu.Unlock()
	c.notify(StateConnecting)

	if c.Permissions() == nil {
		set := c.opts.Permissions.Resolve(ctx, c.opts.DeviceID, c.opts.IsOwner)
		c.mu.Lock()
		c.perms = &set
		c.mu.Unlock()
	}

	token, err := c.opts.Tokens.AccessToken(ctx)
	if err != nil {
		c.logger.Error("cannot obtain access token, not retrying",
			slog.String("error", err.Error()))
		c.toDisconnected()
		return fmt.Errorf("%w: %s", ErrNoToken, err)
	}

	return c.dial(ctx, token, attempt)
}

// dial opens the transport with the token bound to this session's device and
// performs the subscribe handshake. Caller must have set StateConnecting and
// stamped the attempt via bumpGenLocked; if the channel moved on while the
// dial was in flight the fresh transport is discarded, never installed.
func (c *Channel) dial(ctx context.Context, token string, attempt uint64) error {
	endpoint, err := c.gatewayEndpoint(token)
	if err != nil {
		c.toDisconnected()
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, err := c.opts.Dialer(dialCtx, endpoint)
	if err != nil {
		c.mu.Lock()
		if attempt != c.gen {
			c.mu.Unlock()
			return fmt.Errorf("dialing gateway: %w", err)
		}
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.notify(StateDisconnected)
		return fmt.Errorf("dialing gateway: %w", err)
	}

	c.mu.Lock()
	if attempt != c.gen || c.closing {
		// Torn down or superseded while the dial was in flight.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateConnected
	done := c.connDone
	c.cancelReconnectLocked()
	c.mu.Unlock()
	c.notify(StateConnected)
	metricConnects.Inc()
	c.logger.Info("channel connected")

	if data, err := protocol.EncodeSubscribe(); err == nil {
		if err := c.write(conn, data); err != nil {
			c.logger.Warn("subscribe handshake failed", slog.String("error", err.Error()))
		}
	}

	go c.readLoop(conn, attempt)
	go c.pingLoop(conn, done)
	return nil
}

func (c *Channel) gatewayEndpoint(token string) (string, error) {
	u, err := url.Parse(c.opts.GatewayURL)
	if err != nil {
		return "", fmt.Errorf("parsing gateway URL: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	q.Set("device_id", c.opts.DeviceID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Disconnect tears the session down: cancels any scheduled reconnect and
// closes the transport with a normal-closure status so no reconnect fires.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.bumpGenLocked()
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()
	if changed {
		c.notify(StateDisconnected)
	}

	if conn != nil {
		deadline := time.Now().Add(writeTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
	}
	c.logger.Info("channel disconnected")
}

// SendAction gates, correlates, encodes, and writes one command. Fails
// immediately when disconnected; commands are never queued or retried.
func (c *Channel) SendAction(action protocol.Action) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		c.logger.Warn("dropping command while disconnected",
			slog.String("command", action.Type))
		return ErrNotConnected
	}
	if !c.opts.Policy.CanSend(c.perms, c.opts.IsOwner, action.Type) {
		c.mu.Unlock()
		metricCommandsBlocked.Inc()
		c.logger.Warn("command blocked by permissions",
			slog.String("command", action.Type))
		return fmt.Errorf("%w: %s", ErrPermissionDenied, action.Type)
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	c.pending.add(action.ID, action.Type)
	conn := c.conn
	c.mu.Unlock()

	data, err := protocol.EncodeAction(action)
	if err != nil {
		c.removePending(action.ID)
		return fmt.Errorf("encoding %s: %w", action.Type, err)
	}
	if err := c.write(conn, data); err != nil {
		c.removePending(action.ID)
		return fmt.Errorf("sending %s: %w", action.Type, err)
	}
	metricCommandsSent.Inc()
	return nil
}

func (c *Channel) write(conn Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) removePending(id string) {
	c.mu.Lock()
	c.pending.remove(id)
	c.mu.Unlock()
}

// readLoop pumps inbound messages until the transport errors out. The
// generation stamp keeps a loop from a superseded connection from touching
// current state.
func (c *Channel) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleMessage(gen, data)
	}
}

// pingLoop keeps the transport alive until its generation is retired. The
// done channel lets teardown reclaim the goroutine without waiting out a
// full ping interval.
func (c *Channel) pingLoop(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.PingTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes and dispatches one inbound frame. Decode failures
// are logged and swallowed; the connection stays up.
func (c *Channel) handleMessage(gen uint64, data []byte) {
	event, err := protocol.Decode(data)
	if err != nil {
		metricDecodeErrors.Inc()
		c.logger.Warn("dropping undecodable message", slog.String("error", err.Error()))
		return
	}

	switch event := event.(type) {
	case nil:
		// Transport chatter outside the channel's protocol.
	case protocol.PingEvent:
		// Keep-alive, no state change.
	case protocol.SubscriptionRejectedEvent:
		c.beginReauth(gen, "subscription rejected")
	case protocol.DisconnectEvent:
		if event.Unauthorized() {
			c.beginReauth(gen, "unauthorized disconnect")
		}
	case protocol.FrameBatchEvent:
		c.handleFrameBatch(event.Batch)
	case protocol.ResultEvent:
		c.handleResult(event)
	case protocol.OpaqueEvent:
		c.logger.Debug("ignoring unknown inbound command",
			slog.String("command", event.Command))
	}
}

// handleFrameBatch appends a screen update, unless the session lacks the
// seeScreen capability: the server should not push frames we may not show,
// but client-side enforcement stays as defense in depth.
func (c *Channel) handleFrameBatch(batch protocol.FrameBatch) {
	c.mu.Lock()
	allowed := c.perms != nil && c.perms.SeeScreen
	if allowed {
		c.frames.append(batch)
	}
	c.mu.Unlock()

	if allowed {
		metricFramesReceived.Inc()
	} else {
		metricFramesDropped.Inc()
	}
}

func (c *Channel) handleResult(event protocol.ResultEvent) {
	metricResultsReceived.Inc()

	c.mu.Lock()
	c.results.append(Result{
		ID:         event.ID,
		Status:     event.Status,
		Output:     event.Display,
		ReceivedAt: time.Now(),
	})
	commandType, correlated := c.pending.remove(event.ID)
	c.mu.Unlock()

	if correlated && commandType == protocol.CommandListProcesses {
		procs, ok := protocol.ParseProcessList(event.Raw)
		c.mu.Lock()
		if ok {
			c.processes = procs
		} else {
			// Shape mismatch: clear rather than keep a stale list.
			c.processes = nil
		}
		c.mu.Unlock()
	}
}

// handleClose runs when the transport read loop dies. While reauthenticating
// the explicit reauth path owns recovery and the generic reconnect is
// suppressed.
func (c *Channel) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.state == StateReauthenticating {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	reauthGen := c.bumpGenLocked()

	if c.closing || isNormalClose(err) {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notify(StateDisconnected)
		return
	}

	if isUnauthorizedClose(err) {
		c.state = StateReauthenticating
		c.mu.Unlock()
		c.notify(StateReauthenticating)
		c.logger.Info("transport closed unauthorized, reauthenticating")
		go c.reauthenticate(reauthGen)
		return
	}

	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.notify(StateDisconnected)
	c.logger.Warn("transport closed, reconnect scheduled",
		slog.String("error", err.Error()))
}

// beginReauth moves the session into Reauthenticating in response to a
// server control signal and closes the current transport. The state itself
// suppresses the generic reconnect when the close event lands.
func (c *Channel) beginReauth(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.gen || c.state == StateReauthenticating {
		c.mu.Unlock()
		return
	}
	c.state = StateReauthenticating
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	reauthGen := c.bumpGenLocked()
	c.mu.Unlock()
	c.notify(StateReauthenticating)
	c.logger.Info("reauthenticating", slog.String("reason", reason))

	if conn != nil {
		_ = conn.Close()
	}
	go c.reauthenticate(reauthGen)
}

// reauthenticate refreshes the access token and reopens the transport bound
// to the same device. A failed refresh abandons the session as Disconnected;
// the user has to log in again. The refresh round-trip can take a while, and
// the caller may Disconnect or open a fresh session in the meantime: the
// generation stamp makes a superseded reauth stand down instead of stomping
// whatever connection now owns the channel.
func (c *Channel) reauthenticate(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), reauthTimeout)
	defer cancel()

	token, err := c.opts.Tokens.Refresh(ctx)

	c.mu.Lock()
	if gen != c.gen || c.state != StateReauthenticating || c.closing {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notify(StateDisconnected)
		metricReauths.WithLabelValues("failure").Inc()
		c.logger.Error("token refresh failed, abandoning session",
			slog.String("error", err.Error()))
		return
	}
	c.state = StateConnecting
	attempt := c.bumpGenLocked()
	c.mu.Unlock()
	c.notify(StateConnecting)
	metricReauths.WithLabelValues("success").Inc()

	if err := c.dial(ctx, token, attempt); err != nil {
		c.logger.Warn("redial after reauth failed", slog.String("error", err.Error()))
	}
}

// scheduleReconnectLocked arms the single reconnect slot. The callback
// clears its own handle first so a later abnormal close can schedule again.
func (c *Channel) scheduleReconnectLocked() {
	if c.reconnectTimer != nil || c.closing {
		return
	}
	metricReconnectsScheduled.Inc()
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("reconnect attempt failed", slog.String("error", err.Error()))
		}
	})
}

func (c *Channel) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Channel) toDisconnected() {
	c.mu.Lock()
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()
	if changed {
		c.notify(StateDisconnected)
	}
}

func (c *Channel) notify(state State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state)
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isUnauthorizedClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	if closeErr.Code == closeCodeUnauthorized {
		return true
	}
	return strings.Contains(strings.ToLower(closeErr.Text), "unauthorized")
}
