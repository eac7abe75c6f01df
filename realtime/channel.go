package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"

	EventUserActivated           = "user-activated"
	EventUserUpdated             = "user-updated"
	EventUserSubscriptionUpdated = "user-subscription-updated"
)

const defaultReadLimit int64 = 1 << 20

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw data of one event. Handlers run on the channel's
// read goroutine in registration order and must not block.
type Handler func(ctx context.Context, data json.RawMessage)

type registration struct {
	id      uint64
	event   string
	handler Handler
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Channel is a push connection with explicit, sequential reconnection over
// an ordered list of candidates. Its listener registry outlives any single
// connection and is replayed onto every new one.
type Channel struct {
	candidates []string
	cfg        core.RealtimeConfig
	tokens     core.TokenSource
	httpClient *http.Client
	readLimit  int64
	observer   *core.Observer

	connectMu sync.Mutex

	mu              sync.Mutex
	state           State
	activeIndex     int
	conn            *websocket.Conn
	connID          string
	gen             uint64
	epoch           uint64
	cancelRead      context.CancelFunc
	cancelReconnect context.CancelFunc
	registry        []registration
	bound           []registration
	nextID          uint64
	closed          bool
}

type channelBuilder struct {
	httpClient      *http.Client
	readLimit       int64
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
}

type Option func(*channelBuilder)

func WithHTTPClient(client *http.Client) Option {
	return func(b *channelBuilder) {
		b.httpClient = client
	}
}

func WithReadLimit(limit int64) Option {
	return func(b *channelBuilder) {
		b.readLimit = limit
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *channelBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *channelBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *channelBuilder) {
		b.metricsRecorder = recorder
	}
}

func NewChannel(cfg core.RealtimeConfig, tokens core.TokenSource, opts ...Option) (*Channel, error) {
	candidates := make([]string, 0, len(cfg.Candidates))
	for _, candidate := range cfg.Candidates {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) == 0 {
		return nil, core.NewBadInputError("realtime: at least one candidate is required", nil)
	}

	builder := channelBuilder{readLimit: defaultReadLimit}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	defaults := core.DefaultConfig().Realtime
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaults.ReconnectBackoff
	}
	if cfg.ConnectErrorBackoff <= 0 {
		cfg.ConnectErrorBackoff = defaults.ConnectErrorBackoff
	}
	if strings.TrimSpace(cfg.HandshakeEvent) == "" {
		cfg.HandshakeEvent = defaults.HandshakeEvent
	}
	if builder.readLimit <= 0 {
		builder.readLimit = defaultReadLimit
	}

	logger := core.ResolveLogger("supasoka.realtime", builder.loggerProvider, builder.logger)
	return &Channel{
		candidates: candidates,
		cfg:        cfg,
		tokens:     tokens,
		httpClient: builder.httpClient,
		readLimit:  builder.readLimit,
		observer:   core.NewObserver("supasoka", logger, builder.metricsRecorder),
	}, nil
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeIndex
}

func (c *Channel) Candidates() []string {
	return append([]string(nil), c.candidates...)
}

// Connect is a no-op when already connected. Otherwise it tries candidates
// in order from the active one and blocks until one accepts or the list is
// exhausted.
func (c *Channel) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.NewNotConnectedError("realtime: channel is closed")
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.stopReconnectLocked()
	start := c.activeIndex
	c.mu.Unlock()

	startedAt := time.Now()
	err := c.connectFrom(ctx, start)
	c.observer.Observe(ctx, startedAt, "realtime.connect", err, map[string]any{"candidate": c.candidates[c.ActiveIndex()]})
	return err
}

// On registers handler for event and returns a func removing that single
// registration. Registrations survive reconnects.
func (c *Channel) On(event string, handler Handler) func() {
	event = strings.TrimSpace(event)
	if event == "" || handler == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextID++
	reg := registration{id: c.nextID, event: event, handler: handler}
	c.registry = append(c.registry, reg)
	if c.state == StateConnected {
		c.bound = append(c.bound, reg)
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.registry = removeRegistrations(c.registry, func(r registration) bool { return r.id == reg.id })
			c.bound = removeRegistrations(c.bound, func(r registration) bool { return r.id == reg.id })
		})
	}
}

// Off removes every handler registered for event, on the registry and on
// the live connection.
func (c *Channel) Off(event string) {
	event = strings.TrimSpace(event)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry = removeRegistrations(c.registry, func(r registration) bool { return r.event == event })
	c.bound = removeRegistrations(c.bound, func(r registration) bool { return r.event == event })
}

// Emit sends an event on the live connection. It silently drops the event
// when the channel is not connected.
func (c *Channel) Emit(ctx context.Context, event string, data any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		c.observer.Log(ctx, "debug", "realtime emit dropped while disconnected", map[string]any{"event": event})
		return nil
	}
	if err := wsjson.Write(ctx, conn, outboundFrame{Event: event, Data: data}); err != nil {
		return core.NewUnreachableError(err, map[string]any{"event": event})
	}
	return nil
}

// Disconnect tears down the live connection and any pending reconnect. The
// listener registry is kept for the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.stopReconnectLocked()
	conn, cancelRead := c.detachLocked()
	wasConnected := conn != nil
	c.mu.Unlock()

	if cancelRead != nil {
		cancelRead()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if wasConnected {
		c.dispatchLifecycle(context.Background(), EventDisconnect, map[string]any{"reason": "client disconnect"})
	}
}

// Close disconnects, drops every registration and refuses later connects.
func (c *Channel) Close() {
	c.Disconnect()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.registry = nil
	c.bound = nil
}

func (c *Channel) connectFrom(ctx context.Context, start int) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.NewNotConnectedError("realtime: channel is closed")
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	epoch := c.epoch
	c.mu.Unlock()

	if start < 0 || start >= len(c.candidates) {
		start = len(c.candidates) - 1
	}
	var firstErr error
	for index := start; index < len(c.candidates); index++ {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}
		err := c.attempt(ctx, index, epoch)
		if err == nil {
			return nil
		}
		if core.Classify(err) == core.KindNotConnected {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
		c.observer.Count(ctx, "realtime.connect_error", map[string]string{"candidate": c.candidates[index]})
		c.dispatchLifecycle(ctx, EventConnectError, map[string]any{
			"candidate": c.candidates[index],
			"error":     err.Error(),
		})
		if index+1 < len(c.candidates) {
			if !sleepCtx(ctx, c.cfg.ConnectErrorBackoff) {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
		}
	}
	c.setState(StateDisconnected)
	return firstErr
}

func (c *Channel) attempt(ctx context.Context, index int, epoch uint64) error {
	candidate := c.candidates[index]
	token := ""
	if c.tokens != nil {
		value, err := c.tokens.Token(ctx)
		if err != nil {
			return core.NewInternalError("realtime: resolve handshake credential", err)
		}
		token = strings.TrimSpace(value)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(dialCtx, candidate, &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return core.NewUnreachableError(err, map[string]any{"candidate": candidate})
	}
	conn.SetReadLimit(c.readLimit)

	if err := wsjson.Write(dialCtx, conn, outboundFrame{
		Event: c.cfg.HandshakeEvent,
		Data:  map[string]string{"token": token},
	}); err != nil {
		conn.CloseNow()
		return core.NewUnreachableError(err, map[string]any{"candidate": candidate, "stage": "handshake"})
	}

	readCtx, cancelRead := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		cancelRead()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return core.NewNotConnectedError("realtime: disconnected while connecting")
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.cancelRead = cancelRead
	c.state = StateConnected
	c.activeIndex = index
	c.connID = uuid.NewString()
	c.bound = append([]registration(nil), c.registry...)
	connID := c.connID
	c.mu.Unlock()

	go c.readLoop(readCtx, conn, gen)

	if join := strings.TrimSpace(c.cfg.JoinEvent); join != "" {
		if err := wsjson.Write(dialCtx, conn, outboundFrame{Event: join}); err != nil {
			c.observer.Log(ctx, "warn", "realtime join event failed", map[string]any{
				"candidate":     candidate,
				"connection_id": connID,
				"error":         err.Error(),
			})
		}
	}
	c.observer.Log(ctx, "info", "realtime connected", map[string]any{
		"candidate":     candidate,
		"connection_id": connID,
	})
	c.dispatchLifecycle(ctx, EventConnect, nil)
	return nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		typ, payload, err := conn.Read(ctx)
		if err != nil {
			c.handleDrop(gen, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil || strings.TrimSpace(frame.Event) == "" {
			c.observer.Log(ctx, "debug", "realtime frame ignored", map[string]any{"bytes": len(payload)})
			continue
		}
		c.dispatchFrame(ctx, gen, frame.Event, frame.Data)
	}
}

// handleDrop runs when the read loop of connection gen ends. Drops caused
// by Disconnect are ignored; anything else schedules a reconnect starting
// at the next candidate. A drop on the last candidate leaves the channel
// disconnected until the next explicit Connect.
func (c *Channel) handleDrop(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.conn == nil || c.closed {
		c.mu.Unlock()
		return
	}
	conn, cancelRead := c.detachLocked()
	from := c.activeIndex + 1
	exhausted := from >= len(c.candidates)
	c.mu.Unlock()

	if cancelRead != nil {
		cancelRead()
	}
	if conn != nil {
		conn.CloseNow()
	}

	reason := "transport error"
	if status := websocket.CloseStatus(cause); status != -1 {
		reason = "server close"
	}
	c.observer.Log(context.Background(), "warn", "realtime connection lost", map[string]any{
		"reason": reason,
		"error":  errString(cause),
	})
	c.dispatchLifecycle(context.Background(), EventDisconnect, map[string]any{"reason": reason})
	if exhausted {
		c.observer.Log(context.Background(), "warn", "realtime candidates exhausted", map[string]any{
			"candidates": len(c.candidates),
		})
		return
	}
	c.scheduleReconnect(from)
}

func (c *Channel) scheduleReconnect(from int) {
	c.mu.Lock()
	if c.closed || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.stopReconnectLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelReconnect = cancel
	backoff := c.cfg.ReconnectBackoff
	c.mu.Unlock()

	go func() {
		defer cancel()
		if !sleepCtx(ctx, backoff) {
			return
		}
		startedAt := time.Now()
		err := c.connectFrom(ctx, from)
		if errors.Is(err, context.Canceled) {
			return
		}
		c.observer.Observe(ctx, startedAt, "realtime.reconnect", err, map[string]any{"candidate": c.candidates[from]})
	}()
}

func (c *Channel) stopReconnectLocked() {
	if c.cancelReconnect != nil {
		c.cancelReconnect()
		c.cancelReconnect = nil
	}
}

func (c *Channel) detachLocked() (*websocket.Conn, context.CancelFunc) {
	conn := c.conn
	cancelRead := c.cancelRead
	c.conn = nil
	c.cancelRead = nil
	c.bound = nil
	c.connID = ""
	if conn != nil {
		c.gen++
	}
	c.state = StateDisconnected
	return conn, cancelRead
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Channel) dispatchFrame(ctx context.Context, gen uint64, event string, data json.RawMessage) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	handlers := matching(c.bound, event)
	c.mu.Unlock()
	for _, handler := range handlers {
		handler(ctx, data)
	}
}

func (c *Channel) dispatchLifecycle(ctx context.Context, event string, data map[string]any) {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	c.mu.Lock()
	handlers := matching(c.registry, event)
	c.mu.Unlock()
	for _, handler := range handlers {
		handler(ctx, raw)
	}
}

func matching(regs []registration, event string) []Handler {
	out := make([]Handler, 0, len(regs))
	for _, reg := range regs {
		if reg.event == event {
			out = append(out, reg.handler)
		}
	}
	return out
}

func removeRegistrations(regs []registration, drop func(registration) bool) []registration {
	if len(regs) == 0 {
		return regs
	}
	out := regs[:0:0]
	for _, reg := range regs {
		if !drop(reg) {
			out = append(out, reg)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
