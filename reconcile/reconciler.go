package reconcile

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/realtime"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusBlocked Status = "blocked"
)

// View is the countdown state of one displayed principal row.
type View struct {
	UserID       string
	Source       Source
	Status       Status
	Remaining    time.Duration
	LastSyncedAt time.Time
}

// Observation is one authoritative reading for a user, from a fetch or a
// push. RemainingUnits is expressed in the configured remaining time unit.
type Observation struct {
	UserID         string
	ExpiresAt      time.Time
	RemainingUnits float64
	HasRemaining   bool
	Blocked        bool
	// Revoked drops any prior source, leaving the row expired.
	Revoked bool
}

type ChangeKind string

const (
	ChangeSynced  ChangeKind = "synced"
	ChangeTick    ChangeKind = "tick"
	ChangeExpired ChangeKind = "expired"
	ChangeRemoved ChangeKind = "removed"
)

type Change struct {
	Kind ChangeKind
	View View
}

type Listener func(Change)

// Binder is the registration half of a realtime channel.
type Binder interface {
	On(event string, handler realtime.Handler) func()
}

// Reconciler merges authoritative readings with a locally ticking
// countdown. Remaining never goes negative and a row expires once per
// zero crossing; only a new authoritative reading can make it active again.
type Reconciler struct {
	clock    core.Clock
	interval time.Duration
	unit     time.Duration
	observer *core.Observer

	mu        sync.Mutex
	views     map[string]*View
	listeners map[uint64]Listener
	nextID    uint64

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

type reconcilerBuilder struct {
	clock           core.Clock
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
}

type Option func(*reconcilerBuilder)

func WithClock(clock core.Clock) Option {
	return func(b *reconcilerBuilder) {
		b.clock = clock
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *reconcilerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *reconcilerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *reconcilerBuilder) {
		b.metricsRecorder = recorder
	}
}

func NewReconciler(cfg core.ReconcileConfig, opts ...Option) *Reconciler {
	builder := reconcilerBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.clock == nil {
		builder.clock = core.SystemClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = core.DefaultTickInterval
	}
	if cfg.RemainingTimeUnit <= 0 {
		cfg.RemainingTimeUnit = core.DefaultRemainingTimeUnit
	}
	logger := core.ResolveLogger("supasoka.reconcile", builder.loggerProvider, builder.logger)
	return &Reconciler{
		clock:     builder.clock,
		interval:  cfg.TickInterval,
		unit:      cfg.RemainingTimeUnit,
		observer:  core.NewObserver("supasoka", logger, builder.metricsRecorder),
		views:     map[string]*View{},
		listeners: map[uint64]Listener{},
	}
}

// Seed upserts rows from a fetch result. Each observation is authoritative
// for its row.
func (r *Reconciler) Seed(observations ...Observation) {
	now := r.clock.Now()
	changes := make([]Change, 0, len(observations))
	r.mu.Lock()
	for _, obs := range observations {
		if change, ok := r.applyLocked(obs, now); ok {
			changes = append(changes, change)
		}
	}
	r.mu.Unlock()
	r.notify(changes)
}

// Apply merges one realtime push. It reports whether the event named a
// known subscription event carrying a user id. Malformed payloads are
// ignored.
func (r *Reconciler) Apply(event string, data json.RawMessage) bool {
	switch event {
	case realtime.EventUserActivated, realtime.EventUserUpdated, realtime.EventUserSubscriptionUpdated:
	default:
		return false
	}
	obs, ok := decodePush(data)
	if !ok {
		r.observer.Log(context.Background(), "debug", "reconcile push ignored", map[string]any{"event": event})
		return false
	}
	now := r.clock.Now()
	r.mu.Lock()
	change, applied := r.applyLocked(obs, now)
	r.mu.Unlock()
	if applied {
		r.observer.Count(context.Background(), "reconcile.push", map[string]string{"event": event})
		r.notify([]Change{change})
	}
	return applied
}

// Bind registers Apply for every subscription push event on binder and
// returns a func removing those registrations.
func (r *Reconciler) Bind(binder Binder) func() {
	if binder == nil {
		return func() {}
	}
	events := []string{
		realtime.EventUserActivated,
		realtime.EventUserUpdated,
		realtime.EventUserSubscriptionUpdated,
	}
	removers := make([]func(), 0, len(events))
	for _, event := range events {
		name := event
		removers = append(removers, binder.On(name, func(_ context.Context, data json.RawMessage) {
			r.Apply(name, data)
		}))
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

// Tick advances every row to now. It returns the rows that changed.
func (r *Reconciler) Tick(now time.Time) []Change {
	changes := []Change{}
	r.mu.Lock()
	for _, view := range r.views {
		remaining := Remaining(view.Source, now)
		switch {
		case view.Status == StatusActive && remaining == 0:
			view.Remaining = 0
			view.Status = StatusExpired
			changes = append(changes, Change{Kind: ChangeExpired, View: *view})
		case remaining != view.Remaining:
			view.Remaining = remaining
			changes = append(changes, Change{Kind: ChangeTick, View: *view})
		}
	}
	r.mu.Unlock()

	sortChanges(changes)
	for _, change := range changes {
		if change.Kind == ChangeExpired {
			r.observer.Count(context.Background(), "reconcile.expired", nil)
			r.observer.Log(context.Background(), "debug", "subscription countdown expired", map[string]any{
				"user_id": change.View.UserID,
			})
		}
	}
	r.notify(changes)
	return changes
}

// Start runs the tick loop until Stop or ctx ends. Calling Start while the
// loop runs is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	r.cancel = cancel
	r.stopped = stopped

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.Tick(r.clock.Now())
			}
		}
	}()
}

// Stop tears down the tick loop and waits for it to exit.
func (r *Reconciler) Stop() {
	r.runMu.Lock()
	cancel := r.cancel
	stopped := r.stopped
	r.cancel = nil
	r.stopped = nil
	r.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (r *Reconciler) Running() bool {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.cancel != nil
}

// Forget discards the given rows.
func (r *Reconciler) Forget(userIDs ...string) {
	changes := []Change{}
	r.mu.Lock()
	for _, id := range userIDs {
		if view, ok := r.views[strings.TrimSpace(id)]; ok {
			delete(r.views, view.UserID)
			changes = append(changes, Change{Kind: ChangeRemoved, View: *view})
		}
	}
	r.mu.Unlock()
	r.notify(changes)
}

// Retain discards every row not in userIDs, mirroring the visible set.
func (r *Reconciler) Retain(userIDs ...string) {
	keep := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		keep[strings.TrimSpace(id)] = struct{}{}
	}
	changes := []Change{}
	r.mu.Lock()
	for id, view := range r.views {
		if _, ok := keep[id]; !ok {
			delete(r.views, id)
			changes = append(changes, Change{Kind: ChangeRemoved, View: *view})
		}
	}
	r.mu.Unlock()
	sortChanges(changes)
	r.notify(changes)
}

// Reset drops every row without notifying listeners.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = map[string]*View{}
}

func (r *Reconciler) Snapshot(userID string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[strings.TrimSpace(userID)]
	if !ok {
		return View{}, false
	}
	return *view, true
}

// Snapshots returns every row ordered by user id.
func (r *Reconciler) Snapshots() []View {
	r.mu.Lock()
	out := make([]View, 0, len(r.views))
	for _, view := range r.views {
		out = append(out, *view)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Subscribe registers listener for row changes and returns a func removing
// it. Listeners run synchronously after the state lock is released.
func (r *Reconciler) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = listener
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.listeners, id)
		})
	}
}

func (r *Reconciler) applyLocked(obs Observation, now time.Time) (Change, bool) {
	id := strings.TrimSpace(obs.UserID)
	if id == "" {
		return Change{}, false
	}
	view, ok := r.views[id]
	if !ok {
		view = &View{UserID: id}
		r.views[id] = view
	}
	switch {
	case obs.Revoked:
		view.Source = nil
	case !obs.ExpiresAt.IsZero():
		view.Source = AbsoluteExpiry{At: obs.ExpiresAt}
	case obs.HasRemaining:
		units := obs.RemainingUnits
		if units < 0 {
			units = 0
		}
		view.Source = RelativeDuration{
			Remaining:  time.Duration(units * float64(r.unit)),
			CapturedAt: now,
		}
	}
	view.Remaining = Remaining(view.Source, now)
	switch {
	case obs.Blocked:
		view.Status = StatusBlocked
	case view.Remaining > 0:
		view.Status = StatusActive
	default:
		view.Status = StatusExpired
	}
	view.LastSyncedAt = now
	return Change{Kind: ChangeSynced, View: *view}, true
}

func (r *Reconciler) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, r.listeners[id])
	}
	r.mu.Unlock()

	for _, change := range changes {
		for _, listener := range listeners {
			listener(change)
		}
	}
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].View.UserID < changes[j].View.UserID })
}

// decodePush reads user-activated{user, remainingTime},
// user-updated{userId, user} and
// user-subscription-updated{userId, user{subscriptionEnd, remainingTime, isSubscribed}}.
// isSubscribed false, or a null subscriptionEnd with no remainingTime,
// revokes the row. A payload without subscription fields keeps the prior
// source.
func decodePush(data json.RawMessage) (Observation, bool) {
	root, err := core.DecodeObject(data)
	if err != nil {
		return Observation{}, false
	}
	user, _ := root["user"].(map[string]any)
	if user == nil {
		user = map[string]any{}
	}

	obs := Observation{
		UserID: core.StringField(root, "userId"),
	}
	if obs.UserID == "" {
		obs.UserID = core.StringField(user, "id", "_id", "userId")
	}
	if obs.UserID == "" {
		return Observation{}, false
	}
	if at, ok := ParseExpiry(user["subscriptionEnd"]); ok {
		obs.ExpiresAt = at
	} else if at, ok := ParseExpiry(root["subscriptionEnd"]); ok {
		obs.ExpiresAt = at
	}
	if units, ok := core.NumberField(root, "remainingTime"); ok {
		obs.RemainingUnits, obs.HasRemaining = units, true
	} else if units, ok := core.NumberField(user, "remainingTime"); ok {
		obs.RemainingUnits, obs.HasRemaining = units, true
	}
	obs.Blocked = core.BoolField(user, "isBlocked") || core.BoolField(root, "isBlocked")
	if owner, ok := fieldOwner(user, root, "isSubscribed"); ok && !core.BoolField(owner, "isSubscribed") {
		obs.Revoked = true
	}
	if owner, ok := fieldOwner(user, root, "subscriptionEnd"); ok && owner["subscriptionEnd"] == nil && !obs.HasRemaining {
		obs.Revoked = true
	}
	return obs, true
}

// fieldOwner returns the first object carrying key, even when its value is
// null.
func fieldOwner(user, root map[string]any, key string) (map[string]any, bool) {
	if _, ok := user[key]; ok {
		return user, true
	}
	if _, ok := root[key]; ok {
		return root, true
	}
	return nil, false
}

// ParseExpiry accepts RFC 3339 strings and epoch milliseconds.
func ParseExpiry(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case string:
		typed = strings.TrimSpace(typed)
		if typed == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02"} {
			if at, err := time.Parse(layout, typed); err == nil {
				return at, true
			}
		}
	case float64:
		if typed > 0 {
			return time.UnixMilli(int64(typed)), true
		}
	case time.Time:
		return typed, !typed.IsZero()
	}
	return time.Time{}, false
}
