package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

// Transport is what the guard needs from the resolver: issuing requests and
// owning the default bearer header.
type Transport interface {
	core.Requester
	core.BearerHolder
}

// Guard owns the session credential. While a login is in flight, and for a
// grace window after it succeeds, unauthorized responses never clear the
// credential.
type Guard struct {
	transport Transport
	store     core.CredentialStore
	hooks     *core.SessionHookCoordinator
	cfg       core.SessionConfig
	observer  *core.Observer

	mu          sync.RWMutex
	token       string
	principal   core.Principal
	guardGen    uint64
	guardActive bool
}

type guardBuilder struct {
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	hooks           *core.SessionHookCoordinator
}

type Option func(*guardBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *guardBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *guardBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *guardBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithHooks(hooks *core.SessionHookCoordinator) Option {
	return func(b *guardBuilder) {
		b.hooks = hooks
	}
}

func NewGuard(transport Transport, store core.CredentialStore, cfg core.SessionConfig, opts ...Option) (*Guard, error) {
	if transport == nil {
		return nil, core.NewBadInputError("session: transport is required", nil)
	}
	if store == nil {
		store = core.NewMemoryCredentialStore("")
	}
	builder := guardBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.hooks == nil {
		builder.hooks = core.NewSessionHookCoordinator()
	}
	defaults := core.DefaultConfig().Session
	if strings.TrimSpace(cfg.LoginPath) == "" {
		cfg.LoginPath = defaults.LoginPath
	}
	if strings.TrimSpace(cfg.LogoutPath) == "" {
		cfg.LogoutPath = defaults.LogoutPath
	}
	if strings.TrimSpace(cfg.ProfilePath) == "" {
		cfg.ProfilePath = defaults.ProfilePath
	}
	if strings.TrimSpace(cfg.IdentifierField) == "" {
		cfg.IdentifierField = defaults.IdentifierField
	}
	switch {
	case cfg.LoginGuardWindow == 0:
		cfg.LoginGuardWindow = defaults.LoginGuardWindow
	case cfg.LoginGuardWindow < 0:
		cfg.LoginGuardWindow = 0
	}

	logger := core.ResolveLogger("supasoka.session", builder.loggerProvider, builder.logger)
	return &Guard{
		transport: transport,
		store:     store,
		hooks:     builder.hooks,
		cfg:       cfg,
		observer:  core.NewObserver("supasoka", logger, builder.metricsRecorder),
	}, nil
}

func (g *Guard) Hooks() *core.SessionHookCoordinator {
	if g == nil {
		return nil
	}
	return g.hooks
}

func (g *Guard) Snapshot() core.SessionSnapshot {
	if g == nil {
		return core.SessionSnapshot{}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return core.SessionSnapshot{
		Authenticated:    g.token != "",
		Principal:        g.principal,
		LoginGuardActive: g.guardActive,
	}
}

func (g *Guard) LoginGuardActive() bool {
	return g.Snapshot().LoginGuardActive
}

// Token returns the in-memory credential, falling back to the persisted one.
func (g *Guard) Token(ctx context.Context) (string, error) {
	if g == nil {
		return "", nil
	}
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return g.store.Load(ctx)
}

// Initialize restores a persisted credential and validates it with a
// profile fetch. A 401 erases it. Any other failure keeps it and is
// returned alongside an authenticated snapshot.
func (g *Guard) Initialize(ctx context.Context) (snapshot core.SessionSnapshot, err error) {
	startedAt := time.Now()
	defer func() {
		g.observer.Observe(ctx, startedAt, "session.initialize", err, map[string]any{
			"authenticated": snapshot.Authenticated,
		})
	}()

	token, err := g.store.Load(ctx)
	if err != nil {
		return g.Snapshot(), core.NewInternalError("session: load persisted credential", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return g.Snapshot(), nil
	}
	g.install(token, core.Principal{})

	req := core.TransportRequest{Method: http.MethodGet, Path: g.cfg.ProfilePath}
	res, err := g.transport.Request(ctx, req)
	if err != nil {
		return g.Snapshot(), err
	}
	if res.StatusCode == http.StatusUnauthorized {
		if clearErr := g.HandleUnauthorized(ctx, req); clearErr != nil {
			return g.Snapshot(), clearErr
		}
		return g.Snapshot(), nil
	}
	if statusErr := core.StatusError(res.StatusCode, res.Body, map[string]any{"path": g.cfg.ProfilePath}); statusErr != nil {
		return g.Snapshot(), statusErr
	}

	payload, _ := core.DecodeObject(res.Body)
	g.mu.Lock()
	if g.token == token {
		g.principal = core.DecodePrincipal(payload)
	}
	g.mu.Unlock()
	return g.Snapshot(), nil
}

// Login raises the guard before the request is issued. On success the guard
// stays up for the configured grace window; on failure it drops at once.
func (g *Guard) Login(ctx context.Context, identifier string, secret string) (snapshot core.SessionSnapshot, err error) {
	startedAt := time.Now()
	defer func() {
		g.observer.Observe(ctx, startedAt, "session.login", err, map[string]any{
			"user_id": snapshot.Principal.ID,
		})
	}()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return g.Snapshot(), core.NewBadInputError("session: identifier and secret are required", nil)
	}

	gen := g.raiseGuard()
	body, err := json.Marshal(map[string]string{
		g.cfg.IdentifierField: identifier,
		"password":            secret,
	})
	if err != nil {
		g.lowerGuard(gen)
		return g.Snapshot(), core.NewInternalError("session: encode login body", err)
	}

	res, err := g.transport.Request(ctx, core.TransportRequest{
		Method: http.MethodPost,
		Path:   g.cfg.LoginPath,
		Body:   body,
	})
	if err != nil {
		g.lowerGuard(gen)
		return g.Snapshot(), err
	}
	switch {
	case res.StatusCode >= http.StatusInternalServerError:
		g.lowerGuard(gen)
		return g.Snapshot(), core.StatusError(res.StatusCode, res.Body, map[string]any{"path": g.cfg.LoginPath})
	case res.StatusCode >= http.StatusBadRequest:
		g.lowerGuard(gen)
		return g.Snapshot(), core.NewInvalidCredentialsError(core.ErrorMessage(res.Body, "Invalid credentials"), res.StatusCode)
	}

	payload, decodeErr := core.DecodeObject(res.Body)
	token := core.StringField(payload, "token", "accessToken")
	if token == "" {
		g.lowerGuard(gen)
		if decodeErr != nil {
			return g.Snapshot(), decodeErr
		}
		return g.Snapshot(), core.NewMalformedError("session: login response carries no credential", nil)
	}
	principal := core.DecodePrincipal(payload)
	g.install(token, principal)

	if saveErr := g.store.Save(ctx, token); saveErr != nil {
		g.observer.Log(ctx, "warn", "session credential could not be persisted", map[string]any{
			"error": saveErr.Error(),
		})
	}
	if hookErr := g.hooks.Notify(ctx, core.SessionEvent{Name: core.SessionEventLogin, Principal: principal}); hookErr != nil {
		g.observer.Log(ctx, "warn", "session login hooks failed", map[string]any{"error": hookErr.Error()})
	}
	g.releaseGuardAfter(gen)
	return g.Snapshot(), nil
}

// Logout notifies the backend best-effort, then clears everything locally.
// It ignores the login guard.
func (g *Guard) Logout(ctx context.Context) (err error) {
	startedAt := time.Now()
	defer func() {
		g.observer.Observe(ctx, startedAt, "session.logout", err, nil)
	}()

	if g.Snapshot().Authenticated {
		if _, notifyErr := g.transport.Request(ctx, core.TransportRequest{
			Method: http.MethodPost,
			Path:   g.cfg.LogoutPath,
		}); notifyErr != nil {
			g.observer.Log(ctx, "debug", "session logout notify failed", map[string]any{"error": notifyErr.Error()})
		}
	}
	return g.clear(ctx, core.SessionEventLogout)
}

// HandleUnauthorized is the clearing policy applied to 401 responses.
func (g *Guard) HandleUnauthorized(ctx context.Context, req core.TransportRequest) error {
	if g == nil {
		return nil
	}
	if g.LoginGuardActive() {
		g.observer.Log(ctx, "info", "session unauthorized response ignored during login", map[string]any{
			"path": req.Path,
		})
		return nil
	}
	return g.clear(ctx, core.SessionEventCleared)
}

func (g *Guard) install(token string, principal core.Principal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
	g.principal = principal
	g.transport.SetBearer(token)
}

func (g *Guard) clear(ctx context.Context, reason core.SessionEventName) error {
	g.mu.Lock()
	hadSession := g.token != ""
	principal := g.principal
	g.token = ""
	g.principal = core.Principal{}
	g.transport.ClearBearer()
	g.mu.Unlock()

	eraseErr := g.store.Erase(ctx)
	if eraseErr != nil {
		eraseErr = core.NewInternalError("session: erase persisted credential", eraseErr)
	}
	if hadSession || reason == core.SessionEventLogout {
		if hookErr := g.hooks.Notify(ctx, core.SessionEvent{Name: reason, Principal: principal}); hookErr != nil {
			g.observer.Log(ctx, "warn", "session hooks failed", map[string]any{
				"event": string(reason),
				"error": hookErr.Error(),
			})
		}
	}
	return eraseErr
}

func (g *Guard) raiseGuard() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guardGen++
	g.guardActive = true
	return g.guardGen
}

// lowerGuard only applies to the newest login; an older login's timer must
// not drop the guard of a login that started after it.
func (g *Guard) lowerGuard(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.guardGen == gen {
		g.guardActive = false
	}
}

func (g *Guard) releaseGuardAfter(gen uint64) {
	if g.cfg.LoginGuardWindow <= 0 {
		g.lowerGuard(gen)
		return
	}
	time.AfterFunc(g.cfg.LoginGuardWindow, func() {
		g.lowerGuard(gen)
	})
}

var (
	_ core.UnauthorizedHandler = (*Guard)(nil)
	_ core.TokenSource         = (*Guard)(nil)
)
