package supasoka

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/adapters/gologger"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/realtime"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/security"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/session"
	sqlstore "github.com/ghettodevelopers/Supasoka-backend-sub002/store/sql"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/transport"
)

// Client wires the session guard, transport resolver, catalog client and
// countdown reconciler around one credential store. The realtime channel
// is created on first use while a session is authenticated and destroyed
// whenever the session ends.
type Client struct {
	cfg            core.Config
	loggerProvider core.LoggerProvider
	logger         core.Logger
	metrics        core.MetricsRecorder

	store      core.CredentialStore
	closeStore func() error
	resolver   *transport.Resolver
	guard      *session.Guard
	catalog    *catalog.Client
	reconciler *reconcile.Reconciler
	extensions *ExtensionHooks

	realtimeHTTPClient *http.Client

	lifetime context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	channel *realtime.Channel
	unbind  []func()
	closed  bool
}

type clientBuilder struct {
	logger             core.Logger
	loggerProvider     core.LoggerProvider
	metricsRecorder    core.MetricsRecorder
	configProvider     core.ConfigProvider
	optionsResolver    core.OptionsResolver
	store              core.CredentialStore
	secrets            core.SecretProvider
	httpClient         core.HTTPDoer
	realtimeHTTPClient *http.Client
	cacheService       repositorycache.CacheService
	clock              core.Clock
	extensions         *ExtensionHooks
}

type Option func(*clientBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

// WithCredentialStore overrides the store selected by store.driver.
func WithCredentialStore(store core.CredentialStore) Option {
	return func(b *clientBuilder) {
		b.store = store
	}
}

// WithSecretProvider seals the credential at rest. It is required by the
// file driver and optional for the SQL drivers.
func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(b *clientBuilder) {
		b.secrets = secrets
	}
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *clientBuilder) {
		b.httpClient = client
	}
}

func WithRealtimeHTTPClient(client *http.Client) Option {
	return func(b *clientBuilder) {
		b.realtimeHTTPClient = client
	}
}

func WithCacheService(cache repositorycache.CacheService) Option {
	return func(b *clientBuilder) {
		b.cacheService = cache
	}
}

func WithClock(clock core.Clock) Option {
	return func(b *clientBuilder) {
		b.clock = clock
	}
}

func WithExtensionHooks(hooks *ExtensionHooks) Option {
	return func(b *clientBuilder) {
		b.extensions = hooks
	}
}

// NewClient resolves cfg against the configured sources and builds every
// component. Call Close to release the credential store and timers.
func NewClient(ctx context.Context, cfg core.Config, opts ...Option) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	builder := clientBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	resolved, err := core.ResolveConfig(ctx, builder.configProvider, builder.optionsResolver, cfg)
	if err != nil {
		return nil, err
	}
	if len(resolved.Realtime.Candidates) == 0 {
		resolved.Realtime.Candidates = DeriveRealtimeCandidates(resolved.Transport.Candidates)
	}

	provider, logger := gologger.Resolve(resolved.ServiceName, builder.loggerProvider, builder.logger)
	client := &Client{
		cfg:                resolved,
		loggerProvider:     provider,
		logger:             logger,
		metrics:            builder.metricsRecorder,
		extensions:         builder.extensions,
		realtimeHTTPClient: builder.realtimeHTTPClient,
	}
	if client.metrics == nil {
		client.metrics = core.NopMetricsRecorder{}
	}

	store, closeStore, err := openCredentialStore(ctx, resolved, builder, provider)
	if err != nil {
		return nil, err
	}
	client.store = store
	client.closeStore = closeStore

	if err := client.build(builder); err != nil {
		_ = client.releaseStore()
		return nil, err
	}
	client.lifetime, client.cancel = context.WithCancel(context.Background())
	return client, nil
}

func (c *Client) build(builder clientBuilder) error {
	resolverOpts := []transport.ResolverOption{
		transport.WithCredentialStore(c.store),
		transport.WithLoggerProvider(c.loggerProvider),
		transport.WithMetricsRecorder(c.metrics),
	}
	if builder.httpClient != nil {
		resolverOpts = append(resolverOpts, transport.WithHTTPClient(builder.httpClient))
	}
	resolver, err := transport.NewResolver(c.cfg.Transport, resolverOpts...)
	if err != nil {
		return err
	}

	hooks := core.NewSessionHookCoordinator()
	hooks.Register(core.SessionHookFunc{HookName: "supasoka.teardown", Fn: c.onSessionEvent})
	for _, hook := range c.extensions.SessionHooks() {
		hooks.Register(hook)
	}
	guard, err := session.NewGuard(resolver, c.store, c.cfg.Session,
		session.WithLoggerProvider(c.loggerProvider),
		session.WithMetricsRecorder(c.metrics),
		session.WithHooks(hooks),
	)
	if err != nil {
		return err
	}
	resolver.SetUnauthorizedHandler(guard)

	catalogOpts := []catalog.Option{
		catalog.WithLoggerProvider(c.loggerProvider),
		catalog.WithMetricsRecorder(c.metrics),
	}
	if builder.cacheService != nil {
		catalogOpts = append(catalogOpts, catalog.WithCacheService(builder.cacheService))
	}
	catalogClient, err := catalog.NewClient(resolver, c.cfg.Catalog, catalogOpts...)
	if err != nil {
		return err
	}

	reconcileOpts := []reconcile.Option{
		reconcile.WithLoggerProvider(c.loggerProvider),
		reconcile.WithMetricsRecorder(c.metrics),
	}
	if builder.clock != nil {
		reconcileOpts = append(reconcileOpts, reconcile.WithClock(builder.clock))
	}

	c.resolver = resolver
	c.guard = guard
	c.catalog = catalogClient
	c.reconciler = reconcile.NewReconciler(c.cfg.Reconcile, reconcileOpts...)
	return nil
}

func openCredentialStore(
	ctx context.Context,
	cfg core.Config,
	builder clientBuilder,
	provider core.LoggerProvider,
) (core.CredentialStore, func() error, error) {
	if builder.store != nil {
		return builder.store, nil, nil
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver)); driver {
	case "", "memory":
		return core.NewMemoryCredentialStore(""), nil, nil
	case "file":
		if builder.secrets == nil {
			return nil, nil, core.NewBadInputError("supasoka: file credential store requires a secret provider", nil)
		}
		store, err := security.NewFileCredentialStore(cfg.Store.Path, builder.secrets,
			security.WithStoreLogger(gologger.ForComponent(provider, cfg.ServiceName, "security")),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "sqlite", "sqlite3", "postgres":
		persistenceClient, err := sqlstore.Open(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		var storeOpts []sqlstore.CredentialStoreOption
		if builder.secrets != nil {
			storeOpts = append(storeOpts, sqlstore.WithSecretProvider(builder.secrets))
		}
		store, err := sqlstore.NewCredentialStoreFromPersistence(persistenceClient, cfg.Session.CredentialKey, storeOpts...)
		if err != nil {
			_ = persistenceClient.Close()
			return nil, nil, err
		}
		return store, persistenceClient.Close, nil
	default:
		return nil, nil, core.NewBadInputError(fmt.Sprintf("supasoka: unsupported store driver %q", driver), nil)
	}
}

// DeriveRealtimeCandidates maps REST base URLs onto realtime endpoints by
// dropping a trailing /api segment. The scheme is kept; the websocket dialer
// accepts http and https.
func DeriveRealtimeCandidates(restCandidates []string) []string {
	out := make([]string, 0, len(restCandidates))
	seen := map[string]struct{}{}
	for _, candidate := range restCandidates {
		parsed, err := url.Parse(strings.TrimSpace(candidate))
		if err != nil || parsed.Host == "" {
			continue
		}
		parsed.Path = strings.TrimSuffix(strings.TrimRight(parsed.Path, "/"), "/api")
		parsed.RawQuery = ""
		value := parsed.String()
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func (c *Client) Config() core.Config {
	return c.cfg
}

func (c *Client) Resolver() *transport.Resolver {
	return c.resolver
}

func (c *Client) Guard() *session.Guard {
	return c.guard
}

func (c *Client) Catalog() *catalog.Client {
	return c.catalog
}

func (c *Client) Reconciler() *reconcile.Reconciler {
	return c.reconciler
}

func (c *Client) CredentialStore() core.CredentialStore {
	return c.store
}

func (c *Client) Initialize(ctx context.Context) (core.SessionSnapshot, error) {
	return c.guard.Initialize(ctx)
}

func (c *Client) Login(ctx context.Context, identifier string, secret string) (core.SessionSnapshot, error) {
	return c.guard.Login(ctx, identifier, secret)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.guard.Logout(ctx)
}

func (c *Client) Snapshot() core.SessionSnapshot {
	return c.guard.Snapshot()
}

func (c *Client) Profile(ctx context.Context) (core.Principal, error) {
	return c.catalog.Profile(ctx)
}

// Realtime returns the session's channel, creating it on first use. It
// fails with a not-connected error when no session is authenticated.
func (c *Client) Realtime() (*realtime.Channel, error) {
	if !c.guard.Snapshot().Authenticated {
		return nil, core.NewNotConnectedError("supasoka: realtime requires an authenticated session")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.NewNotConnectedError("supasoka: client is closed")
	}
	if c.channel != nil {
		return c.channel, nil
	}

	opts := []realtime.Option{
		realtime.WithLoggerProvider(c.loggerProvider),
		realtime.WithMetricsRecorder(c.metrics),
	}
	if c.realtimeHTTPClient != nil {
		opts = append(opts, realtime.WithHTTPClient(c.realtimeHTTPClient))
	}
	channel, err := realtime.NewChannel(c.cfg.Realtime, core.TokenSourceFunc(c.guard.Token), opts...)
	if err != nil {
		return nil, err
	}
	unbind := []func(){c.reconciler.Bind(channel)}
	unbind = append(unbind, c.extensions.bindEventPacks(channel)...)
	c.channel = channel
	c.unbind = unbind
	return channel, nil
}

// ConnectRealtime connects the session channel and starts the countdown
// ticker for the life of the client.
func (c *Client) ConnectRealtime(ctx context.Context) error {
	channel, err := c.Realtime()
	if err != nil {
		return err
	}
	if err := channel.Connect(ctx); err != nil {
		return err
	}
	c.reconciler.Start(c.lifetime)
	return nil
}

func (c *Client) DisconnectRealtime(context.Context) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel != nil {
		channel.Disconnect()
	}
	return nil
}

func (c *Client) ListUsers(ctx context.Context) ([]catalog.User, error) {
	return c.catalog.ListUsers(ctx)
}

func (c *Client) ListChannels(ctx context.Context) ([]catalog.Channel, error) {
	return c.catalog.ListChannels(ctx)
}

func (c *Client) ListPromotions(ctx context.Context) ([]catalog.Promotion, error) {
	return c.catalog.ListPromotions(ctx)
}

func (c *Client) ListNotifications(ctx context.Context) ([]catalog.Notification, error) {
	return c.catalog.ListNotifications(ctx)
}

// ActivateUser activates the subscription and folds the returned user into
// the countdown views without waiting for the realtime push. The countdown
// ticker is started if it is not running.
func (c *Client) ActivateUser(ctx context.Context, userID string, duration time.Duration) (catalog.User, error) {
	user, err := c.catalog.ActivateUser(ctx, userID, duration)
	if err != nil {
		return catalog.User{}, err
	}
	if strings.TrimSpace(user.ID) != "" {
		c.reconciler.Seed(user.Observation())
		c.reconciler.Start(c.lifetime)
	}
	return user, nil
}

func (c *Client) SetUserBlocked(ctx context.Context, userID string, blocked bool) error {
	if blocked {
		return c.catalog.BlockUser(ctx, userID)
	}
	return c.catalog.UnblockUser(ctx, userID)
}

func (c *Client) SendNotification(ctx context.Context, input catalog.NotificationInput) (catalog.Notification, error) {
	return c.catalog.SendNotification(ctx, input)
}

// SyncCountdowns refetches users, reseeds the reconciler from them and
// starts the countdown ticker. Seeded rows tick with or without realtime;
// logout and Close stop the ticker.
func (c *Client) SyncCountdowns(ctx context.Context) ([]reconcile.View, error) {
	if _, err := c.catalog.SeedReconciler(ctx, c.reconciler); err != nil {
		return nil, err
	}
	c.reconciler.Start(c.lifetime)
	return c.reconciler.Snapshots(), nil
}

// Close destroys the realtime channel, stops the ticker and releases the
// credential store. The persisted credential is kept.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.teardownRealtime()
	c.reconciler.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	return c.releaseStore()
}

func (c *Client) onSessionEvent(ctx context.Context, event core.SessionEvent) error {
	switch event.Name {
	case core.SessionEventLogout, core.SessionEventCleared:
	default:
		return nil
	}
	c.teardownRealtime()
	c.reconciler.Stop()
	c.reconciler.Reset()
	return c.catalog.Invalidate(ctx)
}

func (c *Client) teardownRealtime() {
	c.mu.Lock()
	channel := c.channel
	unbind := c.unbind
	c.channel = nil
	c.unbind = nil
	c.mu.Unlock()

	for _, fn := range unbind {
		if fn != nil {
			fn()
		}
	}
	if channel != nil {
		channel.Close()
	}
}

func (c *Client) releaseStore() error {
	if c.closeStore == nil {
		return nil
	}
	closeStore := c.closeStore
	c.closeStore = nil
	return closeStore()
}
