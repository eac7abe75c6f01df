package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

const cacheKeyPrefix = "supasoka::catalog::v1"

const (
	collectionUsers         = "users"
	collectionChannels      = "channels"
	collectionPromotions    = "promotions"
	collectionNotifications = "notifications"
)

// Transport is the JSON helper of the transport resolver.
type Transport interface {
	DoRaw(ctx context.Context, method string, path string, body any, out any) (core.TransportResponse, error)
}

// Paths holds the backend routes of each collection.
type Paths struct {
	Profile       string
	Users         string
	Channels      string
	Promotions    string
	Notifications string
}

func DefaultPaths() Paths {
	return Paths{
		Profile:       core.DefaultConfig().Session.ProfilePath,
		Users:         "/admin/users",
		Channels:      "/admin/channels",
		Promotions:    "/admin/promotions",
		Notifications: "/admin/notifications",
	}
}

// Client reads and mutates the remote catalog. List reads go through a
// cache that mutations invalidate per collection.
type Client struct {
	transport Transport
	cache     repositorycache.CacheService
	paths     Paths
	observer  *core.Observer
}

type clientBuilder struct {
	cache           repositorycache.CacheService
	paths           *Paths
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
}

type Option func(*clientBuilder)

func WithCacheService(cache repositorycache.CacheService) Option {
	return func(b *clientBuilder) {
		b.cache = cache
	}
}

func WithPaths(paths Paths) Option {
	return func(b *clientBuilder) {
		b.paths = &paths
	}
}

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

func NewClient(transport Transport, cfg core.CatalogConfig, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, core.NewBadInputError("catalog: transport is required", nil)
	}
	builder := clientBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	cache := builder.cache
	if cache == nil {
		config := repositorycache.DefaultConfig()
		config.TTL = cfg.CacheTTL
		if config.TTL <= 0 {
			config.TTL = core.DefaultCatalogCacheTTL
		}
		service, err := repositorycache.NewCacheService(config)
		if err != nil {
			return nil, core.NewInternalError("catalog: build cache service", err)
		}
		cache = service
	}
	paths := DefaultPaths()
	if builder.paths != nil {
		paths = mergePaths(paths, *builder.paths)
	}
	logger := core.ResolveLogger("supasoka.catalog", builder.loggerProvider, builder.logger)
	return &Client{
		transport: transport,
		cache:     cache,
		paths:     paths,
		observer:  core.NewObserver("supasoka", logger, builder.metricsRecorder),
	}, nil
}

// CacheKey returns the list cache key of a collection:
// supasoka::catalog::v1::<collection>.
func CacheKey(collection string) string {
	return cacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(collection))
}

// Invalidate drops the cached lists of the given collections, or of every
// collection when none is named.
func (c *Client) Invalidate(ctx context.Context, collections ...string) error {
	if len(collections) == 0 {
		collections = []string{collectionUsers, collectionChannels, collectionPromotions, collectionNotifications}
	}
	for _, collection := range collections {
		if err := c.cache.Delete(ctx, CacheKey(collection)); err != nil {
			return core.NewInternalError(fmt.Sprintf("catalog: invalidate %s", collection), err)
		}
	}
	return nil
}

// Profile fetches the authenticated principal.
func (c *Client) Profile(ctx context.Context) (principal core.Principal, err error) {
	startedAt := time.Now()
	defer func() {
		c.observer.Observe(ctx, startedAt, "catalog.profile", err, map[string]any{"user_id": principal.ID})
	}()
	res, err := c.transport.DoRaw(ctx, http.MethodGet, c.paths.Profile, nil, nil)
	if err != nil {
		return core.Principal{}, err
	}
	payload, _ := core.DecodeObject(res.Body)
	return core.DecodePrincipal(payload), nil
}

// listCached returns the cached collection or fetches it. Malformed
// payloads degrade to an empty list.
func listCached[T any](ctx context.Context, c *Client, collection string, path string, decode func(map[string]any) T) (items []T, err error) {
	startedAt := time.Now()
	fetched := false
	defer func() {
		c.observer.Observe(ctx, startedAt, "catalog.list", err, map[string]any{
			"collection": collection,
			"count":      len(items),
			"cache_hit":  !fetched,
		})
	}()

	items, err = repositorycache.GetOrFetch(ctx, c.cache, CacheKey(collection), func(ctx context.Context) ([]T, error) {
		fetched = true
		res, fetchErr := c.transport.DoRaw(ctx, http.MethodGet, path, nil, nil)
		if fetchErr != nil {
			return nil, fetchErr
		}
		objects, decodeErr := decodeList(res.Body, collection)
		if decodeErr != nil {
			c.observer.Log(ctx, "warn", "catalog payload malformed, using empty list", map[string]any{
				"collection": collection,
				"error":      decodeErr.Error(),
			})
		}
		out := make([]T, 0, len(objects))
		for _, object := range objects {
			out = append(out, decode(object))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]T(nil), items...), nil
}

// mutate issues a write and invalidates the collection list on success.
func (c *Client) mutate(ctx context.Context, collection string, method string, path string, body any) (res core.TransportResponse, err error) {
	startedAt := time.Now()
	defer func() {
		c.observer.Observe(ctx, startedAt, "catalog.mutate", err, map[string]any{
			"collection": collection,
			"method":     method,
			"path":       path,
		})
	}()
	res, err = c.transport.DoRaw(ctx, method, path, body, nil)
	if err != nil {
		return res, err
	}
	if invalidateErr := c.Invalidate(ctx, collection); invalidateErr != nil {
		c.observer.Log(ctx, "warn", "catalog cache invalidation failed", map[string]any{
			"collection": collection,
			"error":      invalidateErr.Error(),
		})
	}
	return res, nil
}

func itemPath(base string, id string, suffix ...string) string {
	segments := append([]string{strings.TrimRight(base, "/"), url.PathEscape(strings.TrimSpace(id))}, suffix...)
	return strings.Join(segments, "/")
}

func requireID(kind string, id string) error {
	if strings.TrimSpace(id) == "" {
		return core.NewBadInputError(fmt.Sprintf("catalog: %s id is required", kind), nil)
	}
	return nil
}

func mergePaths(base Paths, override Paths) Paths {
	if strings.TrimSpace(override.Profile) != "" {
		base.Profile = override.Profile
	}
	if strings.TrimSpace(override.Users) != "" {
		base.Users = override.Users
	}
	if strings.TrimSpace(override.Channels) != "" {
		base.Channels = override.Channels
	}
	if strings.TrimSpace(override.Promotions) != "" {
		base.Promotions = override.Promotions
	}
	if strings.TrimSpace(override.Notifications) != "" {
		base.Notifications = override.Notifications
	}
	return base
}
