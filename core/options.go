package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed map, typically decoded from a file
// bundled with the application.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded < runtime. Zero values in the
// upper layers never override a lower layer.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	resolved = resolved.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig loads the configured source and merges it with runtime
// overrides.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, fmt.Errorf("core: load config: %w", err)
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	section := func(name string, values map[string]any) {
		if len(values) > 0 {
			layer[name] = values
		}
	}
	set := func(target map[string]any, key string, value any, zero bool) {
		if includeZero || !zero {
			target[key] = value
		}
	}

	transport := map[string]any{}
	set(transport, "candidates", append([]string(nil), cfg.Transport.Candidates...), len(cfg.Transport.Candidates) == 0)
	set(transport, "request_timeout", cfg.Transport.RequestTimeout, cfg.Transport.RequestTimeout == 0)
	set(transport, "max_failover_attempts", cfg.Transport.MaxFailoverAttempts, cfg.Transport.MaxFailoverAttempts == 0)
	set(transport, "response_body_limit", cfg.Transport.ResponseBodyLimit, cfg.Transport.ResponseBodyLimit == 0)
	set(transport, "user_agent", cfg.Transport.UserAgent, strings.TrimSpace(cfg.Transport.UserAgent) == "")
	section("transport", transport)

	session := map[string]any{}
	set(session, "profile_path", cfg.Session.ProfilePath, strings.TrimSpace(cfg.Session.ProfilePath) == "")
	set(session, "login_path", cfg.Session.LoginPath, strings.TrimSpace(cfg.Session.LoginPath) == "")
	set(session, "logout_path", cfg.Session.LogoutPath, strings.TrimSpace(cfg.Session.LogoutPath) == "")
	set(session, "login_guard_window", cfg.Session.LoginGuardWindow, cfg.Session.LoginGuardWindow == 0)
	set(session, "credential_key", cfg.Session.CredentialKey, strings.TrimSpace(cfg.Session.CredentialKey) == "")
	set(session, "identifier_field", cfg.Session.IdentifierField, strings.TrimSpace(cfg.Session.IdentifierField) == "")
	section("session", session)

	realtime := map[string]any{}
	set(realtime, "candidates", append([]string(nil), cfg.Realtime.Candidates...), len(cfg.Realtime.Candidates) == 0)
	set(realtime, "connect_timeout", cfg.Realtime.ConnectTimeout, cfg.Realtime.ConnectTimeout == 0)
	set(realtime, "reconnect_backoff", cfg.Realtime.ReconnectBackoff, cfg.Realtime.ReconnectBackoff == 0)
	set(realtime, "connect_error_backoff", cfg.Realtime.ConnectErrorBackoff, cfg.Realtime.ConnectErrorBackoff == 0)
	set(realtime, "join_event", cfg.Realtime.JoinEvent, strings.TrimSpace(cfg.Realtime.JoinEvent) == "")
	set(realtime, "handshake_event", cfg.Realtime.HandshakeEvent, strings.TrimSpace(cfg.Realtime.HandshakeEvent) == "")
	section("realtime", realtime)

	reconcile := map[string]any{}
	set(reconcile, "tick_interval", cfg.Reconcile.TickInterval, cfg.Reconcile.TickInterval == 0)
	set(reconcile, "remaining_time_unit", cfg.Reconcile.RemainingTimeUnit, cfg.Reconcile.RemainingTimeUnit == 0)
	section("reconcile", reconcile)

	catalog := map[string]any{}
	set(catalog, "cache_ttl", cfg.Catalog.CacheTTL, cfg.Catalog.CacheTTL == 0)
	section("catalog", catalog)

	store := map[string]any{}
	set(store, "driver", cfg.Store.Driver, strings.TrimSpace(cfg.Store.Driver) == "")
	set(store, "dsn", cfg.Store.DSN, strings.TrimSpace(cfg.Store.DSN) == "")
	set(store, "path", cfg.Store.Path, strings.TrimSpace(cfg.Store.Path) == "")
	section("store", store)

	return layer
}
