package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRequestTimeout      = 30 * time.Second
	DefaultLoginGuardWindow    = 3 * time.Second
	DefaultReconnectBackoff    = 1 * time.Second
	DefaultConnectErrorBackoff = 2 * time.Second
	DefaultConnectTimeout      = 20 * time.Second
	DefaultTickInterval        = 1 * time.Second
	DefaultRemainingTimeUnit   = time.Minute
	DefaultCatalogCacheTTL     = 30 * time.Second
	DefaultResponseBodyLimit   = int64(10 << 20)
)

type TransportConfig struct {
	Candidates          []string      `koanf:"candidates" mapstructure:"candidates"`
	RequestTimeout      time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	MaxFailoverAttempts int           `koanf:"max_failover_attempts" mapstructure:"max_failover_attempts"`
	ResponseBodyLimit   int64         `koanf:"response_body_limit" mapstructure:"response_body_limit"`
	UserAgent           string        `koanf:"user_agent" mapstructure:"user_agent"`
}

type SessionConfig struct {
	ProfilePath      string        `koanf:"profile_path" mapstructure:"profile_path"`
	LoginPath        string        `koanf:"login_path" mapstructure:"login_path"`
	LogoutPath       string        `koanf:"logout_path" mapstructure:"logout_path"`
	// LoginGuardWindow of zero selects the default; a negative window
	// disables the grace period.
	LoginGuardWindow time.Duration `koanf:"login_guard_window" mapstructure:"login_guard_window"`
	CredentialKey    string        `koanf:"credential_key" mapstructure:"credential_key"`
	IdentifierField  string        `koanf:"identifier_field" mapstructure:"identifier_field"`
}

type RealtimeConfig struct {
	Candidates          []string      `koanf:"candidates" mapstructure:"candidates"`
	ConnectTimeout      time.Duration `koanf:"connect_timeout" mapstructure:"connect_timeout"`
	ReconnectBackoff    time.Duration `koanf:"reconnect_backoff" mapstructure:"reconnect_backoff"`
	ConnectErrorBackoff time.Duration `koanf:"connect_error_backoff" mapstructure:"connect_error_backoff"`
	JoinEvent           string        `koanf:"join_event" mapstructure:"join_event"`
	HandshakeEvent      string        `koanf:"handshake_event" mapstructure:"handshake_event"`
}

type ReconcileConfig struct {
	TickInterval      time.Duration `koanf:"tick_interval" mapstructure:"tick_interval"`
	RemainingTimeUnit time.Duration `koanf:"remaining_time_unit" mapstructure:"remaining_time_unit"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Path   string `koanf:"path" mapstructure:"path"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
	Session     SessionConfig   `koanf:"session" mapstructure:"session"`
	Realtime    RealtimeConfig  `koanf:"realtime" mapstructure:"realtime"`
	Reconcile   ReconcileConfig `koanf:"reconcile" mapstructure:"reconcile"`
	Catalog     CatalogConfig   `koanf:"catalog" mapstructure:"catalog"`
	Store       StoreConfig     `koanf:"store" mapstructure:"store"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "supasoka",
		Transport: TransportConfig{
			RequestTimeout:    DefaultRequestTimeout,
			ResponseBodyLimit: DefaultResponseBodyLimit,
			UserAgent:         "supasoka-client",
		},
		Session: SessionConfig{
			ProfilePath:      "/auth/profile",
			LoginPath:        "/auth/login",
			LogoutPath:       "/auth/logout",
			LoginGuardWindow: DefaultLoginGuardWindow,
			CredentialKey:    "authToken",
			IdentifierField:  "email",
		},
		Realtime: RealtimeConfig{
			ConnectTimeout:      DefaultConnectTimeout,
			ReconnectBackoff:    DefaultReconnectBackoff,
			ConnectErrorBackoff: DefaultConnectErrorBackoff,
			JoinEvent:           "join-admin",
			HandshakeEvent:      "auth",
		},
		Reconcile: ReconcileConfig{
			TickInterval:      DefaultTickInterval,
			RemainingTimeUnit: DefaultRemainingTimeUnit,
		},
		Catalog: CatalogConfig{
			CacheTTL: DefaultCatalogCacheTTL,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	for _, candidate := range c.Transport.Candidates {
		if err := validateCandidate(candidate, "http", "https"); err != nil {
			return fmt.Errorf("core: transport candidate %q: %w", candidate, err)
		}
	}
	for _, candidate := range c.Realtime.Candidates {
		if err := validateCandidate(candidate, "ws", "wss", "http", "https"); err != nil {
			return fmt.Errorf("core: realtime candidate %q: %w", candidate, err)
		}
	}
	if c.Transport.MaxFailoverAttempts < 0 {
		return fmt.Errorf("core: transport max_failover_attempts must be >= 0")
	}
	if c.Reconcile.TickInterval < 0 || c.Reconcile.RemainingTimeUnit < 0 {
		return fmt.Errorf("core: reconcile intervals must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "memory", "file", "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("core: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

func validateCandidate(candidate string, schemes ...string) error {
	parsed, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required")
	}
	scheme := strings.ToLower(parsed.Scheme)
	for _, allowed := range schemes {
		if scheme == allowed {
			return nil
		}
	}
	return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
}

// WithDefaults fills zero durations and strings from DefaultConfig.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = defaults.ServiceName
	}
	if c.Transport.RequestTimeout <= 0 {
		c.Transport.RequestTimeout = defaults.Transport.RequestTimeout
	}
	if c.Transport.ResponseBodyLimit <= 0 {
		c.Transport.ResponseBodyLimit = defaults.Transport.ResponseBodyLimit
	}
	if strings.TrimSpace(c.Transport.UserAgent) == "" {
		c.Transport.UserAgent = defaults.Transport.UserAgent
	}
	c.Session = sessionDefaults(c.Session, defaults.Session)
	c.Realtime = realtimeDefaults(c.Realtime, defaults.Realtime)
	if c.Reconcile.TickInterval <= 0 {
		c.Reconcile.TickInterval = defaults.Reconcile.TickInterval
	}
	if c.Reconcile.RemainingTimeUnit <= 0 {
		c.Reconcile.RemainingTimeUnit = defaults.Reconcile.RemainingTimeUnit
	}
	if c.Catalog.CacheTTL <= 0 {
		c.Catalog.CacheTTL = defaults.Catalog.CacheTTL
	}
	if strings.TrimSpace(c.Store.Driver) == "" {
		c.Store.Driver = defaults.Store.Driver
	}
	return c
}

func sessionDefaults(cfg SessionConfig, defaults SessionConfig) SessionConfig {
	if strings.TrimSpace(cfg.ProfilePath) == "" {
		cfg.ProfilePath = defaults.ProfilePath
	}
	if strings.TrimSpace(cfg.LoginPath) == "" {
		cfg.LoginPath = defaults.LoginPath
	}
	if strings.TrimSpace(cfg.LogoutPath) == "" {
		cfg.LogoutPath = defaults.LogoutPath
	}
	if cfg.LoginGuardWindow == 0 {
		cfg.LoginGuardWindow = defaults.LoginGuardWindow
	}
	if strings.TrimSpace(cfg.CredentialKey) == "" {
		cfg.CredentialKey = defaults.CredentialKey
	}
	if strings.TrimSpace(cfg.IdentifierField) == "" {
		cfg.IdentifierField = defaults.IdentifierField
	}
	return cfg
}

func realtimeDefaults(cfg RealtimeConfig, defaults RealtimeConfig) RealtimeConfig {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaults.ReconnectBackoff
	}
	if cfg.ConnectErrorBackoff <= 0 {
		cfg.ConnectErrorBackoff = defaults.ConnectErrorBackoff
	}
	if strings.TrimSpace(cfg.JoinEvent) == "" {
		cfg.JoinEvent = defaults.JoinEvent
	}
	if strings.TrimSpace(cfg.HandshakeEvent) == "" {
		cfg.HandshakeEvent = defaults.HandshakeEvent
	}
	return cfg
}
