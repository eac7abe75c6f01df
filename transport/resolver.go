package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderUserAgent     = "User-Agent"
)

// Resolver issues requests against an ordered list of backend candidates.
// The active index only ever moves forward: once a candidate has been
// abandoned for being unreachable it is never tried again by this instance.
type Resolver struct {
	adapter     *RESTAdapter
	candidates  []string
	active      atomic.Int64
	maxFailover int
	timeout     time.Duration
	userAgent   string

	store    core.CredentialStore
	observer *core.Observer

	handlerMu    sync.RWMutex
	unauthorized core.UnauthorizedHandler
}

type resolverBuilder struct {
	httpClient      core.HTTPDoer
	adapter         *RESTAdapter
	store           core.CredentialStore
	unauthorized    core.UnauthorizedHandler
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
}

type ResolverOption func(*resolverBuilder)

func WithHTTPClient(client core.HTTPDoer) ResolverOption {
	return func(b *resolverBuilder) {
		b.httpClient = client
	}
}

func WithAdapter(adapter *RESTAdapter) ResolverOption {
	return func(b *resolverBuilder) {
		b.adapter = adapter
	}
}

func WithCredentialStore(store core.CredentialStore) ResolverOption {
	return func(b *resolverBuilder) {
		b.store = store
	}
}

func WithUnauthorizedHandler(handler core.UnauthorizedHandler) ResolverOption {
	return func(b *resolverBuilder) {
		b.unauthorized = handler
	}
}

func WithLogger(logger core.Logger) ResolverOption {
	return func(b *resolverBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) ResolverOption {
	return func(b *resolverBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) ResolverOption {
	return func(b *resolverBuilder) {
		b.metricsRecorder = recorder
	}
}

func NewResolver(cfg core.TransportConfig, opts ...ResolverOption) (*Resolver, error) {
	candidates := make([]string, 0, len(cfg.Candidates))
	for _, candidate := range cfg.Candidates {
		candidate = strings.TrimRight(strings.TrimSpace(candidate), "/")
		if candidate == "" {
			continue
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		return nil, core.NewBadInputError("transport: at least one candidate is required", nil)
	}
	if cfg.MaxFailoverAttempts < 0 {
		return nil, core.NewBadInputError("transport: max_failover_attempts must be >= 0", nil)
	}

	builder := resolverBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	adapter := builder.adapter
	if adapter == nil {
		adapter = NewRESTAdapter(builder.httpClient)
	}
	if cfg.ResponseBodyLimit > 0 {
		adapter.MaxResponseBodyBytes = cfg.ResponseBodyLimit
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}

	logger := core.ResolveLogger("supasoka.transport", builder.loggerProvider, builder.logger)
	return &Resolver{
		adapter:      adapter,
		candidates:   candidates,
		maxFailover:  cfg.MaxFailoverAttempts,
		timeout:      timeout,
		userAgent:    strings.TrimSpace(cfg.UserAgent),
		store:        builder.store,
		observer:     core.NewObserver("supasoka", logger, builder.metricsRecorder),
		unauthorized: builder.unauthorized,
	}, nil
}

// SetUnauthorizedHandler installs the 401 policy after construction, which
// lets the session guard and the resolver reference each other.
func (r *Resolver) SetUnauthorizedHandler(handler core.UnauthorizedHandler) {
	if r == nil {
		return
	}
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.unauthorized = handler
}

func (r *Resolver) unauthorizedHandler() core.UnauthorizedHandler {
	r.handlerMu.RLock()
	defer r.handlerMu.RUnlock()
	return r.unauthorized
}

func (r *Resolver) Candidates() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.candidates...)
}

func (r *Resolver) ActiveIndex() int {
	if r == nil {
		return 0
	}
	return int(r.active.Load())
}

func (r *Resolver) Active() string {
	if r == nil || len(r.candidates) == 0 {
		return ""
	}
	return r.candidates[r.ActiveIndex()]
}

func (r *Resolver) SetBearer(token string) {
	if r == nil {
		return
	}
	token = strings.TrimSpace(token)
	if token == "" {
		r.ClearBearer()
		return
	}
	r.adapter.SetDefaultHeader(HeaderAuthorization, "Bearer "+token)
}

func (r *Resolver) ClearBearer() {
	if r == nil {
		return
	}
	r.adapter.RemoveDefaultHeader(HeaderAuthorization)
}

func (r *Resolver) Bearer() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(r.adapter.DefaultHeader(HeaderAuthorization), "Bearer "))
}

// Request issues req against the active candidate. Statused responses are
// returned as-is whatever their code. Only response-less failures move the
// active candidate forward, each candidate being tried at most once per
// call; on exhaustion the first failure is returned.
func (r *Resolver) Request(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if r == nil {
		return core.TransportResponse{}, core.NewInternalError("transport: resolver is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()

	headers := make(map[string]string, len(req.Headers)+2)
	for key, value := range req.Headers {
		headers[http.CanonicalHeaderKey(key)] = value
	}
	requestIDKey := http.CanonicalHeaderKey(HeaderRequestID)
	requestID := strings.TrimSpace(headers[requestIDKey])
	if requestID == "" {
		requestID = uuid.NewString()
		headers[requestIDKey] = requestID
	}
	if r.userAgent != "" && headers[HeaderUserAgent] == "" {
		headers[HeaderUserAgent] = r.userAgent
	}
	if headers[HeaderAuthorization] == "" {
		r.ensureBearer(ctx)
	}
	if req.Timeout <= 0 {
		req.Timeout = r.timeout
	}
	req.Headers = headers

	budget := len(r.candidates) - 1
	if r.maxFailover > 0 && r.maxFailover < budget {
		budget = r.maxFailover
	}

	index := r.ActiveIndex()
	var firstErr error
	for rotations := 0; ; {
		call := req
		candidate := r.candidates[index]
		if strings.TrimSpace(call.URL) == "" {
			call.URL = JoinURL(candidate, call.Path)
		}
		fields := map[string]any{
			"candidate":  candidate,
			"method":     strings.ToUpper(call.Method),
			"path":       call.Path,
			"request_id": requestID,
			"attempt":    rotations + 1,
		}

		res, err := r.adapter.Do(ctx, call)
		if err == nil {
			fields["status_code"] = res.StatusCode
			if res.StatusCode == http.StatusUnauthorized {
				r.handleUnauthorized(ctx, call)
			}
			r.observer.Observe(ctx, startedAt, "transport.request", nil, fields)
			return res, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if !core.IsUnreachable(err) || ctx.Err() != nil {
			r.observer.Observe(ctx, startedAt, "transport.request", err, fields)
			return core.TransportResponse{}, err
		}
		if rotations >= budget || index+1 >= len(r.candidates) {
			fields["exhausted"] = true
			r.observer.Observe(ctx, startedAt, "transport.request", firstErr, fields)
			return core.TransportResponse{}, firstErr
		}

		next := r.advance(index)
		r.observer.Log(ctx, "warn", "transport candidate unreachable, failing over", map[string]any{
			"from":       candidate,
			"to":         r.candidates[next],
			"request_id": requestID,
		})
		r.observer.Count(ctx, "transport.failover", map[string]string{"from": candidate, "to": r.candidates[next]})
		index = next
		rotations++
	}
}

// advance moves the active index from observed to observed+1. When a
// concurrent caller already moved it further, that position is adopted so
// concurrent failures never skip a candidate nor move backwards.
func (r *Resolver) advance(observed int) int {
	next := int64(observed + 1)
	if r.active.CompareAndSwap(int64(observed), next) {
		return int(next)
	}
	if current := r.active.Load(); current > int64(observed) {
		return int(current)
	}
	return int(next)
}

func (r *Resolver) ensureBearer(ctx context.Context) {
	if r.Bearer() != "" || r.store == nil {
		return
	}
	token, err := r.store.Load(ctx)
	if err != nil {
		r.observer.Log(ctx, "warn", "transport could not load persisted credential", map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(token) != "" {
		r.SetBearer(token)
	}
}

func (r *Resolver) handleUnauthorized(ctx context.Context, req core.TransportRequest) {
	handler := r.unauthorizedHandler()
	if handler == nil {
		return
	}
	if err := handler.HandleUnauthorized(ctx, req); err != nil {
		r.observer.Log(ctx, "warn", "transport unauthorized handler failed", map[string]any{
			"path":  req.Path,
			"error": err.Error(),
		})
	}
}

// Do sends body as JSON and decodes a 2xx payload into out. Non-2xx
// responses map to the client error taxonomy.
func (r *Resolver) Do(ctx context.Context, method string, path string, body any, out any) error {
	_, err := r.DoRaw(ctx, method, path, body, out)
	return err
}

// DoRaw behaves like Do and also returns the raw response.
func (r *Resolver) DoRaw(ctx context.Context, method string, path string, body any, out any) (core.TransportResponse, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return core.TransportResponse{}, err
	}
	res, err := r.Request(ctx, core.TransportRequest{
		Method: method,
		Path:   path,
		Body:   payload,
	})
	if err != nil {
		return res, err
	}
	if statusErr := core.StatusError(res.StatusCode, res.Body, map[string]any{
		"path":        path,
		"method":      strings.ToUpper(method),
		"status_code": res.StatusCode,
	}); statusErr != nil {
		return res, statusErr
	}
	if out == nil || len(strings.TrimSpace(string(res.Body))) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return res, core.NewMalformedError(fmt.Sprintf("transport: decode %s response", path), err)
	}
	return res, nil
}

func encodeBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return typed, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.NewBadInputError("transport: encode request body", map[string]any{"error": err.Error()})
	}
	return payload, nil
}

// JoinURL appends path to a candidate base URL.
func JoinURL(base string, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

var (
	_ core.Requester    = (*Resolver)(nil)
	_ core.BearerHolder = (*Resolver)(nil)
)
