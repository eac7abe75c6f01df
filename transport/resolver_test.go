package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

type scriptedDoer struct {
	mu       sync.Mutex
	calls    []string
	requests []*http.Request
	byHost   map[string]func(*http.Request) (*http.Response, error)
}

func newScriptedDoer() *scriptedDoer {
	return &scriptedDoer{byHost: map[string]func(*http.Request) (*http.Response, error){}}
}

func (d *scriptedDoer) on(host string, fn func(*http.Request) (*http.Response, error)) {
	d.byHost[host] = fn
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req.URL.Host)
	d.requests = append(d.requests, req)
	fn := d.byHost[req.URL.Host]
	d.mu.Unlock()
	if fn == nil {
		return nil, refused(req)
	}
	return fn(req)
}

func (d *scriptedDoer) hosts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *scriptedDoer) lastRequest() *http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		return nil
	}
	return d.requests[len(d.requests)-1]
}

func refused(req *http.Request) error {
	return &url.Error{
		Op:  req.Method,
		URL: req.URL.String(),
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
}

func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func newTestResolver(t *testing.T, doer core.HTTPDoer, maxFailover int, candidates ...string) *Resolver {
	t.Helper()
	resolver, err := NewResolver(core.TransportConfig{
		Candidates:          candidates,
		MaxFailoverAttempts: maxFailover,
	}, WithHTTPClient(doer))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func TestResolver_FailsOverToNextCandidateAndStays(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("b.example", respond(http.StatusOK, `{"ok":true}`))
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example")

	res, err := resolver.Request(context.Background(), core.TransportRequest{Method: http.MethodGet, Path: "/channels"})
	if err != nil {
		t.Fatalf("expected failover success, got %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if resolver.Active() != "https://b.example" {
		t.Fatalf("expected active candidate b, got %q", resolver.Active())
	}

	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/channels"}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if got := strings.Join(doer.hosts(), ","); got != "a.example,b.example,b.example" {
		t.Fatalf("expected abandoned candidate to never be retried, got %s", got)
	}
}

func TestResolver_WalksForwardThroughSeveralCandidates(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("c.example", respond(http.StatusOK, `{}`))
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example", "https://c.example")

	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/users"}); err != nil {
		t.Fatalf("expected success on c, got %v", err)
	}
	if resolver.ActiveIndex() != 2 {
		t.Fatalf("expected active index 2, got %d", resolver.ActiveIndex())
	}
}

func TestResolver_ExhaustionSurfacesFirstErrorWithoutWrapping(t *testing.T) {
	doer := newScriptedDoer()
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example")

	_, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/users"})
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if core.Classify(err) != core.KindUnreachable {
		t.Fatalf("expected unreachable kind, got %q", core.Classify(err))
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || !strings.Contains(rich.Metadata["url"].(string), "a.example") {
		t.Fatalf("expected original error from first candidate, got %#v", rich)
	}

	_, _ = resolver.Request(context.Background(), core.TransportRequest{Path: "/users"})
	if got := strings.Join(doer.hosts(), ","); got != "a.example,b.example,b.example" {
		t.Fatalf("expected list to never wrap back to a, got %s", got)
	}
	if resolver.ActiveIndex() != 1 {
		t.Fatalf("expected active index to stay at last candidate, got %d", resolver.ActiveIndex())
	}
}

func TestResolver_MaxFailoverAttemptsBoundsRotation(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("c.example", respond(http.StatusOK, `{}`))
	resolver := newTestResolver(t, doer, 1, "https://a.example", "https://b.example", "https://c.example")

	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/users"}); err == nil {
		t.Fatalf("expected single retry to stop before c")
	}
	if got := strings.Join(doer.hosts(), ","); got != "a.example,b.example" {
		t.Fatalf("expected exactly one retry, got %s", got)
	}
	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/users"}); err != nil {
		t.Fatalf("expected next call to reach c, got %v", err)
	}
}

func TestResolver_StatusedResponsesNeverFailOver(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusNotFound, http.StatusUnauthorized} {
		doer := newScriptedDoer()
		doer.on("a.example", respond(status, `{"error":"nope"}`))
		doer.on("b.example", respond(http.StatusOK, `{}`))
		resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example")

		res, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/x"})
		if err != nil {
			t.Fatalf("status %d: expected response as-is, got %v", status, err)
		}
		if res.StatusCode != status {
			t.Fatalf("expected status %d, got %d", status, res.StatusCode)
		}
		if resolver.ActiveIndex() != 0 || len(doer.hosts()) != 1 {
			t.Fatalf("status %d: expected no failover, hosts=%v", status, doer.hosts())
		}
	}
}

func TestResolver_UnauthorizedDelegatesToHandler(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("a.example", respond(http.StatusUnauthorized, `{"error":"expired"}`))
	resolver := newTestResolver(t, doer, 0, "https://a.example")

	var calls atomic.Int32
	resolver.SetUnauthorizedHandler(core.UnauthorizedHandlerFunc(func(_ context.Context, req core.TransportRequest) error {
		calls.Add(1)
		if req.Path != "/auth/profile" {
			t.Fatalf("expected handler to receive the request, got %q", req.Path)
		}
		return nil
	}))

	err := resolver.Do(context.Background(), http.MethodGet, "/auth/profile", nil, nil)
	if core.Classify(err) != core.KindUnauthorized {
		t.Fatalf("expected unauthorized kind, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, got %d", calls.Load())
	}
}

func TestResolver_BearerFallsBackToPersistedStore(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("a.example", respond(http.StatusOK, `{}`))
	store := core.NewMemoryCredentialStore("persisted-token")
	resolver, err := NewResolver(core.TransportConfig{Candidates: []string{"https://a.example/api/"}},
		WithHTTPClient(doer),
		WithCredentialStore(store),
	)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "users"}); err != nil {
		t.Fatalf("request: %v", err)
	}
	req := doer.lastRequest()
	if got := req.Header.Values("Authorization"); len(got) != 1 || got[0] != "Bearer persisted-token" {
		t.Fatalf("expected a single persisted bearer, got %q", got)
	}
	if req.URL.String() != "https://a.example/api/users" {
		t.Fatalf("expected joined url, got %q", req.URL.String())
	}
	if req.Header.Get(HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}
	if resolver.Bearer() != "persisted-token" {
		t.Fatalf("expected persisted bearer to be reinstalled as default")
	}

	resolver.ClearBearer()
	_ = store.Erase(context.Background())
	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "users"}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := doer.lastRequest().Header.Get("Authorization"); got != "" {
		t.Fatalf("expected no bearer after clearing, got %q", got)
	}
}

func TestResolver_SendsSingleAuthorizationHeader(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("b.example", respond(http.StatusOK, `{}`))
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example")
	resolver.SetBearer("tok_1")
	resolver.SetBearer("tok_2")

	requests := []core.TransportRequest{
		{Path: "users"},
		{Path: "users", Headers: map[string]string{"authorization": "Bearer override"}},
	}
	want := []string{"Bearer tok_2", "Bearer override"}
	for i, request := range requests {
		if _, err := resolver.Request(context.Background(), request); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		got := doer.lastRequest().Header.Values("Authorization")
		if len(got) != 1 || got[0] != want[i] {
			t.Fatalf("expected exactly one authorization header %q, got %q", want[i], got)
		}
	}
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("connection reset mid-body") }

func (brokenBody) Close() error { return nil }

func TestResolver_BodyReadFailureIsMalformedAndStays(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("a.example", func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: brokenBody{}}, nil
	})
	doer.on("b.example", respond(http.StatusOK, `{}`))
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example")

	_, err := resolver.Request(context.Background(), core.TransportRequest{Path: "users"})
	if core.Classify(err) != core.KindMalformed {
		t.Fatalf("expected malformed kind, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ClientErrorMalformed {
		t.Fatalf("expected %s text code, got %v", core.ClientErrorMalformed, err)
	}
	if hosts := doer.hosts(); len(hosts) != 1 || resolver.ActiveIndex() != 0 {
		t.Fatalf("expected no failover after a response arrived, got %v index %d", hosts, resolver.ActiveIndex())
	}
}

func TestResolver_ConcurrentFailuresDoNotSkipCandidates(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("b.example", respond(http.StatusOK, `{}`))
	doer.on("c.example", respond(http.StatusOK, `{}`))
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example", "https://c.example")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/x"}); err != nil {
				t.Errorf("request: %v", err)
			}
		}()
	}
	wg.Wait()

	if resolver.Active() != "https://b.example" {
		t.Fatalf("expected concurrent failures to stop at b, got %q", resolver.Active())
	}
}

func TestResolver_CanceledContextDoesNotFailOver(t *testing.T) {
	doer := newScriptedDoer()
	doer.on("a.example", func(req *http.Request) (*http.Response, error) {
		return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: context.Canceled}
	})
	resolver := newTestResolver(t, doer, 0, "https://a.example", "https://b.example")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.Request(ctx, core.TransportRequest{Path: "/x"})
	if core.Classify(err) != core.KindCanceled {
		t.Fatalf("expected canceled kind, got %v", err)
	}
	if resolver.ActiveIndex() != 0 {
		t.Fatalf("expected cancellation to keep the active candidate")
	}
}

func TestResolver_DoDecodesAndMapsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			_, _ = w.Write([]byte(`{"channels":[{"id":"c1"}]}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"channel not found"}`))
		default:
			_, _ = w.Write([]byte(`not-json`))
		}
	}))
	defer server.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	resolver, err := NewResolver(core.TransportConfig{Candidates: []string{deadURL, server.URL}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	var out struct {
		Channels []struct {
			ID string `json:"id"`
		} `json:"channels"`
	}
	if err := resolver.Do(context.Background(), http.MethodGet, "/channels", nil, &out); err != nil {
		t.Fatalf("expected failover to live server, got %v", err)
	}
	if len(out.Channels) != 1 || out.Channels[0].ID != "c1" {
		t.Fatalf("unexpected decode %#v", out)
	}

	err = resolver.Do(context.Background(), http.MethodGet, "/missing", nil, &out)
	if core.Classify(err) != core.KindClientRejected || core.UserMessage(err) != "channel not found" {
		t.Fatalf("expected client rejected with server message, got %v", err)
	}

	err = resolver.Do(context.Background(), http.MethodGet, "/garbage", nil, &out)
	if core.Classify(err) != core.KindMalformed {
		t.Fatalf("expected malformed kind, got %v", err)
	}
}

func TestNewResolver_RequiresCandidates(t *testing.T) {
	if _, err := NewResolver(core.TransportConfig{Candidates: []string{" "}}); err == nil {
		t.Fatalf("expected missing candidates to fail")
	}
}
