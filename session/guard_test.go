package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/transport"
)

type stubTransport struct {
	mu       sync.Mutex
	bearer   string
	requests []core.TransportRequest
	respond  func(req core.TransportRequest) (core.TransportResponse, error)
}

func (s *stubTransport) Request(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	respond := s.respond
	s.mu.Unlock()
	if respond == nil {
		return core.TransportResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil
	}
	return respond(req)
}

func (s *stubTransport) SetBearer(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bearer = token
}

func (s *stubTransport) ClearBearer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bearer = ""
}

func (s *stubTransport) Bearer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bearer
}

func (s *stubTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func status(code int, body string) func(core.TransportRequest) (core.TransportResponse, error) {
	return func(core.TransportRequest) (core.TransportResponse, error) {
		return core.TransportResponse{StatusCode: code, Body: []byte(body)}, nil
	}
}

func unreachable(core.TransportRequest) (core.TransportResponse, error) {
	return core.TransportResponse{}, core.NewUnreachableError(&net.OpError{Op: "dial", Err: errors.New("refused")}, nil)
}

func newTestGuard(t *testing.T, tr Transport, store core.CredentialStore, window time.Duration) *Guard {
	t.Helper()
	guard, err := NewGuard(tr, store, core.SessionConfig{LoginGuardWindow: window})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return guard
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestInitialize_NoPersistedCredential(t *testing.T) {
	tr := &stubTransport{}
	guard := newTestGuard(t, tr, core.NewMemoryCredentialStore(""), 0)

	snapshot, err := guard.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if snapshot.Authenticated {
		t.Fatalf("expected unauthenticated snapshot")
	}
	if tr.count() != 0 {
		t.Fatalf("expected no profile fetch without a credential")
	}
}

func TestInitialize_ValidCredentialLoadsPrincipal(t *testing.T) {
	tr := &stubTransport{respond: status(http.StatusOK, `{"user":{"id":"adm_1","name":"Admin","role":"admin"}}`)}
	guard := newTestGuard(t, tr, core.NewMemoryCredentialStore("tok_1"), 0)

	snapshot, err := guard.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !snapshot.Authenticated || snapshot.Principal.ID != "adm_1" {
		t.Fatalf("expected authenticated admin, got %#v", snapshot)
	}
	if tr.Bearer() != "tok_1" {
		t.Fatalf("expected bearer installed, got %q", tr.Bearer())
	}
}

func TestInitialize_UnauthorizedErasesCredential(t *testing.T) {
	store := core.NewMemoryCredentialStore("stale")
	tr := &stubTransport{respond: status(http.StatusUnauthorized, `{"error":"expired"}`)}
	guard := newTestGuard(t, tr, store, 0)

	var cleared int
	guard.Hooks().Register(core.SessionHookFunc{HookName: "recorder", Fn: func(_ context.Context, event core.SessionEvent) error {
		if event.Name == core.SessionEventCleared {
			cleared++
		}
		return nil
	}})

	snapshot, err := guard.Initialize(context.Background())
	if err != nil {
		t.Fatalf("expected confirmed-invalid credential to be handled, got %v", err)
	}
	if snapshot.Authenticated {
		t.Fatalf("expected session cleared")
	}
	if token, _ := store.Load(context.Background()); token != "" {
		t.Fatalf("expected persisted credential erased, got %q", token)
	}
	if tr.Bearer() != "" {
		t.Fatalf("expected bearer cleared")
	}
	if cleared != 1 {
		t.Fatalf("expected one cleared event, got %d", cleared)
	}
}

func TestInitialize_TransientFailuresKeepCredential(t *testing.T) {
	cases := []struct {
		name    string
		respond func(core.TransportRequest) (core.TransportResponse, error)
		kind    core.ErrorKind
	}{
		{"unreachable", unreachable, core.KindUnreachable},
		{"server error", status(http.StatusBadGateway, `{}`), core.KindServiceUnavailable},
	}
	for _, tc := range cases {
		store := core.NewMemoryCredentialStore("tok_keep")
		tr := &stubTransport{respond: tc.respond}
		guard := newTestGuard(t, tr, store, 0)

		snapshot, err := guard.Initialize(context.Background())
		if core.Classify(err) != tc.kind {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.kind, err)
		}
		if !snapshot.Authenticated {
			t.Fatalf("%s: expected credential kept", tc.name)
		}
		if token, _ := store.Load(context.Background()); token != "tok_keep" {
			t.Fatalf("%s: expected persisted credential kept, got %q", tc.name, token)
		}
	}
}

func TestLogin_SuccessInstallsPersistsAndHoldsGuard(t *testing.T) {
	store := core.NewMemoryCredentialStore("")
	tr := &stubTransport{respond: status(http.StatusOK, `{"token":"tok_new","principal":{"id":"adm_2","email":"a@b.c"}}`)}
	guard := newTestGuard(t, tr, store, 40*time.Millisecond)

	snapshot, err := guard.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !snapshot.Authenticated || snapshot.Principal.Email != "a@b.c" {
		t.Fatalf("unexpected snapshot %#v", snapshot)
	}
	if !snapshot.LoginGuardActive {
		t.Fatalf("expected guard to remain active during grace window")
	}
	if tr.Bearer() != "tok_new" {
		t.Fatalf("expected bearer installed")
	}
	if token, _ := store.Load(context.Background()); token != "tok_new" {
		t.Fatalf("expected credential persisted, got %q", token)
	}
	if string(tr.requests[0].Body) != `{"email":"a@b.c","password":"pw"}` {
		t.Fatalf("unexpected login body %s", tr.requests[0].Body)
	}

	if err := guard.HandleUnauthorized(context.Background(), core.TransportRequest{Path: "/stale"}); err != nil {
		t.Fatalf("handle unauthorized: %v", err)
	}
	if !guard.Snapshot().Authenticated {
		t.Fatalf("expected stale 401 inside grace window to be ignored")
	}

	waitFor(t, time.Second, func() bool { return !guard.LoginGuardActive() })
	if err := guard.HandleUnauthorized(context.Background(), core.TransportRequest{Path: "/later"}); err != nil {
		t.Fatalf("handle unauthorized: %v", err)
	}
	if guard.Snapshot().Authenticated {
		t.Fatalf("expected 401 after grace window to clear the session")
	}
}

func TestLogin_FailuresDropGuardImmediately(t *testing.T) {
	cases := []struct {
		name    string
		respond func(core.TransportRequest) (core.TransportResponse, error)
		kind    core.ErrorKind
		message string
	}{
		{"invalid", status(http.StatusUnauthorized, `{"error":"Wrong password"}`), core.KindInvalidCredentials, "Wrong password"},
		{"rejected", status(http.StatusBadRequest, `{}`), core.KindInvalidCredentials, "Invalid credentials"},
		{"unavailable", status(http.StatusServiceUnavailable, `{"message":"down"}`), core.KindServiceUnavailable, "down"},
		{"unreachable", unreachable, core.KindUnreachable, ""},
		{"malformed", status(http.StatusOK, `{"principal":{}}`), core.KindMalformed, ""},
	}
	for _, tc := range cases {
		store := core.NewMemoryCredentialStore("")
		tr := &stubTransport{respond: tc.respond}
		guard := newTestGuard(t, tr, store, time.Hour)

		snapshot, err := guard.Login(context.Background(), "a@b.c", "pw")
		if core.Classify(err) != tc.kind {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.kind, err)
		}
		if tc.message != "" && core.UserMessage(err) != tc.message {
			t.Fatalf("%s: expected message %q, got %q", tc.name, tc.message, core.UserMessage(err))
		}
		if snapshot.LoginGuardActive || guard.LoginGuardActive() {
			t.Fatalf("%s: expected guard dropped on failure", tc.name)
		}
		if snapshot.Authenticated {
			t.Fatalf("%s: expected no session", tc.name)
		}
		if token, _ := store.Load(context.Background()); token != "" {
			t.Fatalf("%s: expected nothing persisted", tc.name)
		}
	}
}

func TestLogin_RequiresIdentifierAndSecret(t *testing.T) {
	tr := &stubTransport{}
	guard := newTestGuard(t, tr, nil, 0)
	if _, err := guard.Login(context.Background(), " ", "pw"); err == nil {
		t.Fatalf("expected missing identifier to fail")
	}
	if tr.count() != 0 {
		t.Fatalf("expected no request for invalid input")
	}
}

func TestLogout_ClearsEvenWhileGuardActive(t *testing.T) {
	store := core.NewMemoryCredentialStore("")
	tr := &stubTransport{respond: func(req core.TransportRequest) (core.TransportResponse, error) {
		if req.Path == "/auth/logout" {
			return unreachable(req)
		}
		return core.TransportResponse{StatusCode: http.StatusOK, Body: []byte(`{"token":"tok_3"}`)}, nil
	}}
	guard := newTestGuard(t, tr, store, time.Hour)

	var events []core.SessionEventName
	guard.Hooks().Register(core.SessionHookFunc{HookName: "recorder", Fn: func(_ context.Context, event core.SessionEvent) error {
		events = append(events, event.Name)
		return nil
	}})

	if _, err := guard.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !guard.LoginGuardActive() {
		t.Fatalf("expected guard active")
	}
	if err := guard.Logout(context.Background()); err != nil {
		t.Fatalf("expected logout to succeed locally despite unreachable backend, got %v", err)
	}
	snapshot := guard.Snapshot()
	if snapshot.Authenticated || !snapshot.Principal.IsZero() {
		t.Fatalf("expected session cleared, got %#v", snapshot)
	}
	if tr.Bearer() != "" {
		t.Fatalf("expected bearer cleared")
	}
	if token, _ := store.Load(context.Background()); token != "" {
		t.Fatalf("expected persisted credential erased")
	}
	if len(events) != 2 || events[0] != core.SessionEventLogin || events[1] != core.SessionEventLogout {
		t.Fatalf("expected login then logout events, got %v", events)
	}
}

func TestGuardGenerations_OlderTimerCannotDropNewerGuard(t *testing.T) {
	guard := newTestGuard(t, &stubTransport{}, nil, 0)
	first := guard.raiseGuard()
	second := guard.raiseGuard()

	guard.lowerGuard(first)
	if !guard.LoginGuardActive() {
		t.Fatalf("expected newer login to keep the guard up")
	}
	guard.lowerGuard(second)
	if guard.LoginGuardActive() {
		t.Fatalf("expected guard to drop for the newest login")
	}
}

func TestLogin_StaleUnauthorizedDuringInFlightLoginIsIgnored(t *testing.T) {
	loginStarted := make(chan struct{})
	releaseLogin := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			close(loginStarted)
			<-releaseLogin
			_, _ = w.Write([]byte(`{"token":"fresh","principal":{"id":"adm_9"}}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"stale"}`))
		}
	}))
	defer server.Close()

	store := core.NewMemoryCredentialStore("")
	resolver, err := transport.NewResolver(core.TransportConfig{Candidates: []string{server.URL}},
		transport.WithCredentialStore(store),
	)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	guard, err := NewGuard(resolver, store, core.SessionConfig{LoginGuardWindow: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	resolver.SetUnauthorizedHandler(guard)

	done := make(chan error, 1)
	go func() {
		_, err := guard.Login(context.Background(), "a@b.c", "pw")
		done <- err
	}()

	<-loginStarted
	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/users"}); err != nil {
		t.Fatalf("stale request: %v", err)
	}
	close(releaseLogin)
	if err := <-done; err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := resolver.Request(context.Background(), core.TransportRequest{Path: "/users"}); err != nil {
		t.Fatalf("second stale request: %v", err)
	}
	if !guard.Snapshot().Authenticated || resolver.Bearer() != "fresh" {
		t.Fatalf("expected freshly installed credential to survive stale 401s")
	}
	if token, _ := store.Load(context.Background()); token != "fresh" {
		t.Fatalf("expected fresh credential persisted, got %q", token)
	}
}
