package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/transport"
)

type recordedCall struct {
	method string
	path   string
	body   any
}

type stubTransport struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string]string
	err       error
}

func (s *stubTransport) DoRaw(_ context.Context, method string, path string, body any, _ any) (core.TransportResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, recordedCall{method: method, path: path, body: body})
	if s.err != nil {
		return core.TransportResponse{}, s.err
	}
	return core.TransportResponse{StatusCode: http.StatusOK, Body: []byte(s.responses[method+" "+path])}, nil
}

func (s *stubTransport) count(method string, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, call := range s.calls {
		if call.method == method && call.path == path {
			total++
		}
	}
	return total
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func newTestClient(t *testing.T, stub *stubTransport) *Client {
	t.Helper()
	client, err := NewClient(stub, core.CatalogConfig{}, WithCacheService(newTestCacheService(t)))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

const usersPayload = `{"users":[
	{"_id":"usr_1","name":"Asha","email":"asha@example.com","isSubscribed":true,"subscriptionEnd":"2026-03-01T13:00:00Z"},
	{"id":42,"name":"Baraka","isBlocked":true,"remainingTime":15},
	"garbage"
]}`

func TestListUsers_DecodesTolerantlyAndCaches(t *testing.T) {
	stub := &stubTransport{responses: map[string]string{"GET /admin/users": usersPayload}}
	client := newTestClient(t, stub)

	users, err := client.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected non-object entries skipped, got %d users", len(users))
	}
	if users[0].ID != "usr_1" || users[0].SubscriptionEnd == nil || !users[0].IsSubscribed {
		t.Fatalf("unexpected first user %+v", users[0])
	}
	if users[1].ID != "42" || !users[1].IsBlocked || users[1].RemainingTime == nil || *users[1].RemainingTime != 15 {
		t.Fatalf("unexpected second user %+v", users[1])
	}

	if _, err := client.ListUsers(context.Background()); err != nil {
		t.Fatalf("cached list users: %v", err)
	}
	if got := stub.count(http.MethodGet, "/admin/users"); got != 1 {
		t.Fatalf("expected second read served from cache, got %d fetches", got)
	}
}

func TestMutations_InvalidateCollection(t *testing.T) {
	stub := &stubTransport{responses: map[string]string{
		"GET /admin/channels":  `[{"id":"ch_1","name":"News","isActive":true}]`,
		"POST /admin/channels": `{"channel":{"id":"ch_2","name":"Sports"}}`,
	}}
	client := newTestClient(t, stub)

	if _, err := client.ListChannels(context.Background()); err != nil {
		t.Fatalf("list channels: %v", err)
	}
	created, err := client.CreateChannel(context.Background(), ChannelInput{Name: "Sports"})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if created.ID != "ch_2" {
		t.Fatalf("expected nested channel decoded, got %+v", created)
	}
	if _, err := client.ListChannels(context.Background()); err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if got := stub.count(http.MethodGet, "/admin/channels"); got != 2 {
		t.Fatalf("expected mutation to invalidate the cached list, got %d fetches", got)
	}
}

func TestList_MalformedPayloadDegradesToEmpty(t *testing.T) {
	stub := &stubTransport{responses: map[string]string{"GET /admin/promotions": `{"unexpected":true}`}}
	client := newTestClient(t, stub)

	promotions, err := client.ListPromotions(context.Background())
	if err != nil {
		t.Fatalf("expected malformed payload absorbed, got %v", err)
	}
	if len(promotions) != 0 {
		t.Fatalf("expected empty list, got %+v", promotions)
	}
}

func TestList_TransportErrorsPropagate(t *testing.T) {
	stub := &stubTransport{err: core.NewUnreachableError(nil, nil)}
	client := newTestClient(t, stub)

	if _, err := client.ListNotifications(context.Background()); !core.IsUnreachable(err) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestUserActions_Paths(t *testing.T) {
	stub := &stubTransport{responses: map[string]string{
		"POST /admin/users/usr_1/activate": `{"user":{"id":"usr_1","remainingTime":90}}`,
	}}
	client := newTestClient(t, stub)
	ctx := context.Background()

	user, err := client.ActivateUser(ctx, "usr_1", 90*time.Minute-time.Second)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if user.RemainingTime == nil || *user.RemainingTime != 90 {
		t.Fatalf("unexpected activated user %+v", user)
	}
	body, _ := stub.calls[0].body.(map[string]any)
	if body["duration"] != int64(90) {
		t.Fatalf("expected duration rounded up to minutes, got %v", body["duration"])
	}
	if err := client.BlockUser(ctx, "usr_1"); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := client.UnblockUser(ctx, "usr_1"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if err := client.DeleteUser(ctx, "usr_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.MarkNotificationRead(ctx, "ntf_1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	expected := []string{
		"POST /admin/users/usr_1/activate",
		"POST /admin/users/usr_1/block",
		"POST /admin/users/usr_1/unblock",
		"DELETE /admin/users/usr_1",
		"PATCH /admin/notifications/ntf_1/read",
	}
	for i, want := range expected {
		got := stub.calls[i].method + " " + stub.calls[i].path
		if got != want {
			t.Fatalf("expected call %d to be %q, got %q", i, want, got)
		}
	}
}

func TestInputValidation(t *testing.T) {
	client := newTestClient(t, &stubTransport{})
	ctx := context.Background()
	checks := map[string]error{
		"empty user id":         client.BlockUser(ctx, " "),
		"empty channel name":    func() error { _, err := client.CreateChannel(ctx, ChannelInput{}); return err }(),
		"zero activation":       func() error { _, err := client.ActivateUser(ctx, "usr_1", 0); return err }(),
		"empty notification":    func() error { _, err := client.SendNotification(ctx, NotificationInput{Title: "x"}); return err }(),
		"inverted promotion":    func() error { return invertedPromotion(ctx, client) }(),
		"empty notification id": client.MarkNotificationRead(ctx, ""),
	}
	for name, err := range checks {
		if core.StatusCode(err) != http.StatusBadRequest {
			t.Fatalf("%s: expected bad input rejection, got %v", name, err)
		}
	}
}

func invertedPromotion(ctx context.Context, client *Client) error {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := client.CreatePromotion(ctx, PromotionInput{Title: "Promo", StartsAt: &start, EndsAt: &end})
	return err
}

func TestSeedReconciler_SeedsAndRetainsListedUsers(t *testing.T) {
	stub := &stubTransport{responses: map[string]string{"GET /admin/users": usersPayload}}
	client := newTestClient(t, stub)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reconciler := reconcile.NewReconciler(core.ReconcileConfig{}, reconcile.WithClock(core.ClockFunc(func() time.Time { return now })))
	reconciler.Seed(reconcile.Observation{UserID: "gone", HasRemaining: true, RemainingUnits: 1})

	if _, err := client.SeedReconciler(context.Background(), reconciler); err != nil {
		t.Fatalf("seed: %v", err)
	}
	views := reconciler.Snapshots()
	if len(views) != 2 {
		t.Fatalf("expected two seeded rows, got %+v", views)
	}
	if views[0].UserID != "42" || views[0].Status != reconcile.StatusBlocked || views[0].Remaining != 15*time.Minute {
		t.Fatalf("unexpected blocked row %+v", views[0])
	}
	if views[1].UserID != "usr_1" || views[1].Remaining != time.Hour || views[1].Status != reconcile.StatusActive {
		t.Fatalf("unexpected active row %+v", views[1])
	}
}

func TestSeedReconciler_LapsedSubscriptionExpiresRow(t *testing.T) {
	stub := &stubTransport{responses: map[string]string{
		"GET /admin/users": `{"users":[{"id":"usr_1","isSubscribed":false,"subscriptionEnd":null}]}`,
	}}
	client := newTestClient(t, stub)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reconciler := reconcile.NewReconciler(core.ReconcileConfig{}, reconcile.WithClock(core.ClockFunc(func() time.Time { return now })))
	reconciler.Seed(reconcile.Observation{UserID: "usr_1", ExpiresAt: now.Add(time.Hour)})

	if _, err := client.SeedReconciler(context.Background(), reconciler); err != nil {
		t.Fatalf("seed: %v", err)
	}
	view, ok := reconciler.Snapshot("usr_1")
	if !ok || view.Status != reconcile.StatusExpired || view.Remaining != 0 {
		t.Fatalf("expected lapsed subscription to expire the row, got %+v", view)
	}
}

func TestProfile_OverResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/profile" || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"admin":{"id":"adm_1","email":"ops@example.com","role":"admin"}}`))
	}))
	defer server.Close()

	resolver, err := transport.NewResolver(core.TransportConfig{Candidates: []string{server.URL}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	resolver.SetBearer("tok_1")
	client, err := NewClient(resolver, core.CatalogConfig{CacheTTL: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	principal, err := client.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if principal.ID != "adm_1" || principal.Role != "admin" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}
