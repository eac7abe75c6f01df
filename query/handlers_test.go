package query

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

type stubSessionReader struct {
	snapshot  core.SessionSnapshot
	profile   core.Principal
	profileFn func(ctx context.Context) (core.Principal, error)
}

func (s stubSessionReader) Snapshot() core.SessionSnapshot {
	return s.snapshot
}

func (s stubSessionReader) Profile(ctx context.Context) (core.Principal, error) {
	if s.profileFn != nil {
		return s.profileFn(ctx)
	}
	return s.profile, nil
}

type stubCatalogReader struct {
	users         []catalog.User
	channels      []catalog.Channel
	promotions    []catalog.Promotion
	notifications []catalog.Notification
	err           error
}

func (s stubCatalogReader) ListUsers(context.Context) ([]catalog.User, error) {
	return s.users, s.err
}

func (s stubCatalogReader) ListChannels(context.Context) ([]catalog.Channel, error) {
	return s.channels, s.err
}

func (s stubCatalogReader) ListPromotions(context.Context) ([]catalog.Promotion, error) {
	return s.promotions, s.err
}

func (s stubCatalogReader) ListNotifications(context.Context) ([]catalog.Notification, error) {
	return s.notifications, s.err
}

func TestSessionQueries_ReturnReaderState(t *testing.T) {
	reader := stubSessionReader{
		snapshot: core.SessionSnapshot{Authenticated: true, LoginGuardActive: true},
		profile:  core.Principal{ID: "adm_1", Email: "admin@supasoka.test"},
	}
	snapshot, err := NewSessionSnapshotQuery(reader).Query(context.Background(), SessionSnapshotMessage{})
	if err != nil {
		t.Fatalf("snapshot query: %v", err)
	}
	if !snapshot.Authenticated || !snapshot.LoginGuardActive {
		t.Fatalf("unexpected snapshot %#v", snapshot)
	}
	profile, err := NewProfileQuery(reader).Query(context.Background(), ProfileMessage{})
	if err != nil || profile.ID != "adm_1" {
		t.Fatalf("expected profile adm_1, got %#v %v", profile, err)
	}
}

func TestProfileQuery_PropagatesReaderError(t *testing.T) {
	boom := errors.New("offline")
	reader := stubSessionReader{profileFn: func(context.Context) (core.Principal, error) {
		return core.Principal{}, boom
	}}
	if _, err := NewProfileQuery(reader).Query(context.Background(), ProfileMessage{}); !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestCatalogQueries_DelegateToReader(t *testing.T) {
	reader := stubCatalogReader{
		users:         []catalog.User{{ID: "usr_1"}, {ID: "usr_2"}},
		channels:      []catalog.Channel{{ID: "ch_1", Name: "Sports"}},
		promotions:    []catalog.Promotion{{ID: "promo_1"}},
		notifications: []catalog.Notification{{ID: "n_1"}, {ID: "n_2"}, {ID: "n_3"}},
	}
	ctx := context.Background()

	users, err := NewListUsersQuery(reader).Query(ctx, ListUsersMessage{})
	if err != nil || len(users) != 2 {
		t.Fatalf("expected 2 users, got %d %v", len(users), err)
	}
	channels, err := NewListChannelsQuery(reader).Query(ctx, ListChannelsMessage{})
	if err != nil || len(channels) != 1 || channels[0].Name != "Sports" {
		t.Fatalf("unexpected channels %#v %v", channels, err)
	}
	promotions, err := NewListPromotionsQuery(reader).Query(ctx, ListPromotionsMessage{})
	if err != nil || len(promotions) != 1 {
		t.Fatalf("unexpected promotions %#v %v", promotions, err)
	}
	notifications, err := NewListNotificationsQuery(reader).Query(ctx, ListNotificationsMessage{})
	if err != nil || len(notifications) != 3 {
		t.Fatalf("unexpected notifications %#v %v", notifications, err)
	}
}

func TestCountdownQueries_ReadReconcilerState(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	reconciler := reconcile.NewReconciler(core.ReconcileConfig{},
		reconcile.WithClock(core.ClockFunc(func() time.Time { return now })),
	)
	expires := now.Add(2 * time.Hour)
	reconciler.Seed(
		reconcile.Observation{UserID: "usr_1", ExpiresAt: expires},
		reconcile.Observation{UserID: "usr_2", Blocked: true},
	)

	view, err := NewCountdownQuery(reconciler).Query(context.Background(), CountdownMessage{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("countdown query: %v", err)
	}
	if view.Status != reconcile.StatusActive || view.Remaining != 2*time.Hour {
		t.Fatalf("unexpected view %#v", view)
	}

	views, err := NewListCountdownsQuery(reconciler).Query(context.Background(), ListCountdownsMessage{})
	if err != nil || len(views) != 2 {
		t.Fatalf("expected 2 views, got %d %v", len(views), err)
	}

	_, err = NewCountdownQuery(reconciler).Query(context.Background(), CountdownMessage{UserID: "usr_missing"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := NewCountdownQuery(reconciler).Query(context.Background(), CountdownMessage{}); err == nil {
		t.Fatalf("expected validation error for blank user id")
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	_, err := NewListUsersQuery(nil).Query(context.Background(), ListUsersMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	var q *SessionSnapshotQuery
	if _, err := q.Query(context.Background(), SessionSnapshotMessage{}); err == nil {
		t.Fatalf("expected nil query error")
	}
}
