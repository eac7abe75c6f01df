package query

import (
	"context"
	"strings"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

type SessionReader interface {
	Snapshot() core.SessionSnapshot
	Profile(ctx context.Context) (core.Principal, error)
}

type CatalogReader interface {
	ListUsers(ctx context.Context) ([]catalog.User, error)
	ListChannels(ctx context.Context) ([]catalog.Channel, error)
	ListPromotions(ctx context.Context) ([]catalog.Promotion, error)
	ListNotifications(ctx context.Context) ([]catalog.Notification, error)
}

type CountdownReader interface {
	Snapshot(userID string) (reconcile.View, bool)
	Snapshots() []reconcile.View
}

type SessionSnapshotQuery struct {
	reader SessionReader
}

func NewSessionSnapshotQuery(reader SessionReader) *SessionSnapshotQuery {
	return &SessionSnapshotQuery{reader: reader}
}

func (q *SessionSnapshotQuery) Query(_ context.Context, _ SessionSnapshotMessage) (core.SessionSnapshot, error) {
	if q == nil || q.reader == nil {
		return core.SessionSnapshot{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.Snapshot(), nil
}

type ProfileQuery struct {
	reader SessionReader
}

func NewProfileQuery(reader SessionReader) *ProfileQuery {
	return &ProfileQuery{reader: reader}
}

func (q *ProfileQuery) Query(ctx context.Context, _ ProfileMessage) (core.Principal, error) {
	if q == nil || q.reader == nil {
		return core.Principal{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.Profile(ctx)
}

type ListUsersQuery struct {
	reader CatalogReader
}

func NewListUsersQuery(reader CatalogReader) *ListUsersQuery {
	return &ListUsersQuery{reader: reader}
}

func (q *ListUsersQuery) Query(ctx context.Context, _ ListUsersMessage) ([]catalog.User, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.ListUsers(ctx)
}

type ListChannelsQuery struct {
	reader CatalogReader
}

func NewListChannelsQuery(reader CatalogReader) *ListChannelsQuery {
	return &ListChannelsQuery{reader: reader}
}

func (q *ListChannelsQuery) Query(ctx context.Context, _ ListChannelsMessage) ([]catalog.Channel, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.ListChannels(ctx)
}

type ListPromotionsQuery struct {
	reader CatalogReader
}

func NewListPromotionsQuery(reader CatalogReader) *ListPromotionsQuery {
	return &ListPromotionsQuery{reader: reader}
}

func (q *ListPromotionsQuery) Query(ctx context.Context, _ ListPromotionsMessage) ([]catalog.Promotion, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.ListPromotions(ctx)
}

type ListNotificationsQuery struct {
	reader CatalogReader
}

func NewListNotificationsQuery(reader CatalogReader) *ListNotificationsQuery {
	return &ListNotificationsQuery{reader: reader}
}

func (q *ListNotificationsQuery) Query(ctx context.Context, _ ListNotificationsMessage) ([]catalog.Notification, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.ListNotifications(ctx)
}

// CountdownQuery returns the locally reconciled subscription view of one
// user without touching the network.
type CountdownQuery struct {
	reader CountdownReader
}

func NewCountdownQuery(reader CountdownReader) *CountdownQuery {
	return &CountdownQuery{reader: reader}
}

func (q *CountdownQuery) Query(_ context.Context, msg CountdownMessage) (reconcile.View, error) {
	if q == nil || q.reader == nil {
		return reconcile.View{}, queryDependencyError("query: countdown reader is required")
	}
	if err := msg.Validate(); err != nil {
		return reconcile.View{}, err
	}
	view, ok := q.reader.Snapshot(strings.TrimSpace(msg.UserID))
	if !ok {
		return reconcile.View{}, queryNotFoundError("query: no countdown tracked for user " + msg.UserID)
	}
	return view, nil
}

type ListCountdownsQuery struct {
	reader CountdownReader
}

func NewListCountdownsQuery(reader CountdownReader) *ListCountdownsQuery {
	return &ListCountdownsQuery{reader: reader}
}

func (q *ListCountdownsQuery) Query(_ context.Context, _ ListCountdownsMessage) ([]reconcile.View, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: countdown reader is required")
	}
	return q.reader.Snapshots(), nil
}
