package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

var (
	_ gocmd.Querier[SessionSnapshotMessage, core.SessionSnapshot]     = (*SessionSnapshotQuery)(nil)
	_ gocmd.Querier[ProfileMessage, core.Principal]                   = (*ProfileQuery)(nil)
	_ gocmd.Querier[ListUsersMessage, []catalog.User]                 = (*ListUsersQuery)(nil)
	_ gocmd.Querier[ListChannelsMessage, []catalog.Channel]           = (*ListChannelsQuery)(nil)
	_ gocmd.Querier[ListPromotionsMessage, []catalog.Promotion]       = (*ListPromotionsQuery)(nil)
	_ gocmd.Querier[ListNotificationsMessage, []catalog.Notification] = (*ListNotificationsQuery)(nil)
	_ gocmd.Querier[CountdownMessage, reconcile.View]                 = (*CountdownQuery)(nil)
	_ gocmd.Querier[ListCountdownsMessage, []reconcile.View]          = (*ListCountdownsQuery)(nil)
	_ CountdownReader                                                 = (*reconcile.Reconciler)(nil)
	_ CatalogReader                                                   = (*catalog.Client)(nil)
)
