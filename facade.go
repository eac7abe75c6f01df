package supasoka

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/adapters/gocommand"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
	supasokacommand "github.com/ghettodevelopers/Supasoka-backend-sub002/command"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	supasokaquery "github.com/ghettodevelopers/Supasoka-backend-sub002/query"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

type CommandQueryService interface {
	supasokacommand.MutatingService
	supasokaquery.SessionReader
	supasokaquery.CatalogReader
}

type Commands struct {
	InitializeSession  *supasokacommand.InitializeSessionCommand
	Login              *supasokacommand.LoginCommand
	Logout             *supasokacommand.LogoutCommand
	ConnectRealtime    *supasokacommand.ConnectRealtimeCommand
	DisconnectRealtime *supasokacommand.DisconnectRealtimeCommand
	ActivateUser       *supasokacommand.ActivateUserCommand
	SetUserBlocked     *supasokacommand.SetUserBlockedCommand
	SendNotification   *supasokacommand.SendNotificationCommand
	SyncCountdowns     *supasokacommand.SyncCountdownsCommand
}

type Queries struct {
	SessionSnapshot   *supasokaquery.SessionSnapshotQuery
	Profile           *supasokaquery.ProfileQuery
	ListUsers         *supasokaquery.ListUsersQuery
	ListChannels      *supasokaquery.ListChannelsQuery
	ListPromotions    *supasokaquery.ListPromotionsQuery
	ListNotifications *supasokaquery.ListNotificationsQuery
	Countdown         *supasokaquery.CountdownQuery
	ListCountdowns    *supasokaquery.ListCountdownsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
	bundles  map[string]any
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	countdownReader supasokaquery.CountdownReader
	extensions      *ExtensionHooks
}

// WithCountdownReader overrides the reader used by the countdown queries.
func WithCountdownReader(reader supasokaquery.CountdownReader) FacadeOption {
	return func(options *facadeOptions) {
		options.countdownReader = reader
	}
}

func WithFacadeExtensions(hooks *ExtensionHooks) FacadeOption {
	return func(options *facadeOptions) {
		options.extensions = hooks
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("supasoka: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.countdownReader
	if reader == nil {
		reader = resolveCountdownReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		InitializeSession:  supasokacommand.NewInitializeSessionCommand(service),
		Login:              supasokacommand.NewLoginCommand(service),
		Logout:             supasokacommand.NewLogoutCommand(service),
		ConnectRealtime:    supasokacommand.NewConnectRealtimeCommand(service),
		DisconnectRealtime: supasokacommand.NewDisconnectRealtimeCommand(service),
		ActivateUser:       supasokacommand.NewActivateUserCommand(service),
		SetUserBlocked:     supasokacommand.NewSetUserBlockedCommand(service),
		SendNotification:   supasokacommand.NewSendNotificationCommand(service),
		SyncCountdowns:     supasokacommand.NewSyncCountdownsCommand(service),
	}
	facade.queries = Queries{
		SessionSnapshot:   supasokaquery.NewSessionSnapshotQuery(service),
		Profile:           supasokaquery.NewProfileQuery(service),
		ListUsers:         supasokaquery.NewListUsersQuery(service),
		ListChannels:      supasokaquery.NewListChannelsQuery(service),
		ListPromotions:    supasokaquery.NewListPromotionsQuery(service),
		ListNotifications: supasokaquery.NewListNotificationsQuery(service),
		Countdown:         supasokaquery.NewCountdownQuery(reader),
		ListCountdowns:    supasokaquery.NewListCountdownsQuery(reader),
	}

	bundles, err := cfg.extensions.BuildCommandQueryBundles(service)
	if err != nil {
		return nil, err
	}
	facade.bundles = bundles
	return facade, nil
}

// NewClientFacade builds a facade over a client, reading countdowns from
// its reconciler.
func NewClientFacade(client *Client, opts ...FacadeOption) (*Facade, error) {
	if client == nil {
		return nil, fmt.Errorf("supasoka: client is required")
	}
	base := []FacadeOption{
		WithCountdownReader(client.Reconciler()),
		WithFacadeExtensions(client.extensions),
	}
	return NewFacade(client, append(base, opts...)...)
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Bundle(name string) (any, bool) {
	if f == nil {
		return nil, false
	}
	bundle, ok := f.bundles[name]
	return bundle, ok
}

// Register binds every command and query to the go-command dispatcher
// through adapter. On failure everything the adapter holds is released;
// otherwise adapter.Close releases the bindings.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) error {
	if f == nil {
		return fmt.Errorf("supasoka: facade is nil")
	}
	if adapter == nil {
		return fmt.Errorf("supasoka: command registry adapter is required")
	}
	errOnly := func(_ commanddispatcher.Subscription, err error) error { return err }
	c, q := f.commands, f.queries
	steps := []func() error{
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.InitializeSessionMessage](adapter, c.InitializeSession))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.LoginMessage](adapter, c.Login))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.LogoutMessage](adapter, c.Logout))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.ConnectRealtimeMessage](adapter, c.ConnectRealtime))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.DisconnectRealtimeMessage](adapter, c.DisconnectRealtime))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.ActivateUserMessage](adapter, c.ActivateUser))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.SetUserBlockedMessage](adapter, c.SetUserBlocked))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.SendNotificationMessage](adapter, c.SendNotification))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribe[supasokacommand.SyncCountdownsMessage](adapter, c.SyncCountdowns))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.SessionSnapshotMessage, core.SessionSnapshot](adapter, q.SessionSnapshot))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.ProfileMessage, core.Principal](adapter, q.Profile))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.ListUsersMessage, []catalog.User](adapter, q.ListUsers))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.ListChannelsMessage, []catalog.Channel](adapter, q.ListChannels))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.ListPromotionsMessage, []catalog.Promotion](adapter, q.ListPromotions))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.ListNotificationsMessage, []catalog.Notification](adapter, q.ListNotifications))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.CountdownMessage, reconcile.View](adapter, q.Countdown))
		},
		func() error {
			return errOnly(gocommand.RegisterAndSubscribeQuery[supasokaquery.ListCountdownsMessage, []reconcile.View](adapter, q.ListCountdowns))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			adapter.Close()
			return err
		}
	}
	return nil
}

func resolveCountdownReader(service CommandQueryService) supasokaquery.CountdownReader {
	if reader, ok := service.(supasokaquery.CountdownReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Reconciler() *reconcile.Reconciler
	})
	if !ok {
		return nil
	}
	reconciler := provider.Reconciler()
	if reconciler == nil {
		return nil
	}
	return reconciler
}
