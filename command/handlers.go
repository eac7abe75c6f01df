package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

type SessionService interface {
	Initialize(ctx context.Context) (core.SessionSnapshot, error)
	Login(ctx context.Context, identifier string, secret string) (core.SessionSnapshot, error)
	Logout(ctx context.Context) error
}

type RealtimeService interface {
	ConnectRealtime(ctx context.Context) error
	DisconnectRealtime(ctx context.Context) error
}

type AdminService interface {
	ActivateUser(ctx context.Context, userID string, duration time.Duration) (catalog.User, error)
	SetUserBlocked(ctx context.Context, userID string, blocked bool) error
	SendNotification(ctx context.Context, input catalog.NotificationInput) (catalog.Notification, error)
	SyncCountdowns(ctx context.Context) ([]reconcile.View, error)
}

type MutatingService interface {
	SessionService
	RealtimeService
	AdminService
}

type InitializeSessionCommand struct {
	service SessionService
}

func NewInitializeSessionCommand(service SessionService) *InitializeSessionCommand {
	return &InitializeSessionCommand{service: service}
}

func (c *InitializeSessionCommand) Execute(ctx context.Context, _ InitializeSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.Initialize(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LoginCommand struct {
	service SessionService
}

func NewLoginCommand(service SessionService) *LoginCommand {
	return &LoginCommand{service: service}
}

func (c *LoginCommand) Execute(ctx context.Context, msg LoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.Login(ctx, msg.Identifier, msg.Secret)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LogoutCommand struct {
	service SessionService
}

func NewLogoutCommand(service SessionService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	return c.service.Logout(ctx)
}

type ConnectRealtimeCommand struct {
	service RealtimeService
}

func NewConnectRealtimeCommand(service RealtimeService) *ConnectRealtimeCommand {
	return &ConnectRealtimeCommand{service: service}
}

func (c *ConnectRealtimeCommand) Execute(ctx context.Context, _ ConnectRealtimeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: realtime service is required")
	}
	return c.service.ConnectRealtime(ctx)
}

type DisconnectRealtimeCommand struct {
	service RealtimeService
}

func NewDisconnectRealtimeCommand(service RealtimeService) *DisconnectRealtimeCommand {
	return &DisconnectRealtimeCommand{service: service}
}

func (c *DisconnectRealtimeCommand) Execute(ctx context.Context, _ DisconnectRealtimeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: realtime service is required")
	}
	return c.service.DisconnectRealtime(ctx)
}

type ActivateUserCommand struct {
	service AdminService
}

func NewActivateUserCommand(service AdminService) *ActivateUserCommand {
	return &ActivateUserCommand{service: service}
}

func (c *ActivateUserCommand) Execute(ctx context.Context, msg ActivateUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.ActivateUser(ctx, msg.UserID, msg.Duration)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetUserBlockedCommand struct {
	service AdminService
}

func NewSetUserBlockedCommand(service AdminService) *SetUserBlockedCommand {
	return &SetUserBlockedCommand{service: service}
}

func (c *SetUserBlockedCommand) Execute(ctx context.Context, msg SetUserBlockedMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.SetUserBlocked(ctx, msg.UserID, msg.Blocked)
}

type SendNotificationCommand struct {
	service AdminService
}

func NewSendNotificationCommand(service AdminService) *SendNotificationCommand {
	return &SendNotificationCommand{service: service}
}

func (c *SendNotificationCommand) Execute(ctx context.Context, msg SendNotificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.SendNotification(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// SyncCountdownsCommand reloads users from the backend and reseeds the
// countdown reconciler with them.
type SyncCountdownsCommand struct {
	service AdminService
}

func NewSyncCountdownsCommand(service AdminService) *SyncCountdownsCommand {
	return &SyncCountdownsCommand{service: service}
}

func (c *SyncCountdownsCommand) Execute(ctx context.Context, _ SyncCountdownsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.SyncCountdowns(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
