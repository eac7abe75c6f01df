package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[InitializeSessionMessage]  = (*InitializeSessionCommand)(nil)
	_ gocmd.Commander[LoginMessage]              = (*LoginCommand)(nil)
	_ gocmd.Commander[LogoutMessage]             = (*LogoutCommand)(nil)
	_ gocmd.Commander[ConnectRealtimeMessage]    = (*ConnectRealtimeCommand)(nil)
	_ gocmd.Commander[DisconnectRealtimeMessage] = (*DisconnectRealtimeCommand)(nil)
	_ gocmd.Commander[ActivateUserMessage]       = (*ActivateUserCommand)(nil)
	_ gocmd.Commander[SetUserBlockedMessage]     = (*SetUserBlockedCommand)(nil)
	_ gocmd.Commander[SendNotificationMessage]   = (*SendNotificationCommand)(nil)
	_ gocmd.Commander[SyncCountdownsMessage]     = (*SyncCountdownsCommand)(nil)
)
