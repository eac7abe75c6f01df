package command

import (
	"strings"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/catalog"
)

const (
	TypeInitializeSession  = "supasoka.command.session.initialize"
	TypeLogin              = "supasoka.command.session.login"
	TypeLogout             = "supasoka.command.session.logout"
	TypeConnectRealtime    = "supasoka.command.realtime.connect"
	TypeDisconnectRealtime = "supasoka.command.realtime.disconnect"
	TypeActivateUser       = "supasoka.command.user.activate"
	TypeSetUserBlocked     = "supasoka.command.user.set_blocked"
	TypeSendNotification   = "supasoka.command.notification.send"
	TypeSyncCountdowns     = "supasoka.command.countdown.sync"
)

type InitializeSessionMessage struct{}

func (InitializeSessionMessage) Type() string { return TypeInitializeSession }

type LoginMessage struct {
	Identifier string
	Secret     string
}

func (LoginMessage) Type() string { return TypeLogin }

func (m LoginMessage) Validate() error {
	if strings.TrimSpace(m.Identifier) == "" {
		return commandValidationError("identifier", "identifier is required")
	}
	if m.Secret == "" {
		return commandValidationError("secret", "secret is required")
	}
	return nil
}

type LogoutMessage struct{}

func (LogoutMessage) Type() string { return TypeLogout }

type ConnectRealtimeMessage struct{}

func (ConnectRealtimeMessage) Type() string { return TypeConnectRealtime }

type DisconnectRealtimeMessage struct{}

func (DisconnectRealtimeMessage) Type() string { return TypeDisconnectRealtime }

type ActivateUserMessage struct {
	UserID   string
	Duration time.Duration
}

func (ActivateUserMessage) Type() string { return TypeActivateUser }

func (m ActivateUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if m.Duration <= 0 {
		return commandValidationError("duration", "duration must be positive")
	}
	return nil
}

type SetUserBlockedMessage struct {
	UserID  string
	Blocked bool
}

func (SetUserBlockedMessage) Type() string { return TypeSetUserBlocked }

func (m SetUserBlockedMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type SendNotificationMessage struct {
	Input catalog.NotificationInput
}

func (SendNotificationMessage) Type() string { return TypeSendNotification }

func (m SendNotificationMessage) Validate() error {
	if strings.TrimSpace(m.Input.Title) == "" {
		return commandValidationError("title", "title is required")
	}
	if strings.TrimSpace(m.Input.Message) == "" {
		return commandValidationError("message", "message is required")
	}
	return nil
}

type SyncCountdownsMessage struct{}

func (SyncCountdownsMessage) Type() string { return TypeSyncCountdowns }
