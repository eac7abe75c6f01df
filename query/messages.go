package query

import "strings"

const (
	TypeSessionSnapshot   = "supasoka.query.session.snapshot"
	TypeProfile           = "supasoka.query.session.profile"
	TypeListUsers         = "supasoka.query.users.list"
	TypeListChannels      = "supasoka.query.channels.list"
	TypeListPromotions    = "supasoka.query.promotions.list"
	TypeListNotifications = "supasoka.query.notifications.list"
	TypeCountdown         = "supasoka.query.countdown.get"
	TypeListCountdowns    = "supasoka.query.countdown.list"
)

type SessionSnapshotMessage struct{}

func (SessionSnapshotMessage) Type() string { return TypeSessionSnapshot }

type ProfileMessage struct{}

func (ProfileMessage) Type() string { return TypeProfile }

type ListUsersMessage struct{}

func (ListUsersMessage) Type() string { return TypeListUsers }

type ListChannelsMessage struct{}

func (ListChannelsMessage) Type() string { return TypeListChannels }

type ListPromotionsMessage struct{}

func (ListPromotionsMessage) Type() string { return TypeListPromotions }

type ListNotificationsMessage struct{}

func (ListNotificationsMessage) Type() string { return TypeListNotifications }

type CountdownMessage struct {
	UserID string
}

func (CountdownMessage) Type() string { return TypeCountdown }

func (m CountdownMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type ListCountdownsMessage struct{}

func (ListCountdownsMessage) Type() string { return TypeListCountdowns }
