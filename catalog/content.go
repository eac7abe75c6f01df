package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	return listCached(ctx, c, collectionChannels, c.paths.Channels, decodeChannel)
}

func (c *Client) CreateChannel(ctx context.Context, input ChannelInput) (Channel, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Channel{}, core.NewBadInputError("catalog: channel name is required", nil)
	}
	res, err := c.mutate(ctx, collectionChannels, http.MethodPost, c.paths.Channels, input)
	if err != nil {
		return Channel{}, err
	}
	return decodeChannel(decodeItem(res.Body, "channel")), nil
}

func (c *Client) UpdateChannel(ctx context.Context, id string, input ChannelInput) (Channel, error) {
	if err := requireID("channel", id); err != nil {
		return Channel{}, err
	}
	res, err := c.mutate(ctx, collectionChannels, http.MethodPut, itemPath(c.paths.Channels, id), input)
	if err != nil {
		return Channel{}, err
	}
	return decodeChannel(decodeItem(res.Body, "channel")), nil
}

func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	if err := requireID("channel", id); err != nil {
		return err
	}
	_, err := c.mutate(ctx, collectionChannels, http.MethodDelete, itemPath(c.paths.Channels, id), nil)
	return err
}

func (c *Client) ListPromotions(ctx context.Context) ([]Promotion, error) {
	return listCached(ctx, c, collectionPromotions, c.paths.Promotions, decodePromotion)
}

func (c *Client) CreatePromotion(ctx context.Context, input PromotionInput) (Promotion, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Promotion{}, core.NewBadInputError("catalog: promotion title is required", nil)
	}
	if input.StartsAt != nil && input.EndsAt != nil && input.EndsAt.Before(*input.StartsAt) {
		return Promotion{}, core.NewBadInputError("catalog: promotion ends before it starts", nil)
	}
	res, err := c.mutate(ctx, collectionPromotions, http.MethodPost, c.paths.Promotions, input)
	if err != nil {
		return Promotion{}, err
	}
	return decodePromotion(decodeItem(res.Body, "promotion")), nil
}

func (c *Client) DeletePromotion(ctx context.Context, id string) error {
	if err := requireID("promotion", id); err != nil {
		return err
	}
	_, err := c.mutate(ctx, collectionPromotions, http.MethodDelete, itemPath(c.paths.Promotions, id), nil)
	return err
}

func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	return listCached(ctx, c, collectionNotifications, c.paths.Notifications, decodeNotification)
}

// SendNotification broadcasts when TargetUserID is empty.
func (c *Client) SendNotification(ctx context.Context, input NotificationInput) (Notification, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Message) == "" {
		return Notification{}, core.NewBadInputError("catalog: notification title and message are required", nil)
	}
	res, err := c.mutate(ctx, collectionNotifications, http.MethodPost, c.paths.Notifications, input)
	if err != nil {
		return Notification{}, err
	}
	return decodeNotification(decodeItem(res.Body, "notification")), nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := requireID("notification", id); err != nil {
		return err
	}
	_, err := c.mutate(ctx, collectionNotifications, http.MethodPatch, itemPath(c.paths.Notifications, id, "read"), nil)
	return err
}
