package catalog

import (
	"encoding/json"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	IsSubscribed    bool       `json:"is_subscribed"`
	IsBlocked       bool       `json:"is_blocked"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
	RemainingTime   *float64   `json:"remaining_time,omitempty"`
}

type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
	Logo      string `json:"logo,omitempty"`
	IsActive  bool   `json:"is_active"`
}

type Promotion struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Body     string     `json:"body,omitempty"`
	ImageURL string     `json:"image_url,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Active   bool       `json:"active"`
}

type Notification struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Kind         string     `json:"kind,omitempty"`
	TargetUserID string     `json:"target_user_id,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	Read         bool       `json:"read"`
}

// ChannelInput is the writable part of a channel.
type ChannelInput struct {
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	StreamURL string `json:"streamUrl,omitempty"`
	Logo      string `json:"logo,omitempty"`
	IsActive  *bool  `json:"isActive,omitempty"`
}

type PromotionInput struct {
	Title    string     `json:"title"`
	Body     string     `json:"description,omitempty"`
	ImageURL string     `json:"imageUrl,omitempty"`
	StartsAt *time.Time `json:"startDate,omitempty"`
	EndsAt   *time.Time `json:"endDate,omitempty"`
}

type NotificationInput struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	Kind         string `json:"type,omitempty"`
	TargetUserID string `json:"userId,omitempty"`
}

// Observation converts the user into a countdown reading.
func (u User) Observation() reconcile.Observation {
	obs := reconcile.Observation{UserID: u.ID, Blocked: u.IsBlocked}
	if u.SubscriptionEnd != nil {
		obs.ExpiresAt = *u.SubscriptionEnd
	}
	if u.RemainingTime != nil {
		obs.RemainingUnits, obs.HasRemaining = *u.RemainingTime, true
	}
	obs.Revoked = !u.IsSubscribed && u.SubscriptionEnd == nil && u.RemainingTime == nil
	return obs
}

func decodeUser(source map[string]any) User {
	user := User{
		ID:           core.StringField(source, "id", "_id", "userId"),
		Name:         core.StringField(source, "name", "username", "fullName"),
		Email:        core.StringField(source, "email"),
		Phone:        core.StringField(source, "phone", "phoneNumber"),
		IsSubscribed: core.BoolField(source, "isSubscribed"),
		IsBlocked:    core.BoolField(source, "isBlocked"),
	}
	if at, ok := reconcile.ParseExpiry(source["subscriptionEnd"]); ok {
		user.SubscriptionEnd = &at
	}
	if remaining, ok := core.NumberField(source, "remainingTime"); ok {
		user.RemainingTime = &remaining
	}
	return user
}

func decodeChannel(source map[string]any) Channel {
	return Channel{
		ID:        core.StringField(source, "id", "_id"),
		Name:      core.StringField(source, "name", "title"),
		Category:  core.StringField(source, "category"),
		StreamURL: core.StringField(source, "streamUrl", "stream_url", "url"),
		Logo:      core.StringField(source, "logo", "logoUrl"),
		IsActive:  core.BoolField(source, "isActive", "active"),
	}
}

func decodePromotion(source map[string]any) Promotion {
	promotion := Promotion{
		ID:       core.StringField(source, "id", "_id"),
		Title:    core.StringField(source, "title"),
		Body:     core.StringField(source, "description", "body"),
		ImageURL: core.StringField(source, "imageUrl", "image"),
		Active:   core.BoolField(source, "isActive", "active"),
	}
	if at, ok := reconcile.ParseExpiry(source["startDate"]); ok {
		promotion.StartsAt = &at
	}
	if at, ok := reconcile.ParseExpiry(source["endDate"]); ok {
		promotion.EndsAt = &at
	}
	return promotion
}

func decodeNotification(source map[string]any) Notification {
	notification := Notification{
		ID:           core.StringField(source, "id", "_id"),
		Title:        core.StringField(source, "title"),
		Message:      core.StringField(source, "message", "body"),
		Kind:         core.StringField(source, "type", "kind"),
		TargetUserID: core.StringField(source, "userId", "targetUserId"),
		Read:         core.BoolField(source, "isRead", "read"),
	}
	if at, ok := reconcile.ParseExpiry(source["createdAt"]); ok {
		notification.CreatedAt = &at
	}
	return notification
}

// decodeList reads a collection from body, accepting a bare array or an
// object wrapping it under one of keys or "data". Anything else yields an
// empty list and a malformed error.
func decodeList(body []byte, keys ...string) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.NewMalformedError("catalog: payload is not json", err)
	}
	switch typed := raw.(type) {
	case []any:
		return objects(typed), nil
	case map[string]any:
		for _, key := range append(keys, "data", "items") {
			if items, ok := typed[key].([]any); ok {
				return objects(items), nil
			}
		}
	}
	return nil, core.NewMalformedError("catalog: payload carries no collection", nil)
}

// decodeItem reads one entity, unwrapping it from key or "data" when nested.
func decodeItem(body []byte, key string) map[string]any {
	payload, err := core.DecodeObject(body)
	if err != nil {
		return map[string]any{}
	}
	for _, candidate := range []string{key, "data"} {
		if nested, ok := payload[candidate].(map[string]any); ok {
			return nested
		}
	}
	return payload
}

func objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if object, ok := item.(map[string]any); ok {
			out = append(out, object)
		}
	}
	return out
}
