package catalog

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
	"github.com/ghettodevelopers/Supasoka-backend-sub002/reconcile"
)

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return listCached(ctx, c, collectionUsers, c.paths.Users, decodeUser)
}

func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	if err := requireID("user", id); err != nil {
		return User{}, err
	}
	res, err := c.transport.DoRaw(ctx, http.MethodGet, itemPath(c.paths.Users, id), nil, nil)
	if err != nil {
		return User{}, err
	}
	return decodeUser(decodeItem(res.Body, "user")), nil
}

// ActivateUser grants access for duration, rounded up to whole minutes.
// The backend computes the resulting expiry.
func (c *Client) ActivateUser(ctx context.Context, id string, duration time.Duration) (User, error) {
	if err := requireID("user", id); err != nil {
		return User{}, err
	}
	if duration <= 0 {
		return User{}, core.NewBadInputError("catalog: activation duration must be positive", map[string]any{
			"duration": duration.String(),
		})
	}
	minutes := int64(math.Ceil(duration.Minutes()))
	res, err := c.mutate(ctx, collectionUsers, http.MethodPost, itemPath(c.paths.Users, id, "activate"), map[string]any{
		"duration": minutes,
		"unit":     "minutes",
	})
	if err != nil {
		return User{}, err
	}
	return decodeUser(decodeItem(res.Body, "user")), nil
}

func (c *Client) BlockUser(ctx context.Context, id string) error {
	return c.userAction(ctx, id, http.MethodPost, "block")
}

func (c *Client) UnblockUser(ctx context.Context, id string) error {
	return c.userAction(ctx, id, http.MethodPost, "unblock")
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.userAction(ctx, id, http.MethodDelete, "")
}

func (c *Client) userAction(ctx context.Context, id string, method string, action string) error {
	if err := requireID("user", id); err != nil {
		return err
	}
	path := itemPath(c.paths.Users, id)
	if action != "" {
		path = itemPath(c.paths.Users, id, action)
	}
	_, err := c.mutate(ctx, collectionUsers, method, path, nil)
	return err
}

// SeedReconciler fetches the user list and seeds one countdown row per
// user. Rows no longer listed are discarded.
func (c *Client) SeedReconciler(ctx context.Context, reconciler *reconcile.Reconciler) ([]User, error) {
	if reconciler == nil {
		return nil, core.NewBadInputError("catalog: reconciler is required", nil)
	}
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	observations := make([]reconcile.Observation, 0, len(users))
	ids := make([]string, 0, len(users))
	for _, user := range users {
		if user.ID == "" {
			continue
		}
		observations = append(observations, user.Observation())
		ids = append(ids, user.ID)
	}
	reconciler.Retain(ids...)
	reconciler.Seed(observations...)
	return users, nil
}
