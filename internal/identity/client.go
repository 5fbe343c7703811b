// Package identity reads user profiles from the identity service.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nekogravitycat/reservation-backend/internal/collab"
)

// Client looks up users.
type Client interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

type httpClient struct {
	c *collab.Client
}

// NewClient creates an identity Client on top of the shared collaborator transport.
func NewClient(c *collab.Client) Client {
	return &httpClient{c: c}
}

func (h *httpClient) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := h.c.Do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(id), nil, &u)
	if err != nil {
		if errors.Is(err, collab.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

// RequireActive returns nil when the user exists and is active.
func RequireActive(ctx context.Context, c Client, id string) error {
	u, err := c.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return ErrInactiveUser
	}
	return nil
}
