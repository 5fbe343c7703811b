// Package organization reads organizations and memberships from the organization directory.
package organization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nekogravitycat/reservation-backend/internal/collab"
)

// Client is the organization directory.
type Client interface {
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	GetOrganizations(ctx context.Context, ids []string) (map[string]Organization, error)
	IsManager(ctx context.Context, orgID, userID string) (bool, error)
}

type httpClient struct {
	c *collab.Client
}

// NewClient creates an organization directory Client on top of the shared collaborator transport.
func NewClient(c *collab.Client) Client {
	return &httpClient{c: c}
}

func (h *httpClient) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	if err := h.c.Do(ctx, http.MethodGet, "/v1/organizations/"+url.PathEscape(id), nil, &org); err != nil {
		if errors.Is(err, collab.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization %s: %w", id, err)
	}
	return &org, nil
}

func (h *httpClient) GetOrganizations(ctx context.Context, ids []string) (map[string]Organization, error) {
	ids = collab.UniqueIDs(ids)
	out := make(map[string]Organization, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var resp struct {
		Items []Organization `json:"items"`
	}
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := h.c.Do(ctx, http.MethodPost, "/v1/organizations/batch", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to get organizations: %w", err)
	}
	for _, o := range resp.Items {
		out[o.ID] = o
	}
	return out, nil
}

// IsManager reports whether userID is an owner or admin of orgID. Non-members are not managers.
func (h *httpClient) IsManager(ctx context.Context, orgID, userID string) (bool, error) {
	var m Member
	path := fmt.Sprintf("/v1/organizations/%s/members/%s", url.PathEscape(orgID), url.PathEscape(userID))
	if err := h.c.Do(ctx, http.MethodGet, path, nil, &m); err != nil {
		if errors.Is(err, collab.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return m.CanManage(), nil
}
