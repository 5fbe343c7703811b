// Package inventory talks to the resource inventory service.
package inventory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nekogravitycat/reservation-backend/internal/collab"
)

// Client reads resources in batches and receives booking change broadcasts.
type Client interface {
	GetResources(ctx context.Context, ids []string) (map[string]Resource, error)
	NotifyChange(ctx context.Context, ev ChangeEvent) error
}

type httpClient struct {
	c *collab.Client
}

// NewClient creates an inventory Client on top of the shared collaborator transport.
func NewClient(c *collab.Client) Client {
	return &httpClient{c: c}
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

type batchResponse struct {
	Items []Resource `json:"items"`
}

// GetResources returns the known resources keyed by ID. Unknown IDs are simply absent.
func (h *httpClient) GetResources(ctx context.Context, ids []string) (map[string]Resource, error) {
	ids = collab.UniqueIDs(ids)
	out := make(map[string]Resource, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var resp batchResponse
	if err := h.c.Do(ctx, http.MethodPost, "/v1/resources/batch", batchRequest{IDs: ids}, &resp); err != nil {
		return nil, fmt.Errorf("failed to get resources: %w", err)
	}
	for _, r := range resp.Items {
		out[r.ID] = r
	}
	return out, nil
}

func (h *httpClient) NotifyChange(ctx context.Context, ev ChangeEvent) error {
	if err := h.c.Do(ctx, http.MethodPost, "/v1/resources/changes", ev, nil); err != nil {
		return fmt.Errorf("failed to notify resource change: %w", err)
	}
	return nil
}
