// Package pricing prices reservations and moves money through the pricing and payment service.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/collab"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

// Client is the pricing and payment collaborator.
type Client interface {
	FullPrice(ctx context.Context, req PriceRequest) (decimal.Decimal, error)
	Refund(ctx context.Context, req RefundRequest) error
	RecordLedgerEntry(ctx context.Context, entry LedgerEntry) error
}

type httpClient struct {
	c *collab.Client
}

// NewClient creates a pricing Client on top of the shared collaborator transport.
func NewClient(c *collab.Client) Client {
	return &httpClient{c: c}
}

func (h *httpClient) FullPrice(ctx context.Context, req PriceRequest) (decimal.Decimal, error) {
	var resp priceResponse
	if err := h.c.Do(ctx, http.MethodPost, "/v1/prices/full", req, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to price resource %s on %s: %w", req.ResourceID, req.Date, err)
	}
	return resp.FullPrice, nil
}

// Refund reports a declined refund as ErrPaymentProcessingFailed; unreachable service stays an external service error.
func (h *httpClient) Refund(ctx context.Context, req RefundRequest) error {
	err := h.c.Do(ctx, http.MethodPost, "/v1/refunds", req, nil)
	if err == nil {
		return nil
	}
	if collab.IsRetryable(err) {
		return fmt.Errorf("failed to refund reservation %s: %w", req.ReservationID, err)
	}
	return apperror.Wrap(errors.Join(ErrPaymentProcessingFailed, err), ErrPaymentProcessingFailed.Code, ErrPaymentProcessingFailed.Message)
}

func (h *httpClient) RecordLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	if err := h.c.Do(ctx, http.MethodPost, "/v1/ledger", entry, nil); err != nil {
		return fmt.Errorf("failed to record ledger entry for %s: %w", entry.ReservationID, err)
	}
	return nil
}
