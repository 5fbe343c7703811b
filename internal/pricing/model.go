package pricing

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var ErrPaymentProcessingFailed = apperror.New(http.StatusPaymentRequired, "payment processing failed")

// PriceRequest asks the pricing service for the full price of one resource for one night.
type PriceRequest struct {
	ResourceID string          `json:"resource_id"`
	Date       string          `json:"date"` // YYYY-MM-DD
	BasePrice  decimal.Decimal `json:"base_price"`
}

type priceResponse struct {
	FullPrice decimal.Decimal `json:"full_price"`
}

// RefundRequest returns money paid for a reservation.
type RefundRequest struct {
	ReservationID string          `json:"reservation_id"`
	Code          string          `json:"code"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
}

// LedgerEntry records an amount agreed outside the pricing flow, e.g. an organization booking.
type LedgerEntry struct {
	ReservationID  string          `json:"reservation_id"`
	OrganizationID string          `json:"organization_id"`
	Code           string          `json:"code"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// QuoteItem is one resource line of a reservation to be priced.
type QuoteItem struct {
	ResourceID string
	BasePrice  decimal.Decimal
	Quantity   int
}
