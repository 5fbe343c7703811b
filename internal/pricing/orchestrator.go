package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Orchestrator turns a list of booked resources into a reservation total.
type Orchestrator struct {
	client Client
}

func NewOrchestrator(client Client) *Orchestrator {
	return &Orchestrator{client: client}
}

// Quote asks the pricing service for every (resource, night) pair in [start, end) and sums
// the full prices multiplied by quantity. Any collaborator failure aborts the quote.
func (o *Orchestrator) Quote(ctx context.Context, items []QuoteItem, start, end time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	nights := NightsBetween(start, end)

	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		for _, night := range nights {
			price, err := o.client.FullPrice(ctx, PriceRequest{
				ResourceID: item.ResourceID,
				Date:       night.Format(dateLayout),
				BasePrice:  item.BasePrice,
			})
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(price.Mul(qty))
		}
	}
	return total.Round(2), nil
}

// NightsBetween lists the UTC dates from start up to, but excluding, end.
func NightsBetween(start, end time.Time) []time.Time {
	s := truncateDay(start)
	e := truncateDay(end)
	var nights []time.Time
	for d := s; d.Before(e); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
