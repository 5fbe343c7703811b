package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

// Availability answers whether resources are free for a date range.
// Two ranges [s1,e1] and [s2,e2] conflict when s1 <= e2 AND e1 >= s2; only active,
// non-deleted reservations take part. It never writes.
type Availability struct {
	repo Repository
}

func NewAvailability(repo Repository) *Availability {
	return &Availability{repo: repo}
}

// IsAvailable reports whether resourceID is free over [start, end]. excludeID may be empty.
func (a *Availability) IsAvailable(ctx context.Context, resourceID string, start, end time.Time, excludeID string) (bool, error) {
	overlap, err := a.repo.HasOverlap(ctx, resourceID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

// FindConflicts lists the reservations that hold any of resourceIDs over [start, end].
func (a *Availability) FindConflicts(ctx context.Context, resourceIDs []string, start, end time.Time, excludeID string) ([]*Reservation, error) {
	return a.repo.FindConflicts(ctx, resourceIDs, start, end, excludeID)
}

// Ensure checks each resource once and fails with ErrResourceUnavailable naming the first taken one.
func (a *Availability) Ensure(ctx context.Context, resourceIDs []string, start, end time.Time, excludeID string) error {
	for _, id := range resourceIDs {
		ok, err := a.IsAvailable(ctx, id, start, end, excludeID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Wrap(ErrResourceUnavailable, ErrResourceUnavailable.Code,
				fmt.Sprintf("resource %s is already booked between %s and %s", id, start.Format(dateLayout), end.Format(dateLayout)))
		}
	}
	return nil
}
