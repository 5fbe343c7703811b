package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/inventory"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-backend/internal/pricing"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

func (s *service) Create(ctx context.Context, actor Actor, req CreateRequest) (*Reservation, error) {
	if req.Source == "" {
		req.Source = SourceWeb
	}
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, err
	}
	if req.Source == SourceOrganization {
		return nil, apperror.Wrap(ErrInvalidData, ErrInvalidData.Code, "organization reservations must use the organization endpoint")
	}
	if !actor.IsSystemAdmin && actor.UserID != req.UserID {
		if err := s.requireManager(ctx, actor, req.OrganizationID); err != nil {
			return nil, err
		}
	}
	if err := s.checkParties(ctx, req.UserID, req.OrganizationID, req.Resources); err != nil {
		return nil, err
	}

	initial, err := s.statuses.GetOrCreate(ctx, status.Initial)
	if err != nil {
		return nil, err
	}
	start, end := DateOnly(req.StartDate), DateOnly(req.EndDate)
	total, err := s.quotes.Quote(ctx, quoteItems(req.Resources), start, end)
	if err != nil {
		return nil, err
	}

	r := newReservation(req, initial, total)
	detail := newDetail(req.Detail, originalPrice(req.Resources, r.Nights()))
	if err := s.persist(ctx, r, detail, req.Resources); err != nil {
		return nil, err
	}

	s.invalidate(ctx, r)
	s.broadcast(ctx, inventory.ActionCreated, r)
	s.logger.Info("reservation created", zap.String("reservation_id", r.ID), zap.String("code", r.Code))
	return r, nil
}

func (s *service) CreateForOrganization(ctx context.Context, actor Actor, req CreateRequest) (*Reservation, error) {
	req.Source = SourceOrganization
	if err := s.validator.ValidateOrganizationCreate(req); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, actor, req.OrganizationID); err != nil {
		return nil, err
	}
	if err := s.checkParties(ctx, req.UserID, req.OrganizationID, req.Resources); err != nil {
		return nil, err
	}

	initial, err := s.statuses.GetOrCreate(ctx, status.Initial)
	if err != nil {
		return nil, err
	}

	amount := req.TotalAmount.Round(2)
	r := newReservation(req, initial, amount)
	original := amount
	if len(req.Resources) > 0 {
		original = originalPrice(req.Resources, r.Nights())
	}
	detail := newDetail(req.Detail, original)
	if err := s.persist(ctx, r, detail, req.Resources); err != nil {
		return nil, err
	}

	s.invalidate(ctx, r)
	s.broadcast(ctx, inventory.ActionCreated, r)
	s.recordLedger(ctx, r)
	s.logger.Info("organization reservation created",
		zap.String("reservation_id", r.ID),
		zap.String("organization_id", r.OrganizationID),
		zap.String("amount", r.TotalAmount.StringFixed(2)))
	return r, nil
}

// recordLedger reports an organization amount to the pricing ledger. It never fails the booking.
func (s *service) recordLedger(ctx context.Context, r *Reservation) {
	err := s.pricing.RecordLedgerEntry(ctx, pricing.LedgerEntry{
		ReservationID:  r.ID,
		OrganizationID: r.OrganizationID,
		Code:           r.Code,
		Amount:         r.TotalAmount,
		Source:         r.Source,
		RecordedAt:     s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("ledger entry not recorded", zap.String("reservation_id", r.ID), zap.Error(err))
	}
}

func newReservation(req CreateRequest, initial *status.Status, total decimal.Decimal) *Reservation {
	return &Reservation{
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		StatusID:       initial.ID,
		StatusName:     initial.Name,
		TotalAmount:    total,
		StartDate:      DateOnly(req.StartDate),
		EndDate:        DateOnly(req.EndDate),
		Source:         req.Source,
		IsActive:       true,
	}
}

func newDetail(in DetailInput, original decimal.Decimal) *Detail {
	d := &Detail{IsActive: true}
	applyDetail(d, in)
	d.OriginalPrice = original
	return d
}

func applyDetail(d *Detail, in DetailInput) {
	d.Name = strings.TrimSpace(in.Name)
	d.Email = strings.ToLower(strings.TrimSpace(in.Email))
	d.Phone = strings.TrimSpace(in.Phone)
	d.Adults, d.Children, d.Infants, d.Pets = in.Adults, in.Children, in.Infants, in.Pets
	d.Note = in.Note
	d.Discount = in.Discount
	d.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
}

// persist writes a new reservation with its detail and links in one transaction.
// The resource locks serialize concurrent bookings of the same resources until commit.
func (s *service) persist(ctx context.Context, r *Reservation, detail *Detail, items []ResourceInput) error {
	ids := resourceIDsOf(items)
	return s.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.LockResources(ctx, ids); err != nil {
			return err
		}
		if err := NewAvailability(tx).Ensure(ctx, ids, r.StartDate, r.EndDate, ""); err != nil {
			return err
		}

		if err := s.insertWithCode(ctx, tx, r); err != nil {
			return err
		}

		detail.ReservationID = r.ID
		if err := tx.CreateDetail(ctx, detail); err != nil {
			return err
		}
		r.Detail = detail

		r.Resources = make([]ResourceLink, 0, len(items))
		for _, item := range items {
			link := ResourceLink{
				ReservationID: r.ID,
				ResourceID:    item.ResourceID,
				Price:         item.Price,
				Quantity:      item.Quantity,
				IsActive:      true,
			}
			if err := tx.CreateLink(ctx, &link); err != nil {
				return err
			}
			r.Resources = append(r.Resources, link)
		}
		return nil
	})
}

// insertWithCode assigns a fresh code and inserts r. A concurrent writer can take the code between
// the existence check and the insert; that insert is rolled back to its savepoint and retried.
func (s *service) insertWithCode(ctx context.Context, tx Repository, r *Reservation) error {
	for attempt := 1; ; attempt++ {
		code, err := uniqueCode(ctx, tx, s.codes)
		if err != nil {
			return err
		}
		r.Code = code
		err = tx.Savepoint(ctx, func(sp Repository) error {
			return sp.Create(ctx, r)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
		if attempt >= maxCodeAttempts {
			return apperror.Wrap(err, ErrCodeExhausted.Code, ErrCodeExhausted.Message)
		}
		s.logger.Debug("reservation code taken concurrently, retrying", zap.String("code", code))
	}
}

func (s *service) Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Reservation, error) {
	return s.update(ctx, actor, id, req, false)
}

func (s *service) UpdateForOrganization(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Reservation, error) {
	return s.update(ctx, actor, id, req, true)
}

func (s *service) update(ctx context.Context, actor Actor, id string, req UpdateRequest, forOrg bool) (*Reservation, error) {
	current, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	manager := true
	if forOrg {
		err = s.requireManager(ctx, actor, current.OrganizationID)
	} else {
		manager, err = s.authorize(ctx, actor, current)
	}
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUpdate(current, req); err != nil {
		return nil, err
	}
	// Owners who do not manage the organization may only cancel.
	if !manager && (req.StatusName == nil || *req.StatusName != status.Cancelled || hasChanges(req)) {
		return nil, ErrAuthorizationFailed
	}

	var target *status.Status
	if req.StatusName != nil {
		if err := status.ValidateTransition(current.StatusName, *req.StatusName); err != nil {
			return nil, err
		}
		if target, err = s.statuses.GetOrCreate(ctx, *req.StatusName); err != nil {
			return nil, err
		}
	}
	cancelling := target != nil && target.Name == status.Cancelled

	start, end := current.StartDate, current.EndDate
	if req.StartDate != nil {
		start = DateOnly(*req.StartDate)
	}
	if req.EndDate != nil {
		end = DateOnly(*req.EndDate)
	}
	datesChanged := !start.Equal(current.StartDate) || !end.Equal(current.EndDate)
	resourcesChanged := req.Resources != nil

	items := linksAsInputs(current.Resources)
	if resourcesChanged {
		if req.AppendResources {
			items = append(items, req.Resources...)
		} else {
			items = req.Resources
		}
		var errs violations
		seen := map[string]bool{}
		for _, item := range items {
			if seen[item.ResourceID] {
				errs.add("resource %s is already attached", item.ResourceID)
			}
			seen[item.ResourceID] = true
		}
		if err := s.checkInventory(ctx, &errs, current.OrganizationID, req.Resources); err != nil {
			return nil, err
		}
		if err := errs.err(); err != nil {
			return nil, err
		}
	}

	total := current.TotalAmount
	switch {
	case forOrg:
		if req.TotalAmount != nil {
			total = req.TotalAmount.Round(2)
		}
	case datesChanged || resourcesChanged:
		if total, err = s.quotes.Quote(ctx, quoteItems(items), start, end); err != nil {
			return nil, err
		}
	}

	var result *Reservation
	err = s.repo.WithTx(ctx, func(tx Repository) error {
		fresh, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if target != nil {
			if err := status.ValidateTransition(fresh.StatusName, target.Name); err != nil {
				return err
			}
		}
		// The row lock is held across the refund so a concurrent cancel waits and then fails validation.
		if cancelling {
			if err := s.refund(ctx, fresh, req.Reason); err != nil {
				return err
			}
		}

		if (datesChanged || resourcesChanged) && !cancelling {
			ids := resourceIDsOf(items)
			if err := tx.LockResources(ctx, ids); err != nil {
				return err
			}
			if err := NewAvailability(tx).Ensure(ctx, ids, start, end, id); err != nil {
				return err
			}
		}

		fresh.StartDate, fresh.EndDate = start, end
		fresh.TotalAmount = total
		if target != nil {
			fresh.StatusID, fresh.StatusName = target.ID, target.Name
			if cancelling && !forOrg {
				fresh.IsActive = false
			}
		}
		if err := tx.Update(ctx, fresh); err != nil {
			return err
		}

		if resourcesChanged {
			added := req.Resources
			if !req.AppendResources {
				if err := tx.SoftDeleteLinks(ctx, id); err != nil {
					return err
				}
				fresh.Resources = nil
			}
			for _, item := range added {
				link := ResourceLink{
					ReservationID: id,
					ResourceID:    item.ResourceID,
					Price:         item.Price,
					Quantity:      item.Quantity,
					IsActive:      true,
				}
				if err := tx.CreateLink(ctx, &link); err != nil {
					return err
				}
				fresh.Resources = append(fresh.Resources, link)
			}
		}

		if req.Detail != nil || datesChanged || resourcesChanged {
			if err := s.saveDetail(ctx, tx, fresh, req.Detail, items); err != nil {
				return err
			}
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result)
	action := inventory.ActionUpdated
	if target != nil {
		s.metrics.Transition(current.StatusName, target.Name)
		if cancelling {
			action = inventory.ActionCancelled
		}
	}
	s.broadcast(ctx, action, result)
	return result, nil
}

// hasChanges reports whether req touches anything besides the status.
func hasChanges(req UpdateRequest) bool {
	return req.StartDate != nil || req.EndDate != nil || req.Resources != nil || req.Detail != nil || req.TotalAmount != nil
}

func (s *service) saveDetail(ctx context.Context, tx Repository, r *Reservation, in *DetailInput, items []ResourceInput) error {
	original := originalPrice(items, r.Nights())
	if r.Detail == nil {
		if in == nil {
			return nil
		}
		d := newDetail(*in, original)
		d.ReservationID = r.ID
		if err := tx.CreateDetail(ctx, d); err != nil {
			return err
		}
		r.Detail = d
		return nil
	}
	if in != nil {
		applyDetail(r.Detail, *in)
	}
	if len(items) > 0 {
		r.Detail.OriginalPrice = original
	}
	return tx.UpdateDetail(ctx, r.Detail)
}

func (s *service) Confirm(ctx context.Context, actor Actor, id string) (*Reservation, error) {
	return s.transition(ctx, actor, id, status.Confirmed, "", true)
}

func (s *service) Cancel(ctx context.Context, actor Actor, id string, reason string) (*Reservation, error) {
	return s.transition(ctx, actor, id, status.Cancelled, reason, false)
}

// transition moves a reservation to the named state. Nothing is written when the move is not allowed.
func (s *service) transition(ctx context.Context, actor Actor, id, to, reason string, managerOnly bool) (*Reservation, error) {
	current, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	manager, err := s.authorize(ctx, actor, current)
	if err != nil {
		return nil, err
	}
	if managerOnly && !manager {
		return nil, ErrAuthorizationFailed
	}
	if err := status.ValidateTransition(current.StatusName, to); err != nil {
		return nil, err
	}
	target, err := s.statuses.GetOrCreate(ctx, to)
	if err != nil {
		return nil, err
	}
	var (
		result *Reservation
		from   string
	)
	err = s.repo.WithTx(ctx, func(tx Repository) error {
		fresh, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := status.ValidateTransition(fresh.StatusName, to); err != nil {
			return err
		}
		// Refund under the row lock; an error rolls the transaction back.
		if to == status.Cancelled {
			if err := s.refund(ctx, fresh, reason); err != nil {
				return err
			}
		}
		from = fresh.StatusName
		fresh.StatusID, fresh.StatusName = target.ID, target.Name
		if to == status.Cancelled {
			fresh.IsActive = false
		}
		if err := tx.Update(ctx, fresh); err != nil {
			return err
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result)
	s.metrics.Transition(from, to)
	action := inventory.ActionUpdated
	if to == status.Cancelled {
		action = inventory.ActionCancelled
	}
	s.broadcast(ctx, action, result)
	s.logger.Info("reservation status changed",
		zap.String("reservation_id", id), zap.String("from", from), zap.String("to", to))
	return result, nil
}

// refund returns the paid amount before a cancellation commits. Call it with the row locked.
// A failure blocks the cancellation unless cancelRequiresRefund is off, in which case it is only logged.
func (s *service) refund(ctx context.Context, r *Reservation, reason string) error {
	if !r.TotalAmount.IsPositive() {
		return nil
	}
	err := s.pricing.Refund(ctx, pricing.RefundRequest{
		ReservationID: r.ID,
		Code:          r.Code,
		Amount:        r.TotalAmount,
		Reason:        reason,
	})
	if err == nil {
		return nil
	}
	if s.cancelRequiresRefund {
		return err
	}
	s.logger.Warn("refund failed, cancelling anyway", zap.String("reservation_id", r.ID), zap.Error(err))
	return nil
}

func (s *service) Delete(ctx context.Context, actor Actor, id string) error {
	current, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	if err := s.Authorize(ctx, actor, current); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.SoftDelete(ctx, id); err != nil {
			return err
		}
		if err := tx.SoftDeleteDetail(ctx, id); err != nil {
			return err
		}
		return tx.SoftDeleteLinks(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, current)
	s.broadcast(ctx, inventory.ActionDeleted, current)
	s.logger.Info("reservation deleted", zap.String("reservation_id", id))
	return nil
}

func (s *service) ValidateTicket(ctx context.Context, actor Actor, code string) (*Reservation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	current, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	manager, err := s.authorize(ctx, actor, current)
	if err != nil {
		return nil, err
	}
	if !manager {
		return nil, ErrAuthorizationFailed
	}
	if current.StatusName == status.CheckedIn {
		return current, nil
	}
	if !status.CanCheckIn(current.StatusName) {
		return nil, checkInError(current.StatusName)
	}

	target, err := s.statuses.GetOrCreate(ctx, status.CheckedIn)
	if err != nil {
		return nil, err
	}

	var (
		result *Reservation
		from   string
	)
	err = s.repo.WithTx(ctx, func(tx Repository) error {
		fresh, err := tx.GetForUpdate(ctx, current.ID)
		if err != nil {
			return err
		}
		from = fresh.StatusName
		if from == status.CheckedIn {
			result = fresh
			return nil
		}
		if !status.CanCheckIn(from) {
			return checkInError(from)
		}
		fresh.StatusID, fresh.StatusName = target.ID, target.Name
		if err := tx.Update(ctx, fresh); err != nil {
			return err
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from == status.CheckedIn {
		return result, nil
	}

	s.invalidate(ctx, result)
	s.metrics.Transition(from, status.CheckedIn)
	s.broadcast(ctx, inventory.ActionUpdated, result)
	return result, nil
}

func checkInError(from string) error {
	return apperror.Wrap(ErrInvalidStatusTransition, ErrInvalidStatusTransition.Code,
		fmt.Sprintf("cannot check in a reservation in status %s", from))
}

var errSkipped = errors.New("reservation no longer eligible")

func (s *service) CompleteElapsed(ctx context.Context, asOf time.Time) (int, error) {
	list, err := s.repo.ListElapsed(ctx, DateOnly(asOf), []string{status.Confirmed, status.CheckedIn})
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}
	target, err := s.statuses.GetOrCreate(ctx, status.Completed)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, r := range list {
		var from string
		err := s.repo.WithTx(ctx, func(tx Repository) error {
			fresh, err := tx.GetForUpdate(ctx, r.ID)
			if err != nil {
				return err
			}
			if !status.CanTransition(fresh.StatusName, status.Completed) {
				return errSkipped
			}
			from = fresh.StatusName
			fresh.StatusID, fresh.StatusName = target.ID, target.Name
			return tx.Update(ctx, fresh)
		})
		switch {
		case errors.Is(err, errSkipped):
			continue
		case err != nil:
			s.logger.Error("complete elapsed reservation failed", zap.String("reservation_id", r.ID), zap.Error(err))
			continue
		}
		s.invalidate(ctx, r)
		s.metrics.Transition(from, status.Completed)
		completed++
	}
	s.logger.Info("elapsed reservations completed", zap.Int("count", completed), zap.Time("as_of", asOf))
	return completed, nil
}
