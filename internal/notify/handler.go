package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/inventory"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
)

// Handler delivers queued events to the inventory service.
type Handler struct {
	inventory inventory.Client
	metrics   *metrics.Registry
	logger    *zap.Logger
}

func NewHandler(inv inventory.Client, m *metrics.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inventory: inv, metrics: m, logger: logger}
}

// Register binds the handler to its task type.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeReservationChanged, h)
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		h.metrics.Notification("deliver", "malformed")
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	err := h.inventory.NotifyChange(ctx, inventory.ChangeEvent{
		Action:        ev.Action,
		ReservationID: ev.ReservationID,
		ResourceIDs:   ev.ResourceIDs,
		StartDate:     ev.StartDate,
		EndDate:       ev.EndDate,
		OccurredAt:    ev.OccurredAt,
	})
	if err != nil {
		h.metrics.Notification("deliver", "error")
		return err
	}
	h.metrics.Notification("deliver", "ok")
	return nil
}

// HandleError logs a failed delivery attempt. It is installed as the asynq server's ErrorHandler.
func (h *Handler) HandleError(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	fields := []zap.Field{
		zap.String("type", t.Type()),
		zap.Int("retried", retried),
		zap.Int("max_retry", maxRetry),
		zap.Error(err),
	}
	if retried >= maxRetry {
		h.metrics.Notification("deliver", "archived")
		h.logger.Error("notification delivery gave up", fields...)
		return
	}
	h.logger.Warn("notification delivery failed, will retry", fields...)
}
