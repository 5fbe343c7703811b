// Package notify broadcasts reservation changes to the inventory service through an asynq queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/metrics"
)

const (
	TypeReservationChanged = "reservation:changed"
	Queue                  = "notifications"
	MaxRetry               = 5

	enqueueTimeout = 5 * time.Second
	taskTimeout    = 30 * time.Second
)

// Event describes one committed reservation change.
type Event struct {
	Action        string    `json:"action"`
	ReservationID string    `json:"reservation_id"`
	ResourceIDs   []string  `json:"resource_ids"`
	StartDate     string    `json:"start_date,omitempty"`
	EndDate       string    `json:"end_date,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewTask wraps ev in an asynq task bound to the notifications queue.
func NewTask(ev Event) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return asynq.NewTask(TypeReservationChanged, payload,
		asynq.Queue(Queue),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(taskTimeout),
	), nil
}

// Enqueuer is implemented by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues events without blocking the caller.
type Dispatcher struct {
	q       Enqueuer
	metrics *metrics.Registry
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(q Enqueuer, m *metrics.Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{q: q, metrics: m, logger: logger}
}

// Notify hands ev to the queue in the background. Failures are logged and counted, never returned.
// The enqueue outlives ctx cancellation but is bounded by its own timeout.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	bg := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(bg, enqueueTimeout)
		defer cancel()

		log := d.logger.With(zap.String("reservation_id", ev.ReservationID), zap.String("action", ev.Action))

		task, err := NewTask(ev)
		if err != nil {
			d.metrics.Notification("enqueue", "error")
			log.Error("build notification task failed", zap.Error(err))
			return
		}
		info, err := d.q.EnqueueContext(ctx, task)
		if err != nil {
			d.metrics.Notification("enqueue", "error")
			log.Error("enqueue notification failed", zap.Error(err))
			return
		}
		d.metrics.Notification("enqueue", "ok")
		log.Debug("notification enqueued", zap.String("task_id", info.ID))
	}()
}

// Wait blocks until every pending enqueue has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
