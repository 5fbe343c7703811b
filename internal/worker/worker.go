// Package worker runs the background side of the service: notification delivery and the completion sweep.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/notify"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

const sweepTimeout = 10 * time.Minute

// NewServer builds an asynq server that consumes the notifications queue.
func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, h *notify.Handler, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:  concurrency,
		Queues:       map[string]int{notify.Queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(h.HandleError),
		Logger:       logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	h.Register(mux)
	return srv, mux
}

// Sweeper periodically completes reservations whose stay has ended.
type Sweeper struct {
	reservations reservation.Service
	cron         *cron.Cron
	logger       *zap.Logger
	now          func() time.Time
}

// NewSweeper schedules the sweep with a standard cron expression or descriptor such as "@daily".
func NewSweeper(svc reservation.Service, schedule string, logger *zap.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		reservations: svc,
		cron:         cron.New(),
		logger:       logger,
		now:          time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("completion sweep failed", zap.Error(err))
	}
}

// RunOnce completes every eligible reservation as of today.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.reservations.CompleteElapsed(ctx, s.now())
	if err != nil {
		return n, err
	}
	s.logger.Info("completion sweep finished", zap.Int("completed", n), zap.Duration("took", time.Since(start)))
	return n, nil
}
