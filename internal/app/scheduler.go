package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PastBookingCompleter is the background job run by Scheduler.
type PastBookingCompleter interface {
	CompletePastBookings(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	completer PastBookingCompleter
	interval  time.Duration
	logger    *zap.Logger
}

// NewScheduler создаёт новый планировщик
func NewScheduler(completer PastBookingCompleter, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		completer: completer,
		interval:  interval,
		logger:    logger,
	}
}

// Run блокируется до отмены ctx, периодически завершая прошедшие брони
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	// Первый запуск сразу при старте
	s.completePastBookings(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.completePastBookings(ctx)
		case <-ctx.Done():
			s.logger.Info("Background scheduler stopped")
			return nil
		}
	}
}

func (s *Scheduler) completePastBookings(ctx context.Context) {
	n, err := s.completer.CompletePastBookings(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Failed to complete past bookings", zap.Error(err))
		return
	}

	if n > 0 {
		s.logger.Info("Past bookings completed", zap.Int64("count", n))
	}
}
