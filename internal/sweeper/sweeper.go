// Package sweeper periodically closes expired groups and completes voting
// periods whose window has passed. It backs up the redis expiry
// notifications, which are not delivered while the service is down.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-lunch/internal/logger"
)

type GroupCloser interface {
	CloseExpiredGroups(ctx context.Context) (int, error)
}

type PeriodCloser interface {
	CompleteEndedPeriods(ctx context.Context) (int, error)
}

type Sweeper struct {
	Groups   GroupCloser
	Periods  PeriodCloser
	Interval time.Duration
	Logger   *logger.Logger
}

func New(groups GroupCloser, periods PeriodCloser, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{Groups: groups, Periods: periods, Interval: interval, Logger: log}
}

type Result struct {
	GroupsClosed     int
	PeriodsCompleted int
}

// RunOnce performs one sweep. Both steps run even if the first fails.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	n, err := s.Groups.CloseExpiredGroups(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("close expired groups: %w", err))
	}
	res.GroupsClosed = n

	n, err = s.Periods.CompleteEndedPeriods(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("complete voting periods: %w", err))
	}
	res.PeriodsCompleted = n

	if res.GroupsClosed > 0 || res.PeriodsCompleted > 0 {
		s.Logger.Info("SWEEPER", fmt.Sprintf("Closed %d groups, completed %d voting periods", res.GroupsClosed, res.PeriodsCompleted))
	}
	return res, errors.Join(errs...)
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Logger.Info("SWEEPER", fmt.Sprintf("Starting sweeper every %s", s.Interval))
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.Logger.Error("SWEEPER", err.Error())
		}
		select {
		case <-ctx.Done():
			s.Logger.Info("SWEEPER", "Sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}
