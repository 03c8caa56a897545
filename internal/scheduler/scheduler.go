// Package scheduler ticks the monitor's two cycles on their intervals.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"stockwatch/pkg/monitor"
)

// Scheduler drives the fast free-tier cycle and the slow metered
// cycle. The cycles are independent: each works from its own snapshot
// of the alert set, so no mutual exclusion is needed between them.
type Scheduler struct {
	cron            *gocron.Scheduler
	monitor         *monitor.Monitor
	logger          *slog.Logger
	fastInterval    time.Duration
	meteredInterval time.Duration
}

// New creates a scheduler over the monitor.
func New(m *monitor.Monitor, fastInterval, meteredInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:            gocron.NewScheduler(time.UTC),
		monitor:         m,
		logger:          logger,
		fastInterval:    fastInterval,
		meteredInterval: meteredInterval,
	}
}

// Start registers both cycles and begins ticking in the background.
// The context bounds each cycle run, not the ticking itself; call Stop
// to halt the timers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		"fast_interval", s.fastInterval, "metered_interval", s.meteredInterval)

	_, err := s.cron.Every(s.fastInterval).Do(func() {
		s.monitor.RunFastCycle(ctx)
	})
	if err != nil {
		return err
	}

	_, err = s.cron.Every(s.meteredInterval).Do(func() {
		s.monitor.RunMeteredCycle(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.StartAsync()
	return nil
}

// Stop halts the timers and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}
