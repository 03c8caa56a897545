// Package monitor drives the periodic price-check cycles: selecting
// due alerts, routing them to the right provider tier, applying fresh
// prices and firing one-shot triggers.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/pkg/marketcal"
	"stockwatch/pkg/model"
	"stockwatch/pkg/notify"
	"stockwatch/pkg/providers"
	"stockwatch/pkg/storage"
)

// Config wires the monitor's collaborators.
type Config struct {
	Storage   storage.Storage
	Domestic  providers.SingleQuoter
	Free      providers.BatchPricer
	Metered   providers.BatchPricer
	Calendar  *marketcal.Calendar
	Notifiers []notify.Notifier
	Logger    *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Monitor owns the two cycle bodies. It has no timer of its own; a
// scheduler invokes RunFastCycle and RunMeteredCycle on their
// respective intervals.
type Monitor struct {
	store     storage.Storage
	domestic  providers.SingleQuoter
	free      providers.BatchPricer
	metered   providers.BatchPricer
	calendar  *marketcal.Calendar
	notifiers []notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a monitor.
func New(cfg Config) *Monitor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		store:     cfg.Storage,
		domestic:  cfg.Domestic,
		free:      cfg.Free,
		metered:   cfg.Metered,
		calendar:  cfg.Calendar,
		notifiers: cfg.Notifiers,
		logger:    cfg.Logger,
		now:       now,
	}
}

// PartitionDue splits the active alert set into the domestic and
// foreign alerts that need refreshing at the given instant.
func PartitionDue(alerts []model.Alert, now time.Time) (domestic, foreign []model.Alert) {
	for _, a := range alerts {
		if !a.Due(now) {
			continue
		}
		if a.Domestic() {
			domestic = append(domestic, a)
		} else {
			foreign = append(foreign, a)
		}
	}
	return domestic, foreign
}

// MeteredEligible filters due foreign alerts down to those whose own
// exchange is trading right now. The metered tier batches across
// several foreign exchanges with different sessions, so the coarse
// "any foreign market open" gate is not enough per alert.
func (m *Monitor) MeteredEligible(alerts []model.Alert, now time.Time) []model.Alert {
	var eligible []model.Alert
	for _, a := range alerts {
		if a.Domestic() || !a.Due(now) {
			continue
		}
		if !m.calendar.IsOpenAt(a.Exchange, now) {
			continue
		}
		eligible = append(eligible, a)
	}
	return eligible
}

// DedupeTickers collapses the alerts' tickers to a unique list in
// first-seen order. Several alerts may watch the same ticker.
func DedupeTickers(alerts []model.Alert) []string {
	seen := make(map[string]struct{}, len(alerts))
	var tickers []string
	for _, a := range alerts {
		if _, ok := seen[a.Ticker]; ok {
			continue
		}
		seen[a.Ticker] = struct{}{}
		tickers = append(tickers, a.Ticker)
	}
	return tickers
}

// RunFastCycle refreshes due alerts on the free tiers: domestic alerts
// one quote at a time, foreign alerts in a single free batch call.
func (m *Monitor) RunFastCycle(ctx context.Context) {
	now := m.now()

	alerts, err := m.store.ListActiveAlerts(ctx)
	if err != nil {
		m.logger.Error("fast cycle: list alerts", "error", err)
		return
	}

	domestic, foreign := PartitionDue(alerts, now)
	if len(domestic) == 0 && len(foreign) == 0 {
		return
	}
	m.logger.Debug("fast cycle", "domestic_due", len(domestic), "foreign_due", len(foreign))

	for _, alert := range domestic {
		quote := m.domestic.FetchOne(ctx, alert.Ticker)
		if quote == nil {
			continue
		}
		if err := m.apply(ctx, alert, quote.Price, now); err != nil {
			m.logger.Error("fast cycle aborted", "error", err)
			return
		}
	}

	if len(foreign) > 0 {
		prices := m.free.FetchMany(ctx, DedupeTickers(foreign))
		if err := m.applyBatch(ctx, foreign, prices, now); err != nil {
			m.logger.Error("fast cycle aborted", "error", err)
		}
	}
}

// RunMeteredCycle refreshes foreign alerts through the metered tier.
// Skipped outright when no foreign market is open, spending nothing.
func (m *Monitor) RunMeteredCycle(ctx context.Context) {
	now := m.now()

	if !m.calendar.AnyForeignOpenAt(now) {
		m.logger.Debug("metered cycle skipped, all foreign markets closed")
		return
	}

	alerts, err := m.store.ListActiveAlerts(ctx)
	if err != nil {
		m.logger.Error("metered cycle: list alerts", "error", err)
		return
	}

	eligible := m.MeteredEligible(alerts, now)
	if len(eligible) == 0 {
		return
	}

	prices := m.metered.FetchMany(ctx, DedupeTickers(eligible))
	if err := m.applyBatch(ctx, eligible, prices, now); err != nil {
		m.logger.Error("metered cycle aborted", "error", err)
	}
}

// applyBatch applies a ticker→price map to every alert that got a price.
func (m *Monitor) applyBatch(ctx context.Context, alerts []model.Alert, prices map[string]decimal.Decimal, now time.Time) error {
	for _, alert := range alerts {
		price, ok := prices[alert.Ticker]
		if !ok {
			continue
		}
		if err := m.apply(ctx, alert, price, now); err != nil {
			return err
		}
	}
	return nil
}

// apply records a fresh observation and evaluates the trigger.
//
// The bookkeeping write is unconditional: a stale close price fetched
// outside trading hours is still worth recording. Trigger evaluation
// is gated on the alert's exchange being open, so a weekend quote can
// never fire. On a crossing the alert is deactivated first; only then
// is the notification dispatched, and a delivery failure does not undo
// the latch.
func (m *Monitor) apply(ctx context.Context, alert model.Alert, price decimal.Decimal, now time.Time) error {
	if err := m.store.UpdateAlertCheck(ctx, alert.ID, price, now); err != nil {
		return fmt.Errorf("update alert %s: %w", alert.ID, err)
	}

	if !m.calendar.IsOpenAt(alert.Exchange, now) {
		return nil
	}
	if !alert.Direction.Crossed(price, alert.TargetPrice) {
		return nil
	}

	if err := m.store.DeactivateAlert(ctx, alert.ID); err != nil {
		return fmt.Errorf("deactivate alert %s: %w", alert.ID, err)
	}

	m.logger.Info("alert triggered",
		"alert_id", alert.ID,
		"ticker", alert.Ticker,
		"direction", alert.Direction,
		"target", alert.TargetPrice.String(),
		"price", price.String(),
	)

	event := model.TriggerEvent{Alert: alert, Price: price, At: now}
	for _, n := range m.notifiers {
		if err := n.Send(ctx, event); err != nil {
			m.logger.Error("trigger notification failed",
				"notifier", n.Name(), "alert_id", alert.ID, "error", err)
		}
	}
	return nil
}
