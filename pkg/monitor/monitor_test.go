package monitor_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/pkg/marketcal"
	"stockwatch/pkg/model"
	"stockwatch/pkg/monitor"
	"stockwatch/pkg/notify"
	"stockwatch/pkg/providers"
	"stockwatch/pkg/storage"
)

// Monday noon UTC, well inside every test session.
var monday = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// saturday closes every exchange regardless of session hours.
var saturday = time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// testCalendar trades all day on MOEX and OPENX; CLOSEDX trades only
// a small early-morning window.
func testCalendar(t *testing.T) *marketcal.Calendar {
	t.Helper()
	cal, err := marketcal.New(map[string]marketcal.Session{
		"MOEX":    {TZ: "UTC", Open: marketcal.ClockTime{Hour: 0, Minute: 30}, Close: marketcal.ClockTime{Hour: 23, Minute: 0}},
		"OPENX":   {TZ: "UTC", Open: marketcal.ClockTime{Hour: 0, Minute: 30}, Close: marketcal.ClockTime{Hour: 23, Minute: 0}},
		"CLOSEDX": {TZ: "UTC", Open: marketcal.ClockTime{Hour: 1, Minute: 0}, Close: marketcal.ClockTime{Hour: 2, Minute: 0}},
	}, []string{"OPENX", "CLOSEDX"})
	require.NoError(t, err)
	return cal
}

// fakeStore is an in-memory Storage recording the calls the monitor makes.
type fakeStore struct {
	alerts      map[string]*model.Alert
	updates     []string
	deactivated []string
	failUpdates bool
}

func newFakeStore(alerts ...model.Alert) *fakeStore {
	s := &fakeStore{alerts: make(map[string]*model.Alert)}
	for i := range alerts {
		a := alerts[i]
		s.alerts[a.ID] = &a
	}
	return s
}

func (s *fakeStore) CreateAlert(_ context.Context, a *model.Alert) error {
	s.alerts[a.ID] = a
	return nil
}

func (s *fakeStore) GetAlert(_ context.Context, id string) (*model.Alert, error) {
	a, ok := s.alerts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) ListActiveAlerts(context.Context) ([]model.Alert, error) {
	var out []model.Alert
	for _, a := range s.alerts {
		if a.Active {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListOwnerAlerts(_ context.Context, ownerID int64) ([]model.Alert, error) {
	var out []model.Alert
	for _, a := range s.alerts {
		if a.Active && a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateAlertCheck(_ context.Context, id string, price decimal.Decimal, at time.Time) error {
	if s.failUpdates {
		return errors.New("database is locked")
	}
	s.updates = append(s.updates, id)
	if a, ok := s.alerts[id]; ok {
		a.LastPrice = decimal.NewNullDecimal(price)
		a.LastChecked = at
	}
	return nil
}

func (s *fakeStore) DeactivateAlert(_ context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	if a, ok := s.alerts[id]; ok {
		a.Active = false
	}
	return nil
}

func (s *fakeStore) DeleteAlert(_ context.Context, id string, _ int64) error {
	delete(s.alerts, id)
	return nil
}

func (s *fakeStore) RetargetAlert(_ context.Context, id string, _ int64, target decimal.Decimal, dir model.Direction, _ decimal.Decimal) error {
	if a, ok := s.alerts[id]; ok {
		a.TargetPrice = target
		a.Direction = dir
		a.Active = true
		a.LastChecked = time.Time{}
	}
	return nil
}

func (s *fakeStore) GetOwnerSettings(_ context.Context, ownerID int64) (*model.OwnerSettings, error) {
	def := model.DefaultOwnerSettings(ownerID)
	return &def, nil
}

func (s *fakeStore) UpsertOwnerSettings(context.Context, *model.OwnerSettings) error { return nil }

func (s *fakeStore) Close() error { return nil }

type fakeQuoter struct {
	prices map[string]string
	calls  []string
}

func (f *fakeQuoter) Name() string { return "fake-single" }

func (f *fakeQuoter) FetchOne(_ context.Context, ticker string) *model.Quote {
	f.calls = append(f.calls, ticker)
	raw, ok := f.prices[ticker]
	if !ok {
		return nil
	}
	return &model.Quote{Ticker: ticker, Price: d(raw), Currency: "RUB", Exchange: "MOEX"}
}

type fakeBatcher struct {
	prices map[string]string
	calls  [][]string
}

func (f *fakeBatcher) Name() string { return "fake-batch" }

func (f *fakeBatcher) FetchMany(_ context.Context, tickers []string) map[string]decimal.Decimal {
	f.calls = append(f.calls, tickers)
	out := make(map[string]decimal.Decimal)
	for _, t := range tickers {
		if raw, ok := f.prices[t]; ok {
			out[t] = d(raw)
		}
	}
	return out
}

type captureNotifier struct {
	events []model.TriggerEvent
	err    error
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Send(_ context.Context, e model.TriggerEvent) error {
	c.events = append(c.events, e)
	return c.err
}

func alertFixture(id, ticker, exchange, target string, dir model.Direction) model.Alert {
	return model.Alert{
		ID:               id,
		OwnerID:          1,
		Ticker:           ticker,
		Exchange:         exchange,
		CompanyName:      ticker,
		TargetPrice:      d(target),
		Currency:         "USD",
		Direction:        dir,
		Active:           true,
		DomesticInterval: 60 * time.Second,
		ForeignInterval:  180 * time.Second,
	}
}

func newMonitor(store *fakeStore, cal *marketcal.Calendar, domestic providers.SingleQuoter, free, metered providers.BatchPricer, notifiers []notify.Notifier, now time.Time) *monitor.Monitor {
	return monitor.New(monitor.Config{
		Storage:   store,
		Domestic:  domestic,
		Free:      free,
		Metered:   metered,
		Calendar:  cal,
		Notifiers: notifiers,
		Logger:    discard(),
		Now:       func() time.Time { return now },
	})
}

func TestPartitionDueRespectsIntervals(t *testing.T) {
	base := monday

	never := alertFixture("a1", "SBER", "MOEX", "300", model.DirectionAbove)

	fresh := alertFixture("a2", "GAZP", "MOEX", "150", model.DirectionAbove)
	fresh.LastChecked = base.Add(-30 * time.Second)

	stale := alertFixture("a3", "LKOH", "MOEX", "7000", model.DirectionAbove)
	stale.LastChecked = base.Add(-61 * time.Second)

	foreign := alertFixture("a4", "AAPL", "OPENX", "190", model.DirectionAbove)
	foreign.LastChecked = base.Add(-181 * time.Second)

	domestic, foreignDue := monitor.PartitionDue([]model.Alert{never, fresh, stale, foreign}, base)

	ids := func(alerts []model.Alert) []string {
		var out []string
		for _, a := range alerts {
			out = append(out, a.ID)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"a1", "a3"}, ids(domestic))
	assert.Equal(t, []string{"a4"}, ids(foreignDue))
}

func TestDedupeTickersFirstSeenOrder(t *testing.T) {
	alerts := []model.Alert{
		alertFixture("a1", "AAPL", "OPENX", "190", model.DirectionAbove),
		alertFixture("a2", "MSFT", "OPENX", "400", model.DirectionBelow),
		alertFixture("a3", "AAPL", "OPENX", "210", model.DirectionAbove),
	}
	assert.Equal(t, []string{"AAPL", "MSFT"}, monitor.DedupeTickers(alerts))
}

func TestFastCycleTriggersAndLatches(t *testing.T) {
	alert := alertFixture("a1", "SBER", "MOEX", "300", model.DirectionAbove)
	store := newFakeStore(alert)
	quoter := &fakeQuoter{prices: map[string]string{"SBER": "300"}}
	capture := &captureNotifier{}

	m := newMonitor(store, testCalendar(t), quoter, &fakeBatcher{}, &fakeBatcher{}, []notify.Notifier{capture}, monday)
	m.RunFastCycle(context.Background())

	assert.Equal(t, []string{"a1"}, store.updates)
	assert.Equal(t, []string{"a1"}, store.deactivated, "boundary price triggers inclusively")

	require.Len(t, capture.events, 1)
	assert.Equal(t, "SBER", capture.events[0].Alert.Ticker)
	assert.Equal(t, "300", capture.events[0].Price.String())

	// The latch holds: the next cycle sees no active alerts.
	m2 := newMonitor(store, testCalendar(t), quoter, &fakeBatcher{}, &fakeBatcher{}, []notify.Notifier{capture}, monday.Add(2*time.Minute))
	m2.RunFastCycle(context.Background())
	assert.Len(t, capture.events, 1)
	assert.Len(t, store.deactivated, 1)
}

func TestFastCycleBelowTarget(t *testing.T) {
	alert := alertFixture("a1", "SBER", "MOEX", "300", model.DirectionAbove)
	store := newFakeStore(alert)
	quoter := &fakeQuoter{prices: map[string]string{"SBER": "299.99"}}
	capture := &captureNotifier{}

	m := newMonitor(store, testCalendar(t), quoter, &fakeBatcher{}, &fakeBatcher{}, []notify.Notifier{capture}, monday)
	m.RunFastCycle(context.Background())

	assert.Equal(t, []string{"a1"}, store.updates)
	assert.Empty(t, store.deactivated)
	assert.Empty(t, capture.events)
}

func TestClosedMarketUpdatesButNeverFires(t *testing.T) {
	alert := alertFixture("a1", "0700.HK", "CLOSEDX", "300", model.DirectionAbove)
	store := newFakeStore(alert)
	free := &fakeBatcher{prices: map[string]string{"0700.HK": "365"}}
	capture := &captureNotifier{}

	m := newMonitor(store, testCalendar(t), &fakeQuoter{}, free, &fakeBatcher{}, []notify.Notifier{capture}, monday)
	m.RunFastCycle(context.Background())

	assert.Equal(t, []string{"a1"}, store.updates, "stale price is still recorded")
	assert.Empty(t, store.deactivated)
	assert.Empty(t, capture.events)

	got, err := store.GetAlert(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "365", got.LastPrice.Decimal.String())
	assert.Equal(t, monday, got.LastChecked)
}

func TestNotifierFailureDoesNotUndoLatch(t *testing.T) {
	alert := alertFixture("a1", "SBER", "MOEX", "300", model.DirectionBelow)
	store := newFakeStore(alert)
	quoter := &fakeQuoter{prices: map[string]string{"SBER": "250"}}
	capture := &captureNotifier{err: errors.New("bot was blocked by the user")}

	m := newMonitor(store, testCalendar(t), quoter, &fakeBatcher{}, &fakeBatcher{}, []notify.Notifier{capture}, monday)
	m.RunFastCycle(context.Background())

	assert.Equal(t, []string{"a1"}, store.deactivated)
	got, err := store.GetAlert(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestFastCycleForeignBatchSharedTicker(t *testing.T) {
	a1 := alertFixture("a1", "AAPL", "OPENX", "150", model.DirectionAbove)
	a2 := alertFixture("a2", "AAPL", "OPENX", "500", model.DirectionAbove)
	store := newFakeStore(a1, a2)
	free := &fakeBatcher{prices: map[string]string{"AAPL": "189.3"}}
	capture := &captureNotifier{}

	m := newMonitor(store, testCalendar(t), &fakeQuoter{}, free, &fakeBatcher{}, []notify.Notifier{capture}, monday)
	m.RunFastCycle(context.Background())

	require.Len(t, free.calls, 1)
	assert.Equal(t, []string{"AAPL"}, free.calls[0], "one fetch serves both alerts")

	assert.ElementsMatch(t, []string{"a1", "a2"}, store.updates)
	assert.Equal(t, []string{"a1"}, store.deactivated, "only the crossed alert fires")
}

func TestMeteredCycleSkippedWhenForeignClosed(t *testing.T) {
	alert := alertFixture("a1", "AAPL", "OPENX", "190", model.DirectionAbove)
	store := newFakeStore(alert)
	metered := &fakeBatcher{prices: map[string]string{"AAPL": "200"}}

	m := newMonitor(store, testCalendar(t), &fakeQuoter{}, &fakeBatcher{}, metered, nil, saturday)
	m.RunMeteredCycle(context.Background())

	assert.Empty(t, metered.calls, "closed markets mean zero network calls")
	assert.Empty(t, store.updates)
}

func TestMeteredEligibleRequiresOwnExchangeOpen(t *testing.T) {
	open := alertFixture("a1", "AAPL", "OPENX", "190", model.DirectionAbove)
	closed := alertFixture("a2", "0700.HK", "CLOSEDX", "300", model.DirectionAbove)
	domestic := alertFixture("a3", "SBER", "MOEX", "300", model.DirectionAbove)
	store := newFakeStore(open, closed, domestic)
	metered := &fakeBatcher{prices: map[string]string{"AAPL": "200"}}

	m := newMonitor(store, testCalendar(t), &fakeQuoter{}, &fakeBatcher{}, metered, nil, monday)
	m.RunMeteredCycle(context.Background())

	require.Len(t, metered.calls, 1)
	assert.Equal(t, []string{"AAPL"}, metered.calls[0])
	assert.Equal(t, []string{"a1"}, store.updates)
}

func TestCycleAbortsOnPersistenceFailure(t *testing.T) {
	alert := alertFixture("a1", "SBER", "MOEX", "300", model.DirectionAbove)
	store := newFakeStore(alert)
	store.failUpdates = true
	quoter := &fakeQuoter{prices: map[string]string{"SBER": "310"}}
	capture := &captureNotifier{}

	m := newMonitor(store, testCalendar(t), quoter, &fakeBatcher{}, &fakeBatcher{}, []notify.Notifier{capture}, monday)
	m.RunFastCycle(context.Background())

	assert.Empty(t, store.deactivated, "no trigger without a recorded observation")
	assert.Empty(t, capture.events)
}
