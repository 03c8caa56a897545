package quota

import (
	"sync"
	"time"
)

// Ledger tracks the metered provider's finite daily credit spend.
// One request for N symbols costs N credits. A reserve floor is held
// back from batch work so ticker-search calls always have credits
// left, no matter how aggressively the periodic batch cycle spends.
type Ledger struct {
	dailyLimit int
	reserve    int

	mu   sync.Mutex
	day  time.Time // midnight UTC of the day `used` belongs to
	used int

	now func() time.Time
}

// LedgerStatus is a point-in-time snapshot for logs and the status API.
type LedgerStatus struct {
	Date              string `json:"date"`
	DailyLimit        int    `json:"daily_limit"`
	Used              int    `json:"used"`
	Remaining         int    `json:"remaining"`
	Reserve           int    `json:"reserve"`
	AvailableForBatch int    `json:"available_for_batch"`
}

// NewLedger creates a ledger with the given daily quota and reserve floor.
func NewLedger(dailyLimit, reserve int) *Ledger {
	return &Ledger{
		dailyLimit: dailyLimit,
		reserve:    reserve,
		now:        time.Now,
	}
}

// rollover resets the spend on the first touch of a new calendar date.
// Callers hold mu.
func (g *Ledger) rollover() {
	today := g.today()
	if !g.day.Equal(today) {
		g.day = today
		g.used = 0
	}
}

func (g *Ledger) today() time.Time {
	y, m, d := g.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Remaining returns how many credits are left today.
func (g *Ledger) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	return g.dailyLimit - g.used
}

// Reserve returns the floor held back for search calls.
func (g *Ledger) Reserve() int {
	return g.reserve
}

// AvailableForBatch returns the credits the batch cycle may spend:
// whatever remains above the reserve floor, never negative.
func (g *Ledger) AvailableForBatch() int {
	remaining := g.Remaining()
	if remaining <= g.reserve {
		return 0
	}
	return remaining - g.reserve
}

// Charge debits n credits. The debit follows request shape, not
// response completeness: a chunk of 8 symbols costs 8 even if the
// provider priced only 3 of them. Callers pre-check Remaining or
// AvailableForBatch before charging.
func (g *Ledger) Charge(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	g.used += n
}

// Status returns a consistent snapshot of the ledger.
func (g *Ledger) Status() LedgerStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()

	remaining := g.dailyLimit - g.used
	available := remaining - g.reserve
	if available < 0 {
		available = 0
	}
	return LedgerStatus{
		Date:              g.day.Format("2006-01-02"),
		DailyLimit:        g.dailyLimit,
		Used:              g.used,
		Remaining:         remaining,
		Reserve:           g.reserve,
		AvailableForBatch: available,
	}
}
