// Package quota protects the metered price provider: a sliding-window
// request limiter and a daily credit ledger. Both are plain stateful
// values owned by the daemon and injected into the provider client, so
// tests can drive them with a fake clock.
package quota

import (
	"context"
	"sync"
	"time"
)

const (
	window = time.Minute

	// safetyMargin pads the computed wait so the oldest admission is
	// strictly outside the window when we wake up.
	safetyMargin = 50 * time.Millisecond
)

// Limiter admits at most maxPerMinute callers within any trailing
// 60-second window. Admit blocks the excess callers.
type Limiter struct {
	maxPerMinute int

	mu     sync.Mutex
	stamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter for the given per-minute cap.
func NewLimiter(maxPerMinute int) *Limiter {
	if maxPerMinute < 1 {
		maxPerMinute = 1
	}
	return &Limiter{
		maxPerMinute: maxPerMinute,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Admit records one admission, waiting first if the window is full.
// Callers are serialized: concurrent batch chunks cannot race past the
// cap. Returns early only when ctx is canceled.
func (l *Limiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.stamps) >= l.maxPerMinute {
		wait := window - now.Sub(l.stamps[0]) + safetyMargin
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		now = l.now()
		l.prune(now)
	}

	l.stamps = append(l.stamps, now)
	return nil
}

// prune drops stamps older than the window. Callers hold mu.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.stamps) && now.Sub(l.stamps[cut]) >= window {
		cut++
	}
	if cut > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[cut:]...)
	}
}

// occupancy returns the current window fill, for tests and logs.
func (l *Limiter) occupancy() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}
