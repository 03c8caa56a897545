// Package marketcal answers "is this exchange trading right now".
//
// Only weekdays and fixed session hours are modeled. Exchange holidays
// are deliberately not: the monitoring core tolerates a spurious open
// day far better than a missed one, and the fail-open rule below points
// the same way.
package marketcal

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClockTime is a wall-clock instant within a session's local day.
type ClockTime struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

func (c ClockTime) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// Interval is a [Start, End) sub-range of a session, used for lunch breaks.
type Interval struct {
	Start ClockTime `yaml:"start"`
	End   ClockTime `yaml:"end"`
}

// Session describes one exchange's trading day.
type Session struct {
	TZ    string    `yaml:"tz"`
	Open  ClockTime `yaml:"open"`
	Close ClockTime `yaml:"close"`
	Lunch *Interval `yaml:"lunch,omitempty"`

	loc *time.Location
}

// Calendar resolves exchange codes to trading sessions.
type Calendar struct {
	sessions map[string]Session
	foreign  []string // exchanges consulted by AnyForeignOpen
	buffer   time.Duration
}

// DefaultBuffer widens every session on both ends to absorb clock skew
// and pre/post-open prints.
const DefaultBuffer = 10 * time.Minute

// Default returns a calendar covering the exchanges the monitor knows
// about out of the box.
func Default() *Calendar {
	ny := Session{TZ: "America/New_York", Open: ClockTime{9, 30}, Close: ClockTime{16, 0}}
	hk := Session{
		TZ:    "Asia/Hong_Kong",
		Open:  ClockTime{9, 30},
		Close: ClockTime{16, 0},
		Lunch: &Interval{Start: ClockTime{12, 0}, End: ClockTime{13, 0}},
	}

	cal, err := New(map[string]Session{
		"MOEX":      {TZ: "Europe/Moscow", Open: ClockTime{10, 0}, Close: ClockTime{18, 40}},
		"NYSE":      ny,
		"NASDAQ":    ny,
		"NYSE ARCA": ny,
		"NYSE MKT":  ny,
		"CBOE":      ny,
		"HKEX":      hk,
		"HKSE":      hk,
	}, []string{"NYSE", "HKEX"})
	if err != nil {
		// The built-in table only references IANA zones shipped with Go.
		panic(err)
	}
	return cal
}

// New builds a calendar from explicit sessions. foreign lists the
// exchange codes AnyForeignOpen consults.
func New(sessions map[string]Session, foreign []string) (*Calendar, error) {
	resolved := make(map[string]Session, len(sessions))
	for code, s := range sessions {
		loc, err := time.LoadLocation(s.TZ)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: load timezone %q: %w", code, s.TZ, err)
		}
		s.loc = loc
		resolved[normalize(code)] = s
	}
	norm := make([]string, 0, len(foreign))
	for _, code := range foreign {
		norm = append(norm, normalize(code))
	}
	return &Calendar{sessions: resolved, foreign: norm, buffer: DefaultBuffer}, nil
}

// LoadFile merges session overrides from a YAML file into the default
// calendar. The file maps exchange codes to sessions and optionally
// replaces the foreign gate set.
func LoadFile(path string) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}

	var file struct {
		Exchanges map[string]Session `yaml:"exchanges"`
		Foreign   []string           `yaml:"foreign"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse calendar file: %w", err)
	}

	base := Default()
	merged := make(map[string]Session, len(base.sessions)+len(file.Exchanges))
	for code, s := range base.sessions {
		s.TZ = s.loc.String()
		merged[code] = s
	}
	for code, s := range file.Exchanges {
		merged[normalize(code)] = s
	}

	foreign := base.foreign
	if len(file.Foreign) > 0 {
		foreign = file.Foreign
	}
	return New(merged, foreign)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsOpen reports whether the exchange is in its trading session now.
func (c *Calendar) IsOpen(exchange string) bool {
	return c.IsOpenAt(exchange, time.Now())
}

// IsOpenAt is IsOpen at an explicit instant.
//
// Unknown exchange codes resolve to open: suppressing a real trigger
// is worse than an occasional spurious evaluation.
func (c *Calendar) IsOpenAt(exchange string, at time.Time) bool {
	s, ok := c.sessions[normalize(exchange)]
	if !ok {
		return true
	}

	local := at.In(s.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}

	open := s.Open.on(local).Add(-c.buffer)
	close := s.Close.on(local).Add(c.buffer)
	if local.Before(open) || local.After(close) {
		return false
	}

	if s.Lunch != nil {
		start := s.Lunch.Start.on(local)
		end := s.Lunch.End.on(local)
		if !local.Before(start) && local.Before(end) {
			return false
		}
	}
	return true
}

// AnyForeignOpen reports whether at least one exchange in the foreign
// gate set is trading now. It gates the metered provider cycle.
func (c *Calendar) AnyForeignOpen() bool {
	return c.AnyForeignOpenAt(time.Now())
}

// AnyForeignOpenAt is AnyForeignOpen at an explicit instant.
func (c *Calendar) AnyForeignOpenAt(at time.Time) bool {
	for _, code := range c.foreign {
		if c.IsOpenAt(code, at) {
			return true
		}
	}
	return false
}

// UntilOpen returns how long until the exchange next opens. Weekends
// are skipped; holidays are not modeled. Returns 0 for unknown
// exchanges and when the session is already open.
func (c *Calendar) UntilOpen(exchange string) time.Duration {
	return c.UntilOpenAt(exchange, time.Now())
}

// UntilOpenAt is UntilOpen at an explicit instant.
func (c *Calendar) UntilOpenAt(exchange string, at time.Time) time.Duration {
	s, ok := c.sessions[normalize(exchange)]
	if !ok {
		return 0
	}
	if c.IsOpenAt(exchange, at) {
		return 0
	}

	local := at.In(s.loc)
	if open := s.Open.on(local); local.Before(open) && isWeekday(local) {
		return open.Sub(local)
	}
	for days := 1; ; days++ {
		candidate := s.Open.on(local.AddDate(0, 0, days))
		if isWeekday(candidate) {
			return candidate.Sub(local)
		}
	}
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Exchanges returns every known exchange code, sorted.
func (c *Calendar) Exchanges() []string {
	codes := make([]string, 0, len(c.sessions))
	for code := range c.sessions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
