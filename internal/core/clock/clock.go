// Package clock derives a user's in-fiction historical date from the real
// time elapsed since their start date.
//
// One simulated day passes for every 365 real days:
//
//	current = start + floor(days(now - start) / 365) days
//
// All arithmetic runs on UTC calendar dates so the result never depends on
// the caller's time zone.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// RealDaysPerDay is the number of real days that advance the clock by one day.
	RealDaysPerDay = 365

	// RefreshInterval is how often a running Clock recomputes its date.
	RefreshInterval = 24 * time.Hour

	dateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

// DefaultStart is used when a user has no stored start date.
var DefaultStart = time.Date(1789, time.May, 5, 0, 0, 0, 0, time.UTC)

// ParseDate parses an ISO date (YYYY-MM-DD) as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Truncate(t).Format(dateLayout)
}

// Truncate returns UTC midnight of t's UTC calendar day.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b. Unix seconds are used
// instead of time.Duration, which overflows past ~292 years.
func DaysBetween(a, b time.Time) int64 {
	return (Truncate(b).Unix() - Truncate(a).Unix()) / secondsPerDay
}

// StartOrDefault returns the stored start date, or def when none is stored.
func StartOrDefault(start *time.Time, def time.Time) time.Time {
	if start == nil || start.IsZero() {
		return Truncate(def)
	}
	return Truncate(*start)
}

// Current computes the simulated date for start at wall-clock time now.
// A now before start yields start.
func Current(start, now time.Time) time.Time {
	s := Truncate(start)
	days := DaysBetween(s, now)
	if days < 0 {
		days = 0
	}
	return s.AddDate(0, 0, int(days/RealDaysPerDay))
}

// NextAdvance returns the first wall-clock day on which Current moves past
// its value at now.
func NextAdvance(start, now time.Time) time.Time {
	s := Truncate(start)
	days := DaysBetween(s, now)
	if days < 0 {
		days = 0
	}
	next := (days/RealDaysPerDay + 1) * RealDaysPerDay
	return time.Unix(s.Unix()+next*secondsPerDay, 0).UTC()
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the wall-clock source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithInterval sets how often Run recomputes the date.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) { c.interval = d }
}

// WithOnAdvance registers a callback fired by Refresh whenever the date moves.
func WithOnAdvance(fn func(time.Time)) Option {
	return func(c *Clock) { c.onAdvance = fn }
}

// Clock holds one user's virtual date and keeps it current while a session
// stays open. The date never decreases unless the start date changes.
type Clock struct {
	mu        sync.RWMutex
	start     time.Time
	current   time.Time
	now       func() time.Time
	interval  time.Duration
	onAdvance func(time.Time)
}

// New creates a Clock for start and computes its first date.
func New(start time.Time, opts ...Option) *Clock {
	c := &Clock{
		start:    Truncate(start),
		now:      time.Now,
		interval: RefreshInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current = Current(c.start, c.now())
	return c
}

// Start returns the start date the clock runs from.
func (c *Clock) Start() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start
}

// Today returns the last computed virtual date.
func (c *Clock) Today() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Refresh recomputes the date and reports whether it changed.
func (c *Clock) Refresh() (time.Time, bool) {
	c.mu.Lock()
	next := Current(c.start, c.now())
	if !next.After(c.current) {
		cur := c.current
		c.mu.Unlock()
		return cur, false
	}
	c.current = next
	fn := c.onAdvance
	c.mu.Unlock()

	if fn != nil {
		fn(next)
	}
	return next, true
}

// SetStart replaces the start date, e.g. after a settings change, and
// reports whether the virtual date differs from before.
func (c *Clock) SetStart(start time.Time) (time.Time, bool) {
	c.mu.Lock()
	c.start = Truncate(start)
	next := Current(c.start, c.now())
	changed := !next.Equal(c.current)
	c.current = next
	fn := c.onAdvance
	c.mu.Unlock()

	if changed && fn != nil {
		fn(next)
	}
	return next, changed
}

// Run refreshes the clock every interval until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh()
		}
	}
}
