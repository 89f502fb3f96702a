// Package session answers the single question callers must ask before
// submitting orders: is trading currently permitted. The registry core
// never consults it.
package session

import "time"

// Calendar provides market-hours awareness for a single cash-equity
// session (weekdays 09:30–16:00 exchange time). Holidays are not
// modeled; callers needing holiday awareness can layer a deny-list
// risk check on top.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar creates a Calendar for the named IANA time zone, e.g.
// "America/New_York".
func NewCalendar(timezone string) (*Calendar, error) {
	return NewCalendarWithClock(timezone, time.Now)
}

// NewCalendarWithClock is NewCalendar with an injected clock, for
// tests and replay tooling.
func NewCalendarWithClock(timezone string, now func() time.Time) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Calendar{loc: loc, now: now}, nil
}

// IsOpen reports whether the market is open right now.
func (c *Calendar) IsOpen() bool {
	return c.IsOpenAt(c.now())
}

// IsOpenAt reports whether the market is open at time t.
func (c *Calendar) IsOpenAt(t time.Time) bool {
	local := t.In(c.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	const open = 9*60 + 30
	const close = 16 * 60
	return minutes >= open && minutes < close
}
