package market

import "time"

// Clock answers whether the exchange is open, using regular US equity
// session hours (09:30-16:00, Monday-Friday) in the configured timezone.
// Holidays are not modeled.
type Clock struct {
	loc *time.Location
}

// NewClock creates a market clock in the given timezone
func NewClock(loc *time.Location) *Clock {
	return &Clock{loc: loc}
}

// Status reports the market state at the given instant
func (c *Clock) Status(now time.Time) Status {
	now = now.In(c.loc)

	open := c.sessionOpen(now)
	close := c.sessionClose(now)

	if isWeekday(now) && !now.Before(open) && now.Before(close) {
		return Status{IsOpen: true, NextClose: &close}
	}

	next := c.nextOpen(now)
	return Status{IsOpen: false, NextOpen: &next}
}

func (c *Clock) sessionOpen(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, c.loc)
}

func (c *Clock) sessionClose(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, c.loc)
}

func (c *Clock) nextOpen(now time.Time) time.Time {
	day := now
	if !isWeekday(day) || !now.Before(c.sessionOpen(day)) {
		day = day.AddDate(0, 0, 1)
	}
	for !isWeekday(day) {
		day = day.AddDate(0, 0, 1)
	}
	return c.sessionOpen(day)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}
