// Package billing implements timezone-correct calendar arithmetic for the
// billing lifecycle. Every function is pure; the only state a Clock carries
// is the business timezone all dates are observed in. Doing this math naively
// in UTC shifts dates by one day for negative-offset zones, which is exactly
// the bug this package exists to prevent.
package billing

import (
	"time"

	"github.com/relaycrm/relaycrm/internal/types"
)

// BillingHour is the business-local time-of-day every calendar instant is
// pinned to. Pinning to mid-day makes the resolved date immune to later UTC
// conversion drift; this is policy, not an approximation.
const BillingHour = 12

// Clock performs billing date arithmetic in a fixed business timezone.
type Clock struct {
	loc *time.Location
}

func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// NewClockFromTimezone loads the named business timezone.
func NewClockFromTimezone(name string) (*Clock, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return NewClock(loc), nil
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// At returns the billing instant (billing noon, business-local) for the
// given calendar date.
func (c *Clock) At(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, BillingHour, 0, 0, 0, c.loc)
}

// ResolveAnchorDay extracts the calendar day-of-month of an instant as
// observed in the business timezone, clamped to maxDay so every month,
// February included, can honour the anchor.
func (c *Clock) ResolveAnchorDay(t time.Time, maxDay int) int {
	day := t.In(c.loc).Day()
	if day > maxDay {
		return maxDay
	}
	return day
}

// NextBillingDate adds the cycle interval to periodStart's month and sets
// the day-of-month to min(anchorDay, daysInTargetMonth), at billing noon.
// Anchor days outside [1, 28] are a caller contract violation: callers clamp
// via ResolveAnchorDay before ever storing an anchor.
func (c *Clock) NextBillingDate(periodStart time.Time, anchorDay int, cycle types.BillingCycle) time.Time {
	local := periodStart.In(c.loc)
	year, month := shiftMonths(local.Year(), local.Month(), cycle.Months())

	day := anchorDay
	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return c.At(year, month, day)
}

// PeriodEnd returns the same calendar day one cycle later, clamped only to
// the end of the target month. Used for period boundaries, not billing
// triggers, so the anchor day does not apply.
func (c *Clock) PeriodEnd(periodStart time.Time, cycle types.BillingCycle) time.Time {
	local := periodStart.In(c.loc)
	year, month := shiftMonths(local.Year(), local.Month(), cycle.Months())

	day := local.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return c.At(year, month, day)
}

// IsOverdue reports whether dueDate's calendar day has fully passed as of
// asOf, at calendar-day granularity in the business timezone.
func (c *Clock) IsOverdue(dueDate, asOf time.Time) bool {
	return c.DaysOverdue(dueDate, asOf) > 0
}

// DaysOverdue returns the number of whole calendar days asOf is past
// dueDate, time-of-day stripped, in the business timezone. Zero or negative
// means not overdue.
func (c *Clock) DaysOverdue(dueDate, asOf time.Time) int {
	due := c.truncateToDay(dueDate)
	now := c.truncateToDay(asOf)
	return int(now.Sub(due).Hours() / 24)
}

// DayBounds returns the half-open [start, end) interval of t's calendar day
// in the business timezone. The renewal job uses this to select
// subscriptions whose next billing date falls "today".
func (c *Clock) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 0, 1)
}

// SameDay reports whether the two instants fall on the same business
// calendar day.
func (c *Clock) SameDay(a, b time.Time) bool {
	al, bl := a.In(c.loc), b.In(c.loc)
	return al.Year() == bl.Year() && al.Month() == bl.Month() && al.Day() == bl.Day()
}

// truncateToDay normalizes an instant to its business-local calendar day
// rendered at UTC midnight, so day differences are exact divisions
// regardless of DST shifts in the business zone.
func (c *Clock) truncateToDay(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// shiftMonths advances a year/month pair by the given number of months,
// normalizing past December.
func shiftMonths(year int, month time.Month, months int) (int, time.Month) {
	m := int(month) + months
	for m > 12 {
		m -= 12
		year++
	}
	for m < 1 {
		m += 12
		year--
	}
	return year, time.Month(m)
}

// daysInMonth returns the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
