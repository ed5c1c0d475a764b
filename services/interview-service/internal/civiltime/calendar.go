// Package civiltime converts between instants and the civil dates and wall-clock
// times of a single fixed deployment zone. Scheduling code never compares a raw
// instant with an "HH:mm" value without going through a Calendar.
package civiltime

import (
	"time"

	"cloud.google.com/go/civil"
)

type Calendar struct {
	loc *time.Location
}

// NewCalendar uses loc for every conversion; a nil loc means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// FixedOffset builds a Calendar for a constant UTC offset in minutes.
func FixedOffset(offsetMinutes int) Calendar {
	sign := "+"
	abs := offsetMinutes
	if abs < 0 {
		sign = "-"
		abs = -abs
	}
	name := "UTC" + sign + NewTimeOfDay(abs/60, abs%60).String()
	return NewCalendar(time.FixedZone(name, offsetMinutes*60))
}

func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

func (c Calendar) DateOf(t time.Time) civil.Date {
	return civil.DateOf(c.In(t))
}

// TimeOf truncates t to the minute in the calendar's zone.
func (c Calendar) TimeOf(t time.Time) TimeOfDay {
	local := c.In(t)
	return NewTimeOfDay(local.Hour(), local.Minute())
}

// Combine builds the instant for a civil date and wall-clock time. DayEnd maps to
// midnight of the following day.
func (c Calendar) Combine(d civil.Date, tod TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, int(tod), 0, 0, c.Location())
}

func (c Calendar) StartOfDay(d civil.Date) time.Time {
	return c.Combine(d, Midnight)
}

// EndOfDay returns the last representable instant of t's civil day.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.StartOfDay(c.DateOf(t).AddDays(1)).Add(-time.Nanosecond)
}

// AfterEndOfDay reports whether now falls after the civil day containing t.
func (c Calendar) AfterEndOfDay(now, t time.Time) bool {
	return now.After(c.EndOfDay(t))
}

// CeilNow rounds now up to the next multiple of step minutes in the calendar's zone.
// Any partial minute counts as a full one so the result is never before now.
func (c Calendar) CeilNow(now time.Time, step int) TimeOfDay {
	local := c.In(now)
	tod := NewTimeOfDay(local.Hour(), local.Minute())
	if local.Second() > 0 || local.Nanosecond() > 0 {
		tod++
	}
	return tod.CeilToStep(step)
}

func MaxDate(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

// InRange reports whether d lies in [min,max]; nil bounds are open.
func InRange(d civil.Date, min, max *civil.Date) bool {
	if min != nil && d.Before(*min) {
		return false
	}
	if max != nil && d.After(*max) {
		return false
	}
	return true
}
