package civiltime

import (
	"errors"
	"fmt"
	"strconv"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a civil wall-clock time at minute precision, stored as minutes since
// midnight. Valid selectable values are 00:00..23:59; 24:00 only appears as the result
// of rounding past the last minute of a day.
type TimeOfDay int

const (
	Midnight   TimeOfDay = 0
	LastMinute TimeOfDay = minutesPerDay - 1
	DayEnd     TimeOfDay = minutesPerDay
)

var ErrInvalidTimeOfDay = errors.New("time of day must be HH:mm")

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses a strict two-digit "HH:mm" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return NewTimeOfDay(h, m), nil
}

func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Valid() bool { return t >= Midnight && t <= LastMinute }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// HourLabel is the two-digit hour used to group slots for display.
func (t TimeOfDay) HourLabel() string {
	return fmt.Sprintf("%02d", t.Hour())
}

// FloorToStep returns the largest multiple of step (in minutes) at or below t.
func (t TimeOfDay) FloorToStep(step int) TimeOfDay {
	if step <= 0 {
		return t
	}
	return TimeOfDay(int(t) / step * step)
}

// CeilToStep returns the smallest multiple of step (in minutes) at or above t.
func (t TimeOfDay) CeilToStep(step int) TimeOfDay {
	if step <= 0 {
		return t
	}
	return TimeOfDay((int(t) + step - 1) / step * step)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
