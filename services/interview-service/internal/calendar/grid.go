// Package calendar builds the month grid shown when an adopter picks an interview day.
package calendar

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
)

const DaysPerWeek = 7

type Day struct {
	Date     civil.Date `json:"date"`
	Disabled bool       `json:"disabled"`
	// InMonth is false for the leading/trailing days borrowed from adjacent months.
	InMonth bool `json:"in_month"`
	Today   bool `json:"today"`
}

// Build returns whole ISO weeks (Monday through Sunday) covering anchor's month.
// A day is disabled when it falls outside [min,max]; a nil bound is open on that side,
// and an inverted range disables everything.
func Build(anchor civil.Date, min, max *civil.Date) []Day {
	first := FirstOfMonth(anchor)
	last := first.AddDays(daysIn(first) - 1)

	start := first.AddDays(-isoWeekdayIndex(first))
	end := last.AddDays(DaysPerWeek - 1 - isoWeekdayIndex(last))

	days := make([]Day, 0, end.DaysSince(start)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, Day{
			Date:     d,
			Disabled: !civiltime.InRange(d, min, max),
			InMonth:  d.Month == first.Month,
		})
	}
	return days
}

// MarkToday flags today in a grid produced by Build.
func MarkToday(days []Day, today civil.Date) {
	for i := range days {
		days[i].Today = days[i].Date == today
	}
}

// Weeks splits a grid into rows of seven days.
func Weeks(days []Day) [][]Day {
	weeks := make([][]Day, 0, len(days)/DaysPerWeek)
	for i := 0; i+DaysPerWeek <= len(days); i += DaysPerWeek {
		weeks = append(weeks, days[i:i+DaysPerWeek])
	}
	return weeks
}

func FirstOfMonth(d civil.Date) civil.Date {
	return civil.Date{Year: d.Year, Month: d.Month, Day: 1}
}

// ShiftMonth moves the view anchor by n months and returns the first day of the
// resulting month.
func ShiftMonth(anchor civil.Date, n int) civil.Date {
	t := time.Date(anchor.Year, anchor.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return civil.DateOf(t)
}

// ParseMonth accepts "YYYY-MM".
func ParseMonth(s string) (civil.Date, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t), nil
}

func daysIn(first civil.Date) int {
	return ShiftMonth(first, 1).DaysSince(first)
}

// isoWeekdayIndex maps Monday..Sunday to 0..6.
func isoWeekdayIndex(d civil.Date) int {
	wd := d.In(time.UTC).Weekday()
	return (int(wd) + 6) % 7
}
