package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestBuildProducesWholeISOWeeks(t *testing.T) {
	for year := 2024; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			days := Build(date(year, month, 15), nil, nil)
			if len(days)%DaysPerWeek != 0 {
				t.Fatalf("%d-%02d: expected multiple of 7 days, got %d", year, month, len(days))
			}
			if len(days) != 28 && len(days) != 35 && len(days) != 42 {
				t.Fatalf("%d-%02d: unexpected grid length %d", year, month, len(days))
			}
			if wd := days[0].Date.In(time.UTC).Weekday(); wd != time.Monday {
				t.Fatalf("%d-%02d: expected grid to start on Monday, got %s", year, month, wd)
			}
			if wd := days[len(days)-1].Date.In(time.UTC).Weekday(); wd != time.Sunday {
				t.Fatalf("%d-%02d: expected grid to end on Sunday, got %s", year, month, wd)
			}
		}
	}
}

func TestBuildFourWeekFebruary(t *testing.T) {
	// 2021-02-01 is a Monday and 2021 is not a leap year.
	days := Build(date(2021, 2, 10), nil, nil)
	if len(days) != 28 {
		t.Fatalf("expected 28 days, got %d", len(days))
	}
	if days[0].Date != date(2021, 2, 1) || days[27].Date != date(2021, 2, 28) {
		t.Fatalf("expected grid 2021-02-01..2021-02-28, got %s..%s", days[0].Date, days[27].Date)
	}
	for _, d := range days {
		if !d.InMonth {
			t.Fatalf("expected every day in month, %s is not", d.Date)
		}
	}
}

func TestBuildJanuary2025(t *testing.T) {
	// 2025-01-01 is a Wednesday; 2025-01-31 is a Friday.
	days := Build(date(2025, 1, 10), nil, nil)
	if len(days) != 35 {
		t.Fatalf("expected 35 days, got %d", len(days))
	}
	if days[0].Date != date(2024, 12, 30) {
		t.Fatalf("expected grid to start 2024-12-30, got %s", days[0].Date)
	}
	if days[len(days)-1].Date != date(2025, 2, 2) {
		t.Fatalf("expected grid to end 2025-02-02, got %s", days[len(days)-1].Date)
	}
	if days[0].InMonth || !days[2].InMonth {
		t.Fatal("expected leading December days to be outside the month")
	}
}

func TestBuildDisablesOutsideBounds(t *testing.T) {
	min := date(2025, 1, 10)
	max := date(2025, 1, 12)
	days := Build(date(2025, 1, 1), &min, &max)

	enabled := 0
	for _, d := range days {
		if !d.Disabled {
			enabled++
			if d.Date.Before(min) || d.Date.After(max) {
				t.Fatalf("day %s enabled outside bounds", d.Date)
			}
		}
	}
	if enabled != 3 {
		t.Fatalf("expected 3 enabled days, got %d", enabled)
	}
}

func TestBuildInvertedRangeDisablesAll(t *testing.T) {
	min := date(2025, 1, 20)
	max := date(2025, 1, 10)
	for _, d := range Build(date(2025, 1, 1), &min, &max) {
		if !d.Disabled {
			t.Fatalf("expected %s to be disabled", d.Date)
		}
	}
}

func TestBuildOpenBounds(t *testing.T) {
	min := date(2025, 1, 15)
	for _, d := range Build(date(2025, 1, 1), &min, nil) {
		if d.Disabled != d.Date.Before(min) {
			t.Fatalf("unexpected disabled=%v for %s", d.Disabled, d.Date)
		}
	}
}

func TestShiftMonth(t *testing.T) {
	if got := ShiftMonth(date(2025, 1, 31), 1); got != date(2025, 2, 1) {
		t.Fatalf("expected 2025-02-01, got %s", got)
	}
	if got := ShiftMonth(date(2025, 1, 10), -1); got != date(2024, 12, 1) {
		t.Fatalf("expected 2024-12-01, got %s", got)
	}
}

func TestWeeksAndToday(t *testing.T) {
	days := Build(date(2025, 1, 1), nil, nil)
	MarkToday(days, date(2025, 1, 10))
	weeks := Weeks(days)
	if len(weeks) != 5 {
		t.Fatalf("expected 5 weeks, got %d", len(weeks))
	}
	count := 0
	for _, d := range days {
		if d.Today {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one day marked today, got %d", count)
	}
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2025-02")
	if err != nil || got != date(2025, 2, 1) {
		t.Fatalf("expected 2025-02-01, got %s (%v)", got, err)
	}
	if _, err := ParseMonth("2025/02"); err == nil {
		t.Fatal("expected parse error")
	}
}
