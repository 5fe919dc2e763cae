package extraction

import (
	"testing"
	"time"
)

// Fixed reference clock: Tuesday 2025-03-11 15:00 local.
var refNow = time.Date(2025, time.March, 11, 15, 0, 0, 0, time.Local)

func TestParseDueDate_ISOFormats(t *testing.T) {
	due, explicit := ParseDueDate("2025-03-14T09:30:00", refNow)
	if due == nil {
		t.Fatal("expected a parsed date")
	}
	if !explicit {
		t.Error("ISO datetime should report an explicit time-of-day")
	}
	want := time.Date(2025, time.March, 14, 9, 30, 0, 0, time.Local)
	if !due.Equal(want) {
		t.Errorf("due = %v, want %v", due, want)
	}
}

func TestParseDueDate_DateOnlyDefaultsToEndOfDay(t *testing.T) {
	due, explicit := ParseDueDate("2025-03-14", refNow)
	if due == nil {
		t.Fatal("expected a parsed date")
	}
	if explicit {
		t.Error("date-only expression should not report an explicit time")
	}
	if due.Hour() != 23 || due.Minute() != 59 {
		t.Errorf("due time = %02d:%02d, want 23:59", due.Hour(), due.Minute())
	}
}

func TestParseDueDate_RelativeKeywords(t *testing.T) {
	cases := []struct {
		raw      string
		wantDays int
	}{
		{"today", 0},
		{"tomorrow", 1},
		{"day after tomorrow", 2},
		{"next week", 7},
		{"in 3 days", 3},
		{"5 days", 5},
	}
	for _, tc := range cases {
		due, _ := ParseDueDate(tc.raw, refNow)
		if due == nil {
			t.Errorf("%q: expected a parsed date", tc.raw)
			continue
		}
		want := refNow.AddDate(0, 0, tc.wantDays)
		if due.Year() != want.Year() || due.YearDay() != want.YearDay() {
			t.Errorf("%q: due = %v, want day %v", tc.raw, due, want)
		}
	}
}

func TestParseDueDate_Unparseable(t *testing.T) {
	if due, _ := ParseDueDate("whenever you get a chance", refNow); due != nil {
		t.Errorf("expected nil, got %v", due)
	}
	if due, _ := ParseDueDate("", refNow); due != nil {
		t.Errorf("expected nil for empty input, got %v", due)
	}
}

func TestCorrectDueDate_TomorrowOverridesModelDrift(t *testing.T) {
	// Model drifted by a day; the phrase in the input text wins.
	drifted := refNow.AddDate(0, 0, 2)
	modelDue := time.Date(drifted.Year(), drifted.Month(), drifted.Day(), 10, 0, 0, 0, time.Local)

	due := CorrectDueDate("call the dentist tomorrow at 10am", &modelDue, refNow)
	if due == nil {
		t.Fatal("expected a corrected date")
	}
	want := refNow.AddDate(0, 0, 1)
	if due.Year() != want.Year() || due.YearDay() != want.YearDay() {
		t.Errorf("corrected day = %v, want %v", due, want)
	}
	if due.Hour() != 10 || due.Minute() != 0 {
		t.Errorf("time-of-day = %02d:%02d, want model's 10:00 preserved", due.Hour(), due.Minute())
	}
}

func TestCorrectDueDate_DayAfterTomorrowCheckedFirst(t *testing.T) {
	// "day after tomorrow" contains "tomorrow"; the longer phrase must win.
	modelDue := time.Date(refNow.Year(), refNow.Month(), refNow.Day()+1, 15, 0, 0, 0, time.Local)
	due := CorrectDueDate("remind me the day after tomorrow at 3pm to call mom", &modelDue, refNow)
	if due == nil {
		t.Fatal("expected a corrected date")
	}
	want := refNow.AddDate(0, 0, 2)
	if due.Year() != want.Year() || due.YearDay() != want.YearDay() {
		t.Errorf("corrected day = %v, want today+2 (%v)", due, want)
	}
	if due.Hour() != 15 {
		t.Errorf("hour = %d, want 15", due.Hour())
	}
}

func TestCorrectDueDate_NoPhrasePassesThrough(t *testing.T) {
	modelDue := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.Local)
	due := CorrectDueDate("file taxes by april first", &modelDue, refNow)
	if due == nil || !due.Equal(modelDue) {
		t.Errorf("due = %v, want untouched %v", due, modelDue)
	}
	if due := CorrectDueDate("random note", nil, refNow); due != nil {
		t.Errorf("nil model date with no phrase should stay nil, got %v", due)
	}
}

func TestCorrectDueDate_PhraseWithoutModelDateDefaultsEndOfDay(t *testing.T) {
	due := CorrectDueDate("do it tomorrow", nil, refNow)
	if due == nil {
		t.Fatal("expected a date derived from the phrase alone")
	}
	if due.Hour() != 23 || due.Minute() != 59 {
		t.Errorf("time = %02d:%02d, want 23:59 default", due.Hour(), due.Minute())
	}
}

func TestFarFuture(t *testing.T) {
	if FarFuture(refNow.AddDate(1, 11, 0), refNow) {
		t.Error("date under two years out flagged as far-future")
	}
	if !FarFuture(refNow.AddDate(2, 0, 1), refNow) {
		t.Error("date past two years not flagged")
	}
}
