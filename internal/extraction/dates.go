package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

const isoDateLayout = "2006-01-02"

var nDaysRe = regexp.MustCompile(`(?i)\b(?:in\s+)?(\d{1,3})\s+days?\b`)

// endOfDay is the default time-of-day when an expression names a date but
// no time.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
}

// atTimeOfDay keeps ref's clock time on day.
func atTimeOfDay(day time.Time, ref time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		ref.Hour(), ref.Minute(), ref.Second(), 0, day.Location())
}

// ParseDueDate best-effort parses a model-returned date expression: ISO
// pattern match first, then a relative keyword scan. The second return
// reports whether the expression carried an explicit time-of-day.
func ParseDueDate(raw string, now time.Time) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return &t, true
		}
	}
	if t, err := time.ParseInLocation(isoDateLayout, raw, now.Location()); err == nil {
		eod := endOfDay(t)
		return &eod, false
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "day after tomorrow"):
		t := endOfDay(now.AddDate(0, 0, 2))
		return &t, false
	case strings.Contains(lower, "tomorrow"):
		t := endOfDay(now.AddDate(0, 0, 1))
		return &t, false
	case strings.Contains(lower, "today"):
		t := endOfDay(now)
		return &t, false
	case strings.Contains(lower, "next week"):
		t := endOfDay(now.AddDate(0, 0, 7))
		return &t, false
	}
	if m := nDaysRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			t := endOfDay(now.AddDate(0, 0, n))
			return &t, false
		}
	}

	return nil, false
}

// CorrectDueDate applies the deterministic relative-date correction: the
// original input text, not the model, decides "tomorrow" and "day after
// tomorrow". The model's arithmetic can drift from the anchored dates it
// was given; the literal phrase cannot. The more specific phrase is
// checked first. The model-extracted time-of-day is preserved.
func CorrectDueDate(inputText string, modelDue *time.Time, now time.Time) *time.Time {
	lower := strings.ToLower(inputText)

	var targetDay time.Time
	switch {
	case strings.Contains(lower, "day after tomorrow"):
		targetDay = now.AddDate(0, 0, 2)
	case strings.Contains(lower, "tomorrow"):
		targetDay = now.AddDate(0, 0, 1)
	default:
		return modelDue
	}

	if modelDue != nil {
		t := atTimeOfDay(targetDay, *modelDue)
		return &t
	}
	t := endOfDay(targetDay)
	return &t
}

// FarFuture reports a parsed date more than two years out. Accepted, but
// worth a signal: it usually means the parser or the model misread.
func FarFuture(due time.Time, now time.Time) bool {
	return due.After(now.AddDate(2, 0, 0))
}
