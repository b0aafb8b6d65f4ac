// Package normalizer converts the raw cell values found in bank exports
// (dates, amounts, merchant descriptions) into canonical forms.
package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateHint disambiguates ##/##/#### style dates when auto-detection cannot.
type DateHint string

const (
	DateHintAuto     DateHint = "auto"
	DateHintMonthDay DateHint = "MM/DD/YYYY"
	DateHintDayMonth DateHint = "DD/MM/YYYY"
)

// ParseDateHint validates a user-supplied hint string.
func ParseDateHint(s string) (DateHint, error) {
	switch DateHint(s) {
	case "", DateHintAuto:
		return DateHintAuto, nil
	case DateHintMonthDay, DateHintDayMonth:
		return DateHint(s), nil
	}
	return DateHintAuto, fmt.Errorf("unknown date format hint %q", s)
}

var ErrInvalidDate = errors.New("unrecognized date")

// Unambiguous layouts tried before any day/month disambiguation.
var isoLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// ParseFlexibleDate parses a statement date.
//
// ISO dates (year first) are unambiguous. For numeric day/month orders the
// hint is applied when given; in auto mode US ordering (month first) is tried
// and accepted only when the month component round-trips validly, then
// day-first ordering. Anything else is ErrInvalidDate.
func ParseFlexibleDate(s string, hint DateHint) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	first, second, year, ok := splitNumericDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	switch hint {
	case DateHintMonthDay:
		return buildDate(year, first, second, s)
	case DateHintDayMonth:
		return buildDate(year, second, first, s)
	}

	// Auto: US ordering first, validated by the month round-tripping.
	if first >= 1 && first <= 12 {
		if t, err := buildDate(year, first, second, s); err == nil {
			return t, nil
		}
	}
	if second >= 1 && second <= 12 {
		if t, err := buildDate(year, second, first, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// splitNumericDate breaks "##/##/####" (or - or . separated) into components.
func splitNumericDate(s string) (first, second, year int, ok bool) {
	for _, sep := range []rune{'/', '-', '.'} {
		parts := strings.Split(s, string(sep))
		if len(parts) != 3 {
			continue
		}
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		y, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
		if errA != nil || errB != nil || errY != nil {
			continue
		}
		if y < 100 {
			y += 2000 // two-digit years in exports are always 20xx
		}
		if y < 1900 || y > 2200 {
			continue
		}
		return a, b, y, true
	}
	return 0, 0, 0, false
}

// buildDate constructs a date and rejects components that don't round-trip
// (e.g. month 13 or Feb 30, which time.Date would silently normalize).
func buildDate(year, month, day int, raw string) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// LooksLikeDate reports whether the cell plausibly holds a date. Used by
// header detection and footer trimming, where a failed parse is fine.
func LooksLikeDate(s string) bool {
	_, err := ParseFlexibleDate(s, DateHintAuto)
	return err == nil
}
