package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet serial dates count days from this anchor (the 1900 date system
// with its historical off-by-two).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dayFirstFormats = []string{
	"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006",
}

var isoLikeFormats = []string{
	"2006-01-02", "2006/01/02", "2006-1-2",
}

var namedMonthFormats = []string{
	"02-Jan-2006", "2-Jan-2006", "02 Jan 2006", "2 Jan 2006",
	"02-January-2006", "2 January 2006",
}

// ParseDate recognizes, in order: a spreadsheet serial-day number, day-first
// regional dates, ISO-like year-month-day, and day-Month-name-year. The first
// format that matches wins. The returned date is anchored at UTC midnight.
func ParseDate(text string) (time.Time, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial < 1000 || serial > 200000 {
			return time.Time{}, false
		}
		return serialEpoch.AddDate(0, 0, int(serial)), true
	}

	for _, group := range [][]string{dayFirstFormats, isoLikeFormats, namedMonthFormats} {
		for _, format := range group {
			parsed, err := time.Parse(format, raw)
			if err != nil {
				continue
			}
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// AmbiguousDayFirst reports whether a day-first parse of the text could also
// be a month-first date (both leading components ≤ 12). Callers surface this
// as a warning, not a failure.
func AmbiguousDayFirst(text string) bool {
	raw := strings.TrimSpace(text)
	if !strings.ContainsAny(raw, "/-") {
		return false
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) < 2 {
		return false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	return day >= 1 && day <= 12 && month >= 1 && month <= 12 && day != month
}

type Clock struct {
	Hour, Minute, Second int
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// ParseClock recognizes HH:MM[:SS][ AM|PM] and bare fractional-day serials.
// A fraction f in [0, 1.5) maps to f×24h rounded to the nearest second; the
// tolerance above 1.0 accepts datetime serials whose whole-day component was
// already consumed by the date cell. That window is a heuristic accommodation
// for ambiguous spreadsheet exports, not a guarantee.
func ParseClock(text string) (Clock, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Clock{}, false
	}

	if m := clockPattern.FindStringSubmatch(raw); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		second := 0
		if m[3] != "" {
			second, _ = strconv.Atoi(m[3])
		}
		if meridiem := strings.ToUpper(m[4]); meridiem != "" {
			if hour < 1 || hour > 12 {
				return Clock{}, false
			}
			hour %= 12
			if meridiem == "PM" {
				hour += 12
			}
		}
		if hour > 23 || minute > 59 || second > 59 {
			return Clock{}, false
		}
		return Clock{Hour: hour, Minute: minute, Second: second}, true
	}

	fraction, err := strconv.ParseFloat(raw, 64)
	if err != nil || fraction < 0 || fraction >= 1.5 {
		return Clock{}, false
	}
	total := int(fraction*86400 + 0.5)
	total %= 86400
	return Clock{Hour: total / 3600, Minute: (total % 3600) / 60, Second: total % 60}, true
}

// ParseDateTime composes a canonical date and timestamp from separate date
// and time cells. An unparsable date falls back to the current instant; a
// missing or unparsable time leaves the timestamp at midnight.
func ParseDateTime(dateText, timeText string) (date time.Time, timestamp time.Time) {
	parsed, ok := ParseDate(dateText)
	if !ok {
		now := time.Now().UTC()
		parsed = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	timestamp = parsed
	if clock, ok := ParseClock(timeText); ok {
		timestamp = parsed.Add(
			time.Duration(clock.Hour)*time.Hour +
				time.Duration(clock.Minute)*time.Minute +
				time.Duration(clock.Second)*time.Second)
	}
	return parsed, timestamp
}
