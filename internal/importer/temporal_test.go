package importer

import (
	"testing"
	"time"
)

func TestParseDateFormats(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"45000", "2023-03-15"},
		{"21/09/2024", "2024-09-21"},
		{"2024-09-21", "2024-09-21"},
		{"22-Feb-2024", "2024-02-22"},
		{"2 January 2024", "2024-01-02"},
		{"1-1-2024", "2024-01-01"},
	}
	for _, c := range cases {
		got, ok := ParseDate(c.in)
		if !ok {
			t.Fatalf("ParseDate(%q) failed", c.in)
		}
		if got.Format("2006-01-02") != c.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", c.in, got.Format("2006-01-02"), c.want)
		}
		if got.Hour() != 0 || got.Location() != time.UTC {
			t.Fatalf("ParseDate(%q) not anchored at UTC midnight: %v", c.in, got)
		}
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not a date", "999", "300000"} {
		if _, ok := ParseDate(in); ok {
			t.Fatalf("ParseDate(%q) unexpectedly succeeded", in)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
	}{
		{"12:30", Clock{12, 30, 0}},
		{"12:30:45", Clock{12, 30, 45}},
		{"1:05 PM", Clock{13, 5, 0}},
		{"12:00 AM", Clock{0, 0, 0}},
		{"0.5", Clock{12, 0, 0}},
		{"0.75", Clock{18, 0, 0}},
	}
	for _, c := range cases {
		got, ok := ParseClock(c.in)
		if !ok {
			t.Fatalf("ParseClock(%q) failed", c.in)
		}
		if got != c.want {
			t.Fatalf("ParseClock(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

// Fractions in [1.0, 1.5) are accepted and wrapped into the same day. Whether
// such values are genuine day-plus-fraction timestamps or exporter noise is
// unknowable from the cell alone, so the test pins the wrapping behavior
// without claiming it is the one true interpretation.
func TestParseClockOverflowWindow(t *testing.T) {
	got, ok := ParseClock("1.25")
	if !ok {
		t.Fatalf("ParseClock(1.25) failed")
	}
	if (got != Clock{6, 0, 0}) {
		t.Fatalf("ParseClock(1.25) = %+v, want 06:00:00", got)
	}

	if _, ok := ParseClock("1.5"); ok {
		t.Fatalf("ParseClock(1.5) should be out of range")
	}
	if _, ok := ParseClock("-0.1"); ok {
		t.Fatalf("ParseClock(-0.1) should be out of range")
	}
}

func TestParseDateTimeComposition(t *testing.T) {
	date, ts := ParseDateTime("21/09/2024", "14:45")
	if date.Format("2006-01-02") != "2024-09-21" {
		t.Fatalf("date = %v", date)
	}
	if ts.Format("2006-01-02 15:04:05") != "2024-09-21 14:45:00" {
		t.Fatalf("timestamp = %v", ts)
	}

	_, midnight := ParseDateTime("21/09/2024", "")
	if midnight.Hour() != 0 || midnight.Minute() != 0 {
		t.Fatalf("missing time should leave midnight, got %v", midnight)
	}
}

func TestParseDateTimeFallsBackToToday(t *testing.T) {
	date, _ := ParseDateTime("garbage", "")
	now := time.Now().UTC()
	if date.Year() != now.Year() {
		t.Fatalf("unparsable date should fall back to today, got %v", date)
	}
}

func TestAmbiguousDayFirst(t *testing.T) {
	if !AmbiguousDayFirst("03/04/2024") {
		t.Fatalf("03/04/2024 should be ambiguous")
	}
	if AmbiguousDayFirst("21/09/2024") {
		t.Fatalf("21/09/2024 is not ambiguous")
	}
	if AmbiguousDayFirst("2024-09-21") {
		t.Fatalf("ISO year-first should not be flagged; leading component is a year")
	}
}
