package engine

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar date decoded leniently from the wire
// =============================================================================

// Date is a calendar date. Time is zero when the wire value was missing or
// could not be parsed; Raw keeps the original text in that case.
type Date struct {
	Time time.Time
	Raw  string
}

const DateLayout = "2006-01-02"

// Layouts accepted on the wire, in order. The document backend writes
// "2006-01-02 15:04:05.000Z"; forms send plain dates; legacy screens sent
// day-first dates.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return Date{Time: Midnight(t)}
}

// ParseDate never fails: unparseable input yields an invalid Date.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t, Raw: s}
		}
	}
	return Date{Raw: s}
}

func (d Date) Valid() bool { return !d.Time.IsZero() }

// Malformed reports a date that was present on the wire but unparseable.
func (d Date) Malformed() bool { return !d.Valid() && d.Raw != "" }

func (d Date) String() string {
	if d.Valid() {
		return d.Time.Format(DateLayout)
	}
	return d.Raw
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{Raw: string(b)}
		return nil
	}
	*d = ParseDate(s)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.Valid() {
		return json.Marshal(d.Time.Format(DateLayout))
	}
	if d.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(d.Raw)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// Midnight strips the time of day, keeping the calendar date as seen in t's
// own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween counts calendar days from from to to after normalizing both to
// midnight. Unix seconds are used because time.Duration saturates at about
// 292 years.
func DaysBetween(from, to time.Time) int {
	return int((Midnight(to).Unix() - Midnight(from).Unix()) / secondsPerDay)
}
