// Package daykey converts instants into timezone-local calendar day keys
// ("YYYY-MM-DD") and does civil-date arithmetic on them.
package daykey

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical day key format.
const Layout = "2006-01-02"

// DefaultTimeZone is used when callers pass an empty zone name.
const DefaultTimeZone = "America/Chicago"

var ErrInvalid = errors.New("invalid value")

// ParseError reports malformed date, instant, clock or zone input.
// Source tags the operation that rejected Value.
type ParseError struct {
	Source string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse %q: %v", e.Source, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(source, value string, err error) error {
	if err == nil {
		err = ErrInvalid
	}
	return &ParseError{Source: source, Value: value, Err: err}
}

// Location resolves an IANA zone name, falling back to DefaultTimeZone.
func Location(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, parseErr("time_zone", tz, err)
	}
	return loc, nil
}

// Valid reports whether s is a well-formed day key for a real calendar date.
func Valid(s string) bool {
	if len(s) != len(Layout) {
		return false
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return false
	}
	return t.Format(Layout) == s
}

var instantLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant parses RFC 3339 timestamps. Timestamps without an offset and
// bare day keys are read as wall-clock time in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, parseErr("instant", s, errors.New("empty"))
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if Valid(s) {
		t, _ := time.ParseInLocation(Layout, s, loc)
		return t, nil
	}
	return time.Time{}, parseErr("instant", s, ErrInvalid)
}

// FromTime returns the day key of t as seen on a wall clock in loc.
func FromTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(Layout)
}

// FromISO returns the local calendar date of iso in the named zone.
// A value that already is a day key is returned unchanged.
func FromISO(iso, tz string) (string, error) {
	iso = strings.TrimSpace(iso)
	if Valid(iso) {
		return iso, nil
	}
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}
	t, err := ParseInstant(iso, loc)
	if err != nil {
		return "", err
	}
	return FromTime(t, loc), nil
}

func parseKey(source, dayKey string) (time.Time, error) {
	if !Valid(dayKey) {
		return time.Time{}, parseErr(source, dayKey, ErrInvalid)
	}
	t, _ := time.Parse(Layout, dayKey)
	return t, nil
}

// AddDays shifts a day key by n calendar days. The arithmetic is civil, so
// DST transitions in any zone never skip or repeat a date.
func AddDays(dayKey string, n int) (string, error) {
	t, err := parseKey("add_days", dayKey)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}

// Diff returns the number of calendar days from a to b (b - a).
func Diff(a, b string) (int, error) {
	ta, err := parseKey("diff", a)
	if err != nil {
		return 0, err
	}
	tb, err := parseKey("diff", b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// Weekday returns the weekday of a day key.
func Weekday(dayKey string) (time.Weekday, error) {
	t, err := parseKey("weekday", dayKey)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// Range lists day keys in [start, endExclusive).
func Range(start, endExclusive string) ([]string, error) {
	n, err := Diff(start, endExclusive)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, max(n, 0))
	for i := 0; i < n; i++ {
		k, _ := AddDays(start, i)
		keys = append(keys, k)
	}
	return keys, nil
}
