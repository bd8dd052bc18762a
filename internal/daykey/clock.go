package daykey

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([APap][Mm])?$`)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the canonical HH:MM form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock accepts "9:30", "09:30:00" and "9:30 pm" style values.
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Clock{}, parseErr("clock", s, errors.New("empty"))
	}
	m := clockRe.FindStringSubmatch(raw)
	if m == nil {
		return Clock{}, parseErr("clock", s, errors.New("format"))
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return Clock{}, parseErr("clock", s, errors.New("minutes out of range"))
	}
	meridiem := strings.ToLower(m[4])
	maxHour, minHour := 23, 0
	if meridiem != "" {
		maxHour, minHour = 12, 1
	}
	if hour < minHour || hour > maxHour {
		return Clock{}, parseErr("clock", s, errors.New("hours out of range"))
	}
	switch {
	case meridiem == "pm" && hour < 12:
		hour += 12
	case meridiem == "am" && hour == 12:
		hour = 0
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// LocalStart returns the instant at which clock occurs on dayKey in loc.
// It fails when the wall time does not exist on that date, e.g. inside a
// spring-forward gap that pushes the instant onto a different day.
func LocalStart(dayKey string, clock Clock, loc *time.Location) (time.Time, error) {
	d, err := parseKey("local_start", dayKey)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	t := time.Date(d.Year(), d.Month(), d.Day(), clock.Hour, clock.Minute, 0, 0, loc)
	if got := FromTime(t, loc); got != dayKey {
		return time.Time{}, parseErr("local_start", dayKey, fmt.Errorf("resolved to %s", got))
	}
	return t, nil
}

// HourOf returns the local hour of an ISO instant, or ok=false when it
// cannot be parsed.
func HourOf(iso string, loc *time.Location) (int, bool) {
	t, err := ParseInstant(iso, loc)
	if err != nil {
		return 0, false
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Hour(), true
}
