package daykey

import (
	"fmt"
	"time"
)

// Mode names a calendar window granularity.
type Mode string

const (
	ModeDay     Mode = "day"
	ModeWeek    Mode = "week"
	ModeMonth   Mode = "month"
	ModeQuarter Mode = "quarter"
	ModeYear    Mode = "year"
)

// ParseMode validates a window mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDay, ModeWeek, ModeMonth, ModeQuarter, ModeYear:
		return m, nil
	}
	return "", parseErr("mode", s, fmt.Errorf("want day, week, month, quarter or year"))
}

// Span is a half-open range of day keys [Start, EndExclusive) around Anchor.
type Span struct {
	Mode         Mode   `json:"mode"`
	Anchor       string `json:"anchor"`
	Start        string `json:"start"`
	EndExclusive string `json:"end_exclusive"`
}

// Days returns the number of day keys in the span.
func (s Span) Days() int {
	n, err := Diff(s.Start, s.EndExclusive)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SpanFor builds the calendar span containing anchor. Weeks start on Monday.
func SpanFor(mode Mode, anchor string) (Span, error) {
	a, err := parseKey("span", anchor)
	if err != nil {
		return Span{}, err
	}
	var start, end time.Time
	switch mode {
	case ModeDay:
		start, end = a, a.AddDate(0, 0, 1)
	case ModeWeek:
		offset := (int(a.Weekday()) + 6) % 7
		start = a.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	case ModeMonth:
		start = time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	case ModeQuarter:
		q := (int(a.Month()) - 1) / 3
		start = time.Date(a.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, 0)
	case ModeYear:
		start = time.Date(a.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0)
	default:
		return Span{}, parseErr("span", string(mode), fmt.Errorf("unknown mode"))
	}
	return Span{
		Mode:         mode,
		Anchor:       anchor,
		Start:        start.Format(Layout),
		EndExclusive: end.Format(Layout),
	}, nil
}

// Shift moves an anchor by delta units of mode. Month, quarter and year
// shifts land on the first day of the target period.
func Shift(anchor string, mode Mode, delta int) (string, error) {
	a, err := parseKey("shift", anchor)
	if err != nil {
		return "", err
	}
	first := time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, time.UTC)
	switch mode {
	case ModeDay:
		return a.AddDate(0, 0, delta).Format(Layout), nil
	case ModeWeek:
		return a.AddDate(0, 0, 7*delta).Format(Layout), nil
	case ModeMonth:
		return first.AddDate(0, delta, 0).Format(Layout), nil
	case ModeQuarter:
		return first.AddDate(0, 3*delta, 0).Format(Layout), nil
	case ModeYear:
		return time.Date(a.Year()+delta, time.January, 1, 0, 0, 0, 0, time.UTC).Format(Layout), nil
	}
	return "", parseErr("shift", string(mode), fmt.Errorf("unknown mode"))
}

// MonthGrid returns the Sunday-start calendar grid covering the month of
// anchor, padded with days of the neighbouring months to whole weeks.
func MonthGrid(anchor string) ([]string, error) {
	a, err := parseKey("month_grid", anchor)
	if err != nil {
		return nil, err
	}
	first := time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))
	gridEnd := last.AddDate(0, 0, 7-int(last.Weekday()))
	return Range(gridStart.Format(Layout), gridEnd.Format(Layout))
}
