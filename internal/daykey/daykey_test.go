package daykey_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/daykey"
)

func TestFromISOUsesWallClockDate(t *testing.T) {
	cases := []struct {
		name string
		iso  string
		tz   string
		want string
	}{
		{"late evening chicago", "2026-01-08T03:30:00Z", "America/Chicago", "2026-01-07"},
		{"utc", "2026-01-08T03:30:00Z", "UTC", "2026-01-08"},
		{"tokyo ahead", "2026-01-07T20:00:00Z", "Asia/Tokyo", "2026-01-08"},
		{"offset preserved", "2026-01-07T23:30:00-06:00", "America/Chicago", "2026-01-07"},
		{"zone-less local", "2026-01-07T23:30:00", "America/Chicago", "2026-01-07"},
		{"default zone", "2026-07-01T04:00:00Z", "", "2026-06-30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := daykey.FromISO(tc.iso, tc.tz)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromISOIdempotentOnDayKeys(t *testing.T) {
	for _, k := range []string{"2026-01-08", "2024-02-29", "1999-12-31"} {
		got, err := daykey.FromISO(k, "Asia/Tokyo")
		require.NoError(t, err)
		assert.Equal(t, k, got)
		again, err := daykey.FromISO(got, "America/Chicago")
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestFromISOParseError(t *testing.T) {
	_, err := daykey.FromISO("not-a-date", "UTC")
	var pe *daykey.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "instant", pe.Source)
	assert.Equal(t, "not-a-date", pe.Value)

	_, err = daykey.FromISO("2026-01-08T00:00:00Z", "Mars/Olympus")
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "time_zone", pe.Source)

	assert.False(t, daykey.Valid("2026-02-30"))
}

func TestAddDaysAcrossBoundaries(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"2026-01-08", -13, "2025-12-26"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2026-03-07", 1, "2026-03-08"},
		{"2026-11-01", 1, "2026-11-02"},
		{"2026-12-31", 1, "2027-01-01"},
	}
	for _, tc := range cases {
		got, err := daykey.AddDays(tc.in, tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := daykey.AddDays("bad", 1)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	cases := map[string]string{
		"9:30":     "09:30",
		"09:30:15": "09:30",
		"9:30 pm":  "21:30",
		"12:00am":  "00:00",
		"12:15 PM": "12:15",
	}
	for in, want := range cases {
		c, err := daykey.ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c.String())
	}
	for _, bad := range []string{"", "25:00", "9:75", "nine", "13:30 pm", "25:00 pm", "0:15 am", "00:00 PM"} {
		_, err := daykey.ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalStart(t *testing.T) {
	loc, err := daykey.Location("America/Chicago")
	require.NoError(t, err)
	got, err := daykey.LocalStart("2026-01-08", daykey.Clock{Hour: 9}, loc)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-08T15:00:00Z", got.UTC().Format(time.RFC3339))
}

func TestSpanFor(t *testing.T) {
	cases := []struct {
		mode       daykey.Mode
		anchor     string
		start, end string
		days       int
	}{
		{daykey.ModeDay, "2026-01-08", "2026-01-08", "2026-01-09", 1},
		{daykey.ModeWeek, "2026-01-08", "2026-01-05", "2026-01-12", 7},
		{daykey.ModeWeek, "2026-01-11", "2026-01-05", "2026-01-12", 7},
		{daykey.ModeMonth, "2024-02-10", "2024-02-01", "2024-03-01", 29},
		{daykey.ModeQuarter, "2026-05-20", "2026-04-01", "2026-07-01", 91},
		{daykey.ModeYear, "2026-05-20", "2026-01-01", "2027-01-01", 365},
	}
	for _, tc := range cases {
		s, err := daykey.SpanFor(tc.mode, tc.anchor)
		require.NoError(t, err)
		assert.Equal(t, tc.start, s.Start, tc.mode)
		assert.Equal(t, tc.end, s.EndExclusive, tc.mode)
		assert.Equal(t, tc.days, s.Days(), tc.mode)
	}
}

func TestMonthGridPadsToWholeWeeks(t *testing.T) {
	grid, err := daykey.MonthGrid("2026-01-15")
	require.NoError(t, err)
	require.Len(t, grid, 35)
	assert.Equal(t, "2025-12-28", grid[0])
	assert.Equal(t, "2026-01-31", grid[len(grid)-1])
}

func TestShift(t *testing.T) {
	got, err := daykey.Shift("2026-01-31", daykey.ModeMonth, 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", got)
	got, err = daykey.Shift("2026-01-31", daykey.ModeWeek, -1)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-24", got)
}
