package datenorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToDisplay(t *testing.T) {
	cases := map[string]string{
		"2024-01-05":   "05 Jan",
		"2031-12-31":   "31 Dec",
		" 2026-07-09 ": "09 Jul",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToDisplay(in), in)
	}
}

func TestToDisplayLeavesMalformedInput(t *testing.T) {
	for _, in := range []string{"", "2024-13-01", "2024-02-30", "not a date"} {
		assert.NotPanics(t, func() { _ = ToDisplay(in) })
		assert.Equal(t, in, ToDisplay(in))
	}
}

func TestToCalendar(t *testing.T) {
	cases := []struct {
		display string
		year    int
		want    string
	}{
		{"05 Jan", 2026, "2026-01-05"},
		{"Jan 05", 2026, "2026-01-05"},
		{"5 Jan", 2026, "2026-01-05"},
		{"31 Dec", 2025, "2025-12-31"},
		{"29 Feb", 2024, "2024-02-29"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToCalendar(tc.display, tc.year), tc.display)
	}
}

func TestToCalendarRejectsImpossibleDays(t *testing.T) {
	assert.Equal(t, "", ToCalendar("29 Feb", 2025))
	assert.Equal(t, "", ToCalendar("00 Jan", 2026))
	assert.Equal(t, "", ToCalendar("32 Jan", 2026))
	assert.Equal(t, "", ToCalendar("", 2026))
	assert.Equal(t, "", ToCalendar("05 Jan", 0))
}

// The display value has no year, so the round trip keeps month and day but
// takes whatever year is injected on the way back. This loss is accepted.
func TestRoundTripKeepsMonthAndDay(t *testing.T) {
	for _, calendar := range []string{"2019-03-04", "2024-11-30", "2026-01-01"} {
		display := ToDisplay(calendar)
		back := ToCalendar(display, 2026)

		assert.Equal(t, calendar[4:], back[4:], calendar)
		assert.Equal(t, "2026", back[:4])
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2026, time.October, 19, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-19", Today(now))
}
