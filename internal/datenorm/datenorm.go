// Package datenorm converts task dates between the calendar value edited in a
// form ("2006-01-02") and the short display value stored with a task
// ("02 Jan"). The display value carries no year.
package datenorm

import (
	"fmt"
	"strings"
	"time"
)

const (
	CalendarLayout = "2006-01-02"
	DisplayLayout  = "02 Jan"
)

// displayLayouts are tried in order when reading a stored display value.
var displayLayouts = []string{
	"02 Jan 2006",
	"Jan 02 2006",
	"2 Jan 2006",
	"Jan 2 2006",
}

// ToCalendar rebuilds an editable calendar value from a display value by
// injecting year. A task stored in an earlier year comes back dated in year.
// Returns "" when display cannot be read as a real day of that year.
func ToCalendar(display string, year int) string {
	display = strings.Join(strings.Fields(display), " ")
	if display == "" || year < 1 || year > 9999 {
		return ""
	}
	withYear := fmt.Sprintf("%s %04d", display, year)
	for _, layout := range displayLayouts {
		parsed, err := time.Parse(layout, withYear)
		if err == nil {
			return parsed.Format(CalendarLayout)
		}
	}
	return ""
}

// ToDisplay renders a calendar value as the stored display value, dropping the
// year. Input that is not a calendar value is returned unchanged.
func ToDisplay(calendar string) string {
	parsed, err := time.Parse(CalendarLayout, strings.TrimSpace(calendar))
	if err != nil {
		return calendar
	}
	return parsed.Format(DisplayLayout)
}

// Today returns the calendar value for now, used as the new-task default.
func Today(now time.Time) string {
	return now.Format(CalendarLayout)
}
