package core

import (
	"strings"
	"time"
)

// CalendarDay lists the gift names dated on one day of the month.
type CalendarDay struct {
	Day    int      `json:"day"`
	Events []string `json:"events"`
}

// CalendarMonth is a month grid: LeadingBlanks empty cells (Sunday first)
// followed by one entry per day.
type CalendarMonth struct {
	Year          int           `json:"year"`
	Month         int           `json:"month"`
	Label         string        `json:"label"`
	LeadingBlanks int           `json:"leadingBlanks"`
	Days          []CalendarDay `json:"days"`
}

// ParseEventDate parses a record Date as a plain calendar date.
func ParseEventDate(s string) (year, month, day int, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, 0, 0, false
	}
	return t.Year(), int(t.Month()), t.Day(), true
}

// ProjectCalendar places every dated record on its day in the given month.
// Records keep their input order within a day.
func ProjectCalendar(records []GiftRecord, year, month int) CalendarMonth {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	daysIn := first.AddDate(0, 1, -1).Day()
	cal := CalendarMonth{
		Year:          first.Year(),
		Month:         int(first.Month()),
		Label:         first.Format("January 2006"),
		LeadingBlanks: int(first.Weekday()),
		Days:          make([]CalendarDay, daysIn),
	}
	for i := range cal.Days {
		cal.Days[i] = CalendarDay{Day: i + 1, Events: []string{}}
	}
	for _, r := range records {
		y, m, d, ok := ParseEventDate(r.Date)
		if !ok || y != cal.Year || m != cal.Month {
			continue
		}
		cal.Days[d-1].Events = append(cal.Days[d-1].Events, r.Name)
	}
	return cal
}
