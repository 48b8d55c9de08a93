package core

import "time"

// Countdown is the whole days, hours and minutes left until an event.
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// NextEventDate returns the next May 24th at 09:00 in now's location,
// rolling over to next year once this year's date has passed.
func NextEventDate(now time.Time) time.Time {
	target := time.Date(now.Year(), time.May, 24, 9, 0, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(1, 0, 0)
	}
	return target
}

// CountdownTo splits the time left until target. Past targets yield zero.
func CountdownTo(now, target time.Time) Countdown {
	diff := target.Sub(now)
	if diff < 0 {
		return Countdown{}
	}
	minutes := int(diff / time.Minute)
	days := minutes / (60 * 24)
	return Countdown{
		Days:    days,
		Hours:   (minutes - days*24*60) / 60,
		Minutes: minutes % 60,
	}
}
