package model

import "time"

// Period is an inclusive date window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Contains reports whether t falls inside the window, comparing calendar days
// so that both endpoints are inclusive.
func (p Period) Contains(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(truncateDay(p.Start)) && !day.After(truncateDay(p.End))
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, -1)
	return Period{Start: start, End: end, Label: start.Format("January 2006")}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
