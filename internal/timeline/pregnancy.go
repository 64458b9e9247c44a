// Package timeline derives pregnancy progress and appointment status from
// stored profile and record snapshots. Nothing here touches the database,
// the network, or the wall clock; callers pass "now" in.
package timeline

import (
	"math"
	"strings"
	"time"
)

const (
	// TotalWeeks is the length of a full-term pregnancy counted from the LMP-aligned start.
	TotalWeeks = 40

	week = 7 * 24 * time.Hour

	// DateLayout is the calendar date format stored for due dates and records.
	DateLayout = "2006-01-02"
)

// Clock supplies the current instant. Handlers inject it so tests can pin "now".
type Clock func() time.Time

// SystemClock reads the wall clock.
func SystemClock() time.Time { return time.Now() }

// PregnancyInfo holds the values derived from a due date at a given instant.
type PregnancyInfo struct {
	DueDate            time.Time `json:"dueDate"`
	CurrentWeek        int       `json:"currentWeek"`
	WeeksRemaining     int       `json:"weeksRemaining"`
	Trimester          int       `json:"trimester"`
	ProgressPercentage float64   `json:"progressPercentage"`
	// Complete is false when no due date was known and the fields above are placeholders.
	Complete bool `json:"complete"`
}

// Options tunes the derivation.
type Options struct {
	// ClampOverdue caps CurrentWeek at 40 and progress at 100%.
	// When false, overdue pregnancies report week 41, 42, ...
	ClampOverdue bool
	// Location is used to interpret calendar dates. Nil means UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// ComputePregnancyInfo derives week, trimester and progress for dueDate at now.
// A nil dueDate yields the zero-state used for incomplete profiles.
func ComputePregnancyInfo(dueDate *time.Time, now time.Time, opts Options) PregnancyInfo {
	if dueDate == nil {
		return PregnancyInfo{
			DueDate:        now,
			CurrentWeek:    0,
			WeeksRemaining: TotalWeeks,
			Trimester:      1,
		}
	}

	start := dueDate.Add(-TotalWeeks * week)
	elapsed := float64(now.Sub(start)) / float64(week)

	currentWeek := int(math.Ceil(elapsed))
	if currentWeek < 1 {
		currentWeek = 1
	}
	if opts.ClampOverdue && currentWeek > TotalWeeks {
		currentWeek = TotalWeeks
	}

	weeksRemaining := TotalWeeks - currentWeek
	if weeksRemaining < 0 {
		weeksRemaining = 0
	}

	return PregnancyInfo{
		DueDate:            *dueDate,
		CurrentWeek:        currentWeek,
		WeeksRemaining:     weeksRemaining,
		Trimester:          TrimesterForWeek(currentWeek),
		ProgressPercentage: float64(currentWeek) / TotalWeeks * 100,
		Complete:           true,
	}
}

// TrimesterForWeek maps a gestational week to 1, 2 or 3.
func TrimesterForWeek(w int) int {
	switch {
	case w > 27:
		return 3
	case w > 13:
		return 2
	default:
		return 1
	}
}

// ParseDueDate parses a stored due date. Empty or malformed input means the
// profile is incomplete, so it returns nil rather than an error.
func ParseDueDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		// Clients may also send RFC 3339 timestamps.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
	}
	return &t
}
