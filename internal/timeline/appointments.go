package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the derived state of an appointment. It is never persisted.
type Status string

const (
	StatusUpcoming  Status = "Upcoming"
	StatusCompleted Status = "Completed"
	// StatusMissed is only assigned by SplitMissed, from an explicit attendance flag.
	StatusMissed Status = "Missed"
)

var timeLayouts = []string{"15:04", "15:04:05"}

// Schedulable is anything with a calendar date and a time of day.
type Schedulable interface {
	RecordID() string
	ScheduledDate() string
	ScheduledTime() string
}

// MalformedRecordError reports a record whose date or time could not be parsed.
type MalformedRecordError struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Time string `json:"time"`
	Err  error  `json:"-"`
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed appointment %q (date=%q time=%q): %v", e.ID, e.Date, e.Time, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Annotated pairs a record with its combined instant and derived status.
type Annotated[T Schedulable] struct {
	Record T         `json:"record"`
	At     time.Time `json:"at"`
	Status Status    `json:"status"`
}

// Partition is the result of PartitionAndSortAppointments.
type Partition[T Schedulable] struct {
	Upcoming  []Annotated[T]         `json:"upcoming"`
	Completed []Annotated[T]         `json:"completed"`
	Malformed []MalformedRecordError `json:"malformed,omitempty"`
}

// AppointmentInstant combines a YYYY-MM-DD date and an HH:MM[:SS] time in loc.
func AppointmentInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %w", err)
	}

	clock = strings.TrimSpace(clock)
	var tod time.Time
	for _, layout := range timeLayouts {
		if tod, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time: %w", err)
	}

	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
}

// ClassifyAppointment returns Completed when the appointment instant is at or
// before now, Upcoming otherwise.
func ClassifyAppointment(date, clock string, now time.Time, loc *time.Location) (Status, time.Time, error) {
	at, err := AppointmentInstant(date, clock, loc)
	if err != nil {
		return "", time.Time{}, &MalformedRecordError{Date: date, Time: clock, Err: err}
	}
	if at.After(now) {
		return StatusUpcoming, at, nil
	}
	return StatusCompleted, at, nil
}

// PartitionAndSortAppointments tags every record and splits them into upcoming
// (soonest first) and completed (most recent first). Ties keep input order.
// Records with an unparseable date or time are reported in Malformed and left
// out of both lists. The input slice is not modified.
func PartitionAndSortAppointments[T Schedulable](records []T, now time.Time, loc *time.Location) Partition[T] {
	p := Partition[T]{
		Upcoming:  make([]Annotated[T], 0),
		Completed: make([]Annotated[T], 0),
	}

	for _, r := range records {
		status, at, err := ClassifyAppointment(r.ScheduledDate(), r.ScheduledTime(), now, loc)
		if err != nil {
			merr := err.(*MalformedRecordError)
			merr.ID = r.RecordID()
			p.Malformed = append(p.Malformed, *merr)
			continue
		}
		a := Annotated[T]{Record: r, At: at, Status: status}
		if status == StatusUpcoming {
			p.Upcoming = append(p.Upcoming, a)
		} else {
			p.Completed = append(p.Completed, a)
		}
	}

	sort.SliceStable(p.Upcoming, func(i, j int) bool {
		return p.Upcoming[i].At.Before(p.Upcoming[j].At)
	})
	sort.SliceStable(p.Completed, func(i, j int) bool {
		return p.Completed[i].At.After(p.Completed[j].At)
	})

	return p
}

// NextUpcoming returns the soonest upcoming entry, if any.
func (p Partition[T]) NextUpcoming() (Annotated[T], bool) {
	if len(p.Upcoming) == 0 {
		var zero Annotated[T]
		return zero, false
	}
	return p.Upcoming[0], true
}

// SplitMissed moves completed entries for which missed reports true into a
// separate list marked StatusMissed. Order is preserved in both lists.
func SplitMissed[T Schedulable](completed []Annotated[T], missed func(T) bool) (attended, skipped []Annotated[T]) {
	attended = make([]Annotated[T], 0, len(completed))
	skipped = make([]Annotated[T], 0)
	for _, a := range completed {
		if missed(a.Record) {
			a.Status = StatusMissed
			skipped = append(skipped, a)
			continue
		}
		attended = append(attended, a)
	}
	return attended, skipped
}
