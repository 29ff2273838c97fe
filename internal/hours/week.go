// Package hours models a business's weekly opening hours: seven days, each
// either closed or holding zero or more disjoint named periods.
package hours

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrMissingTime  = errors.New("hours: please enter both start and end time")
	ErrInvalidRange = errors.New("hours: start time must be before end time")
	ErrOverlap      = errors.New("hours: time periods cannot overlap")
	ErrDayClosed    = errors.New("hours: day is closed")
	ErrNoSuchPeriod = errors.New("hours: no such time period")
)

// TimePeriod is one half-open opening interval [Start, End).
type TimePeriod struct {
	ID    *int64 `json:"id,omitempty"`
	Start Clock  `json:"start_time"`
	End   Clock  `json:"end_time"`
	Name  string `json:"period_name"`
}

func (p TimePeriod) overlaps(o TimePeriod) bool {
	return p.Start < o.End && p.End > o.Start
}

func (p TimePeriod) String() string {
	if p.Name == "" {
		return fmt.Sprintf("%s-%s", p.Start, p.End)
	}
	return fmt.Sprintf("%s-%s (%s)", p.Start, p.End, p.Name)
}

// PeriodInput is an unvalidated period as typed by a user.
type PeriodInput struct {
	Start string
	End   string
	Name  string
}

// Status distinguishes a closed day from an open day nobody configured.
type Status int

const (
	StatusUnconfigured Status = iota
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUnconfigured:
		return "not configured"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Day is one row of the week. A closed day never holds periods.
type Day struct {
	ID          *int64       `json:"id,omitempty"`
	Day         Weekday      `json:"day"`
	IsClosed    bool         `json:"is_closed"`
	TimePeriods []TimePeriod `json:"time_periods"`
}

func (d Day) Status() Status {
	switch {
	case d.IsClosed:
		return StatusClosed
	case len(d.TimePeriods) == 0:
		return StatusUnconfigured
	default:
		return StatusOpen
	}
}

func (d Day) clone() Day {
	out := d
	out.TimePeriods = append([]TimePeriod(nil), d.TimePeriods...)
	if out.TimePeriods == nil {
		out.TimePeriods = []TimePeriod{}
	}
	return out
}

func (d Day) String() string {
	switch d.Status() {
	case StatusClosed:
		return fmt.Sprintf("%-9s closed", d.Day)
	case StatusUnconfigured:
		return fmt.Sprintf("%-9s open, no hours set", d.Day)
	case StatusOpen:
		parts := make([]string, len(d.TimePeriods))
		for i, p := range d.TimePeriods {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%-9s %s", d.Day, strings.Join(parts, ", "))
	}
	return d.Day.String()
}

// Week always holds exactly one Day per weekday, indexed by Weekday.
type Week [DaysPerWeek]Day

// NewWeek returns seven open days with no periods. This is deliberately
// different from closed.
func NewWeek() Week {
	var w Week
	for d := Monday; d <= Sunday; d++ {
		w[d] = Day{Day: d, TimePeriods: []TimePeriod{}}
	}
	return w
}

// Merge overlays server rows onto a fresh week by day value. Missing days
// keep the default; unknown day values are ignored.
func Merge(server []Day) Week {
	w := NewWeek()
	for _, sd := range server {
		if !sd.Day.Valid() {
			continue
		}
		day := Day{ID: sd.ID, Day: sd.Day, IsClosed: sd.IsClosed, TimePeriods: []TimePeriod{}}
		if !sd.IsClosed {
			day.TimePeriods = append(day.TimePeriods, sd.TimePeriods...)
			sortPeriods(day.TimePeriods)
		}
		w[sd.Day] = day
	}
	return w
}

// Clone returns a deep copy.
func (w Week) Clone() Week {
	var out Week
	for i := range w {
		out[i] = w[i].clone()
	}
	return out
}

// Day returns a copy of one row.
func (w Week) Day(d Weekday) (Day, error) {
	if !d.Valid() {
		return Day{}, ErrInvalidDay
	}
	return w[d].clone(), nil
}

// ToggleClosed flips a day. Closing discards its periods for good.
func (w *Week) ToggleClosed(d Weekday) error {
	if !d.Valid() {
		return ErrInvalidDay
	}
	w[d].IsClosed = !w[d].IsClosed
	if w[d].IsClosed {
		w[d].TimePeriods = []TimePeriod{}
	}
	return nil
}

// AddTimePeriod validates in against the day and inserts it in start order.
func (w *Week) AddTimePeriod(d Weekday, in PeriodInput) error {
	if !d.Valid() {
		return ErrInvalidDay
	}
	if strings.TrimSpace(in.Start) == "" || strings.TrimSpace(in.End) == "" {
		return ErrMissingTime
	}
	start, err := ParseClock(in.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(in.End)
	if err != nil {
		return err
	}
	if start >= end {
		return ErrInvalidRange
	}
	if w[d].IsClosed {
		return ErrDayClosed
	}
	candidate := TimePeriod{Start: start, End: end, Name: strings.TrimSpace(in.Name)}
	for _, p := range w[d].TimePeriods {
		if candidate.overlaps(p) {
			return fmt.Errorf("%w: %s conflicts with %s", ErrOverlap, candidate, p)
		}
	}
	periods := append(append([]TimePeriod{}, w[d].TimePeriods...), candidate)
	sortPeriods(periods)
	w[d].TimePeriods = periods
	return nil
}

// RemoveTimePeriod deletes the period at index.
func (w *Week) RemoveTimePeriod(d Weekday, index int) error {
	if !d.Valid() {
		return ErrInvalidDay
	}
	periods := w[d].TimePeriods
	if index < 0 || index >= len(periods) {
		return fmt.Errorf("%w: index %d", ErrNoSuchPeriod, index)
	}
	w[d].TimePeriods = append(append([]TimePeriod{}, periods[:index]...), periods[index+1:]...)
	return nil
}

// OpenAt reports whether some period on d contains c.
func (w Week) OpenAt(d Weekday, c Clock) bool {
	if !d.Valid() || w[d].IsClosed {
		return false
	}
	for _, p := range w[d].TimePeriods {
		if p.Start <= c && c < p.End {
			return true
		}
	}
	return false
}

func sortPeriods(periods []TimePeriod) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Start < periods[j].Start
	})
}

// BulkPayload is the body of the bulk hours update.
type BulkPayload struct {
	BusinessHours []DayPayload `json:"business_hours"`
}

type DayPayload struct {
	Day         Weekday         `json:"day"`
	IsClosed    bool            `json:"is_closed"`
	TimePeriods []PeriodPayload `json:"time_periods"`
}

type PeriodPayload struct {
	StartTime  Clock  `json:"start_time"`
	EndTime    Clock  `json:"end_time"`
	PeriodName string `json:"period_name"`
}

// Payload serialises all seven days. Closed days always carry an empty
// period list.
func (w Week) Payload() BulkPayload {
	out := BulkPayload{BusinessHours: make([]DayPayload, 0, DaysPerWeek)}
	for _, day := range w {
		dp := DayPayload{Day: day.Day, IsClosed: day.IsClosed, TimePeriods: []PeriodPayload{}}
		if !day.IsClosed {
			for _, p := range day.TimePeriods {
				dp.TimePeriods = append(dp.TimePeriods, PeriodPayload{StartTime: p.Start, EndTime: p.End, PeriodName: p.Name})
			}
		}
		out.BusinessHours = append(out.BusinessHours, dp)
	}
	return out
}
