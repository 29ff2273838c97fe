package appointments

import (
	"sort"
	"time"

	"github.com/wolfman30/booking-portal/internal/hours"
)

// FilterByStatus keeps appointments whose status is one of statuses. No
// statuses means no filtering.
func FilterByStatus(list []Appointment, statuses ...Status) []Appointment {
	if len(statuses) == 0 {
		return append([]Appointment(nil), list...)
	}
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if want[a.Status] {
			out = append(out, a)
		}
	}
	return out
}

// FilterByDateRange keeps appointments with from <= date <= to. A zero
// bound is open.
func FilterByDateRange(list []Appointment, from, to Date) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if !from.IsZero() && a.Date.Before(from) {
			continue
		}
		if !to.IsZero() && a.Date.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func chronological(a, b Appointment) bool {
	if a.Date != b.Date {
		return a.Date.Before(b.Date)
	}
	return a.StartTime < b.StartTime
}

// SortChronological orders by date then start time, in place.
func SortChronological(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool { return chronological(list[i], list[j]) })
}

// DayGroup is one calendar cell.
type DayGroup struct {
	Date         Date
	Appointments []Appointment
}

// GroupByDate buckets appointments per day, days ascending and each day
// ordered by start time.
func GroupByDate(list []Appointment) []DayGroup {
	sorted := append([]Appointment(nil), list...)
	SortChronological(sorted)
	var groups []DayGroup
	for _, a := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Date == a.Date {
			groups[n-1].Appointments = append(groups[n-1].Appointments, a)
			continue
		}
		groups = append(groups, DayGroup{Date: a.Date, Appointments: []Appointment{a}})
	}
	return groups
}

// Split divides appointments the way the backend does for
// my_appointments: upcoming starts today at or after now, or on a later
// day, ascending; everything else is past, most recent first.
func Split(list []Appointment, now time.Time) (upcoming, past []Appointment) {
	today := DateOf(now)
	clock := hours.ClockOf(now)
	upcoming, past = []Appointment{}, []Appointment{}
	for _, a := range list {
		if a.Date.After(today) || (a.Date == today && a.StartTime >= clock) {
			upcoming = append(upcoming, a)
		} else {
			past = append(past, a)
		}
	}
	SortChronological(upcoming)
	sort.SliceStable(past, func(i, j int) bool { return chronological(past[j], past[i]) })
	return upcoming, past
}

// CountByStatus tallies appointments for dashboard summaries.
func CountByStatus(list []Appointment) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, a := range list {
		counts[a.Status]++
	}
	return counts
}
