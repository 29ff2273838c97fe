package hours

import (
	"errors"
	"fmt"
	"sort"
)

const (
	TemplateWeekdays95    = "weekdays_9_5"
	TemplateSplitSchedule = "split_schedule"
	TemplateClearAll      = "clear_all"
)

var ErrUnknownTemplate = errors.New("hours: unknown template")

var templates = map[string]func() Week{
	TemplateWeekdays95: func() Week {
		w := NewWeek()
		for d := Monday; d <= Sunday; d++ {
			if d >= Saturday {
				w[d].IsClosed = true
				continue
			}
			w[d].TimePeriods = []TimePeriod{period("09:00", "17:00", "Full Day")}
		}
		return w
	},
	TemplateSplitSchedule: func() Week {
		w := NewWeek()
		for d := Monday; d <= Friday; d++ {
			w[d].TimePeriods = []TimePeriod{
				period("09:00", "14:00", "Morning"),
				period("17:00", "21:00", "Evening"),
			}
		}
		w[Saturday].TimePeriods = []TimePeriod{period("10:00", "17:00", "Saturday Hours")}
		w[Sunday].IsClosed = true
		return w
	},
	TemplateClearAll: NewWeek,
}

func period(start, end, name string) TimePeriod {
	return TimePeriod{Start: MustClock(start), End: MustClock(end), Name: name}
}

// ApplyTemplate builds the week for a named preset. The result depends
// only on name.
func ApplyTemplate(name string) (Week, error) {
	build, ok := templates[name]
	if !ok {
		return Week{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return build(), nil
}

// TemplateNames lists the available presets in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
