package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/booking-portal/internal/hours"
)

// errHoursNotLoaded stops --save from overwriting server hours that could
// not be read.
var errHoursNotLoaded = errors.New("saved hours could not be loaded; refusing to overwrite them (use --template or --force)")

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ", ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// runHours loads a business's week, applies the requested edits in order
// (template, toggles, additions, removals) and saves when asked.
func runHours(ctx context.Context, a *app, args []string) error {
	fs := newFlags("hours")
	businessID := fs.Int64("business", 0, "business id")
	template := fs.String("template", "", "replace the week with a template: "+strings.Join(hours.TemplateNames(), ", "))
	var toggles, adds, removes listFlag
	fs.Var(&toggles, "toggle", "open or close a day, e.g. sun (repeatable)")
	fs.Var(&adds, "add", `add a period, e.g. "mon 09:00-12:00 Morning" (repeatable)`)
	fs.Var(&removes, "remove", "remove a period by position, e.g. mon:1 (repeatable)")
	save := fs.Bool("save", false, "save the result")
	force := fs.Bool("force", false, "save even if the current hours could not be loaded")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "business"); err != nil {
		return err
	}

	editor := a.portal.HoursEditor(*businessID)
	loadErr := editor.Load(ctx)
	if loadErr != nil {
		fmt.Fprintf(a.out, "Could not load saved hours (%s); starting from an empty week.\n", loadErr)
	}
	if *template != "" {
		if err := editor.ApplyTemplate(*template); err != nil {
			return err
		}
	}
	for _, t := range toggles {
		day, err := hours.ParseWeekday(t)
		if err != nil {
			return err
		}
		if err := editor.ToggleClosed(day); err != nil {
			return err
		}
	}
	for _, arg := range adds {
		day, in, err := parsePeriod(arg)
		if err != nil {
			return err
		}
		if err := editor.AddTimePeriod(day, in); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
	}
	for _, arg := range removes {
		day, index, err := parseRemoval(arg)
		if err != nil {
			return err
		}
		if err := editor.RemoveTimePeriod(day, index); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
	}

	printWeek(a, editor.Week())
	if !*save {
		return nil
	}
	if loadErr != nil && *template == "" && !*force {
		return errHoursNotLoaded
	}
	if err := editor.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "\nBusiness hours saved")
	return nil
}

// parsePeriod reads "day HH:MM-HH:MM [name...]".
func parsePeriod(arg string) (hours.Weekday, hours.PeriodInput, error) {
	fields := strings.Fields(arg)
	if len(fields) < 2 {
		return 0, hours.PeriodInput{}, fmt.Errorf("period %q: want \"day HH:MM-HH:MM [name]\"", arg)
	}
	day, err := hours.ParseWeekday(fields[0])
	if err != nil {
		return 0, hours.PeriodInput{}, err
	}
	start, end, _ := strings.Cut(fields[1], "-")
	return day, hours.PeriodInput{Start: start, End: end, Name: strings.Join(fields[2:], " ")}, nil
}

// parseRemoval reads "day:position" with a 1-based position.
func parseRemoval(arg string) (hours.Weekday, int, error) {
	dayPart, posPart, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, 0, fmt.Errorf("removal %q: want day:position", arg)
	}
	day, err := hours.ParseWeekday(dayPart)
	if err != nil {
		return 0, 0, err
	}
	pos, err := strconv.Atoi(posPart)
	if err != nil || pos < 1 {
		return 0, 0, fmt.Errorf("removal %q: position must be 1 or more", arg)
	}
	return day, pos - 1, nil
}

func printWeek(a *app, week hours.Week) {
	tw := table(a)
	for _, day := range week {
		switch day.Status() {
		case hours.StatusClosed:
			fmt.Fprintf(tw, "%s\tClosed\n", day.Day)
		case hours.StatusUnconfigured:
			fmt.Fprintf(tw, "%s\tNo hours set\n", day.Day)
		case hours.StatusOpen:
			periods := make([]string, 0, len(day.TimePeriods))
			for _, p := range day.TimePeriods {
				periods = append(periods, p.String())
			}
			fmt.Fprintf(tw, "%s\t%s\n", day.Day, strings.Join(periods, ", "))
		}
	}
	_ = tw.Flush()
}
