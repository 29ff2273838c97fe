package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/wolfman30/booking-portal/internal/appointments"
	"github.com/wolfman30/booking-portal/internal/booking"
	"github.com/wolfman30/booking-portal/internal/hours"
)

type bookFlags struct {
	business int64
	service  int64
	date     string
	start    string
	notes    string
}

func (b *bookFlags) register(fs *flag.FlagSet) {
	fs.Int64Var(&b.business, "business", 0, "business id")
	fs.Int64Var(&b.service, "service", 0, "service id")
	fs.StringVar(&b.date, "date", "", "date (YYYY-MM-DD)")
	fs.StringVar(&b.start, "time", "", "slot start time (HH:MM), see the slots command")
	fs.StringVar(&b.notes, "notes", "", "notes for the business")
}

func runBook(ctx context.Context, a *app, args []string) error {
	fs := newFlags("book")
	var bf bookFlags
	bf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "business", "service", "date", "time"); err != nil {
		return err
	}
	return book(ctx, a, booking.SelfService, bf, appointments.ClientInfo{})
}

func runWalkIn(ctx context.Context, a *app, args []string) error {
	fs := newFlags("walk-in")
	var bf bookFlags
	bf.register(fs)
	var client appointments.ClientInfo
	fs.StringVar(&client.FirstName, "first-name", "", "client first name")
	fs.StringVar(&client.LastName, "last-name", "", "client last name")
	fs.StringVar(&client.Email, "email", "", "client email")
	fs.StringVar(&client.PhoneNumber, "phone", "", "client phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "business", "service", "date", "time"); err != nil {
		return err
	}
	return book(ctx, a, booking.WalkIn, bf, client)
}

// book drives one workflow from selection to submission.
func book(ctx context.Context, a *app, mode booking.Mode, bf bookFlags, client appointments.ClientInfo) error {
	date, err := appointments.ParseDate(bf.date)
	if err != nil {
		return err
	}
	start, err := hours.ParseClock(bf.start)
	if err != nil {
		return err
	}

	wf := a.portal.BookingWorkflow(mode)
	if err := wf.SelectBusiness(ctx, bf.business); err != nil {
		return err
	}
	if err := wf.SelectService(bf.service); err != nil {
		return err
	}
	if err := wf.SelectDate(ctx, date); err != nil {
		return err
	}
	view := wf.View()
	if view.State == booking.StateSlotsEmpty {
		return fmt.Errorf("no available time slots on %s", date)
	}
	var chosen *appointments.Slot
	for i := range view.Slots {
		if view.Slots[i].StartTime == start {
			chosen = &view.Slots[i]
			break
		}
	}
	if chosen == nil {
		fmt.Fprintln(a.out, "Available times:")
		for _, s := range view.Slots {
			fmt.Fprintf(a.out, "  %s\n", s)
		}
		return fmt.Errorf("%s is not available on %s", start, date)
	}
	if err := wf.SelectSlot(*chosen); err != nil {
		return err
	}
	if err := wf.SetNotes(bf.notes); err != nil {
		return err
	}
	if mode == booking.WalkIn {
		if err := wf.SetClientInfo(client); err != nil {
			return err
		}
	}
	created, err := wf.Submit(ctx)
	if err != nil {
		if msg := wf.View().Error; msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	fmt.Fprintf(a.out, "Appointment %s booked for %s %s-%s (%s)\n",
		created.ID, created.Date, created.StartTime, created.EndTime, created.Status.Label())
	return nil
}
