package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/appointments"
	"github.com/wolfman30/booking-portal/internal/auth"
	"github.com/wolfman30/booking-portal/internal/businesses"
	"github.com/wolfman30/booking-portal/internal/categories"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("portal "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func required(fs *flag.FlagSet, names ...string) error {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, n := range names {
		if !set[n] {
			missing = append(missing, "--"+n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return nil
}

func table(a *app) *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	username := fs.String("username", "", "account username")
	password := fs.String("password", os.Getenv("PORTAL_PASSWORD"), "password (defaults to $PORTAL_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	profile, err := a.portal.Auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", profile.DisplayName(), profile.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.portal.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	p, err := a.portal.Auth.Profile(ctx)
	if err != nil {
		return err
	}
	printProfile(a, p)
	return nil
}

func printProfile(a *app, p *auth.Profile) {
	tw := table(a)
	fmt.Fprintf(tw, "Name\t%s\n", p.DisplayName())
	fmt.Fprintf(tw, "Username\t%s\n", p.Username)
	fmt.Fprintf(tw, "Email\t%s (verified: %t)\n", p.Email, p.IsEmailVerified)
	fmt.Fprintf(tw, "Phone\t%s\n", p.PhoneNumber)
	fmt.Fprintf(tw, "Role\t%s\n", p.Role)
	if !p.DateJoined.IsZero() {
		fmt.Fprintf(tw, "Joined\t%s\n", p.DateJoined.Format("2006-01-02"))
	}
	_ = tw.Flush()
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile")
	var upd auth.ProfileUpdate
	fs.StringVar(&upd.FirstName, "first-name", "", "first name")
	fs.StringVar(&upd.LastName, "last-name", "", "last name")
	fs.StringVar(&upd.Email, "email", "", "email address")
	fs.StringVar(&upd.PhoneNumber, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.portal.Auth.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	printProfile(a, p)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	var reg auth.Registration
	role := fs.String("role", "client", "client or business")
	fs.StringVar(&reg.Username, "username", "", "username")
	fs.StringVar(&reg.Email, "email", "", "email address")
	fs.StringVar(&reg.Password, "password", "", "password")
	fs.StringVar(&reg.Password2, "confirm-password", "", "password again")
	fs.StringVar(&reg.FirstName, "first-name", "", "first name")
	fs.StringVar(&reg.LastName, "last-name", "", "last name")
	fs.StringVar(&reg.PhoneNumber, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := auth.ParseRole(*role)
	if err != nil {
		return err
	}
	reg.Role = r
	out, err := a.portal.Auth.Register(ctx, reg)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, out.Message)
	if out.VerificationSent {
		fmt.Fprintf(a.out, "A verification link was sent to %s.\n", out.Email)
	}
	return nil
}

func printMessage(a *app, m *auth.Message) {
	if m.Message != "" {
		fmt.Fprintln(a.out, m.Message)
	}
}

func runVerifyEmail(ctx context.Context, a *app, args []string) error {
	fs := newFlags("verify-email")
	token := fs.String("token", "", "token from the verification link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.portal.Auth.VerifyEmail(ctx, *token)
	if err != nil {
		return err
	}
	printMessage(a, m)
	return nil
}

func runResendVerification(ctx context.Context, a *app, args []string) error {
	fs := newFlags("resend-verification")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := a.portal.Auth.CheckVerification(ctx, *email)
	if err == nil && status.IsVerified {
		fmt.Fprintln(a.out, "This email address is already verified.")
		return nil
	}
	m, err := a.portal.Auth.ResendVerification(ctx, *email)
	if err != nil {
		return err
	}
	printMessage(a, m)
	return nil
}

func runPasswordReset(ctx context.Context, a *app, args []string) error {
	fs := newFlags("password-reset")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.portal.Auth.RequestPasswordReset(ctx, *email)
	if err != nil {
		return err
	}
	printMessage(a, m)
	return nil
}

func runPasswordResetConfirm(ctx context.Context, a *app, args []string) error {
	fs := newFlags("password-reset-confirm")
	token := fs.String("token", "", "token from the reset link")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm-password", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkStrength(ctx, a, *password, ""); err != nil {
		return err
	}
	m, err := a.portal.Auth.ConfirmPasswordReset(ctx, *token, *password, *confirm)
	if err != nil {
		return err
	}
	printMessage(a, m)
	return nil
}

func runChangePassword(ctx context.Context, a *app, args []string) error {
	fs := newFlags("change-password")
	current := fs.String("current", "", "current password")
	password := fs.String("new", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return err
	}
	username := ""
	if u := a.portal.Auth.CurrentUser(ctx); u != nil {
		username = u.Username
	}
	if err := checkStrength(ctx, a, *password, username); err != nil {
		return err
	}
	m, err := a.portal.Auth.ChangePassword(ctx, *current, *password, *confirm)
	if err != nil {
		return err
	}
	printMessage(a, m)
	return nil
}

// checkStrength prints the backend's password requirements when the
// password would be rejected. A failed check is not fatal.
func checkStrength(ctx context.Context, a *app, password, username string) error {
	strength, err := a.portal.Auth.CheckPasswordStrength(ctx, password, username)
	if err != nil {
		a.logger.Debug("password strength check failed", "error", err)
		return nil
	}
	if strength.IsValid {
		return nil
	}
	return fmt.Errorf("password too weak: %s", strings.Join(strength.Errors, "; "))
}

func runCategories(ctx context.Context, a *app, args []string) error {
	fs := newFlags("categories")
	search := fs.String("search", "", "filter categories by name")
	id := fs.Int64("id", 0, "list the businesses of one category")
	grouped := fs.Bool("grouped", false, "list businesses grouped by category")
	featured := fs.Bool("featured", false, "list featured businesses")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *id != 0:
		list, err := a.portal.Categories.Businesses(ctx, *id, *search)
		if err != nil {
			return err
		}
		printBusinesses(a, list)
	case *grouped:
		groups, err := a.portal.Categories.Grouped(ctx)
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Fprintf(a.out, "%s (%d)\n", g.Category.Name, len(g.Businesses))
			for _, b := range g.Businesses {
				fmt.Fprintf(a.out, "  %d  %s\n", b.ID, b.Name)
			}
		}
	case *featured:
		list, err := a.portal.Categories.Featured(ctx)
		if err != nil {
			return err
		}
		printBusinesses(a, list)
	default:
		var list []categories.Category
		var err error
		if *search != "" {
			list, err = a.portal.Categories.Search(ctx, *search)
		} else {
			list, err = a.portal.Categories.List(ctx)
		}
		if err != nil {
			return err
		}
		tw := table(a)
		fmt.Fprintln(tw, "ID\tNAME\tBUSINESSES\tDESCRIPTION")
		for _, c := range list {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.ID, c.Name, c.BusinessCount, c.Description)
		}
		_ = tw.Flush()
	}
	return nil
}

func runCategoryRequest(ctx context.Context, a *app, args []string) error {
	fs := newFlags("category-request")
	var req categories.Request
	fs.StringVar(&req.BusinessName, "business-name", "", "your business name")
	fs.StringVar(&req.RequestedCategoryName, "name", "", "proposed category name")
	fs.StringVar(&req.RequestedDescription, "description", "", "what the category covers")
	fs.StringVar(&req.ServiceExamples, "examples", "", "example services")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := a.portal.Categories.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Category request %d submitted (%s)\n", status.ID, status.Status)
	return nil
}

func printBusinesses(a *app, list []businesses.Business) {
	tw := table(a)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPHONE\tADDRESS")
	for _, b := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.CategoryName, b.Phone, b.Address)
	}
	_ = tw.Flush()
}

func runBusinesses(ctx context.Context, a *app, args []string) error {
	fs := newFlags("businesses")
	mine := fs.Bool("mine", false, "only businesses you own")
	id := fs.Int64("id", 0, "show one business")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id != 0 {
		b, err := a.portal.Businesses.Get(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s\n%s\n%s  %s  %s\n\n", b.Name, b.Description, b.Address, b.Phone, b.Email)
		printServices(a, b.Services)
		fmt.Fprintln(a.out)
		printWeek(a, b.Week())
		return nil
	}
	var list []businesses.Business
	var err error
	if *mine {
		user := a.portal.Auth.CurrentUser(ctx)
		if user == nil {
			return fmt.Errorf("log in to list your businesses")
		}
		list, err = a.portal.Businesses.MyBusinesses(ctx, user.ID)
	} else {
		list, err = a.portal.Businesses.List(ctx)
	}
	if err != nil {
		return err
	}
	printBusinesses(a, list)
	return nil
}

func printServices(a *app, list []businesses.Service) {
	tw := table(a)
	fmt.Fprintln(tw, "ID\tSERVICE\tMINUTES\tPRICE\tACTIVE")
	for _, s := range list {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%t\n", s.ID, s.Name, s.Duration, s.Price.StringFixed(2), s.IsActive)
	}
	_ = tw.Flush()
}

func runServices(ctx context.Context, a *app, args []string) error {
	fs := newFlags("services")
	businessID := fs.Int64("business", 0, "business id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "business"); err != nil {
		return err
	}
	list, err := a.portal.Businesses.Services(ctx, *businessID)
	if err != nil {
		return err
	}
	printServices(a, list)
	return nil
}

func runServiceDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("service-delete")
	businessID := fs.Int64("business", 0, "business id")
	serviceID := fs.Int64("service", 0, "service id")
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "business", "service"); err != nil {
		return err
	}
	var confirm apiclient.Confirmation
	if *yes {
		confirm = apiclient.Confirm(businesses.ServiceTarget(*businessID, *serviceID))
	}
	if err := a.portal.Businesses.DeleteService(ctx, *businessID, *serviceID, confirm); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Service deleted")
	return nil
}

func runSlots(ctx context.Context, a *app, args []string) error {
	fs := newFlags("slots")
	businessID := fs.Int64("business", 0, "business id")
	serviceID := fs.Int64("service", 0, "service id")
	day := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "business", "service"); err != nil {
		return err
	}
	date, err := appointments.ParseDate(*day)
	if err != nil {
		return err
	}
	slots, err := a.portal.Appointments.AvailableSlots(ctx, *businessID, *serviceID, date)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintf(a.out, "No available time slots on %s\n", date)
		return nil
	}
	for _, s := range slots {
		fmt.Fprintln(a.out, s)
	}
	return nil
}

func runAppointments(ctx context.Context, a *app, args []string) error {
	fs := newFlags("appointments")
	mine := fs.Bool("mine", false, "your own appointments split into upcoming and past")
	businessID := fs.Int64("business", 0, "appointments of one of your businesses")
	statuses := fs.String("status", "", "comma separated statuses to keep")
	from := fs.String("from", "", "first date (YYYY-MM-DD)")
	to := fs.String("to", "", "last date (YYYY-MM-DD)")
	calendar := fs.Bool("calendar", false, "group by day")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var keep []appointments.Status
	for _, s := range strings.Split(*statuses, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		st, err := appointments.ParseStatus(s)
		if err != nil {
			return err
		}
		keep = append(keep, st)
	}
	var fromDate, toDate appointments.Date
	var err error
	if *from != "" {
		if fromDate, err = appointments.ParseDate(*from); err != nil {
			return err
		}
	}
	if *to != "" {
		if toDate, err = appointments.ParseDate(*to); err != nil {
			return err
		}
	}
	filter := func(list []appointments.Appointment) []appointments.Appointment {
		return appointments.FilterByDateRange(appointments.FilterByStatus(list, keep...), fromDate, toDate)
	}

	if *mine {
		m, err := a.portal.Appointments.Mine(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Upcoming")
		printAppointments(a, filter(m.Upcoming))
		fmt.Fprintln(a.out, "\nPast")
		printAppointments(a, filter(m.Past))
		return nil
	}

	var list []appointments.Appointment
	user := a.portal.Auth.CurrentUser(ctx)
	if *businessID != 0 || (user != nil && user.Role == auth.RoleBusiness) {
		list, err = a.portal.Appointments.ForBusinesses(ctx, *businessID)
	} else {
		list, err = a.portal.Appointments.List(ctx)
	}
	if err != nil {
		return err
	}
	list = filter(list)
	if *calendar {
		for _, g := range appointments.GroupByDate(list) {
			fmt.Fprintf(a.out, "%s %s\n", g.Date, g.Date.Weekday())
			for _, appt := range g.Appointments {
				fmt.Fprintf(a.out, "  %s-%s  %-10s %s\n", appt.StartTime, appt.EndTime, appt.Status.Label(), describe(appt))
			}
		}
		return nil
	}
	appointments.SortChronological(list)
	printAppointments(a, list)
	counts := appointments.CountByStatus(list)
	parts := make([]string, 0, len(appointments.Statuses))
	for _, s := range appointments.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", s.Label(), counts[s]))
	}
	fmt.Fprintf(a.out, "\n%s\n", strings.Join(parts, " | "))
	return nil
}

func describe(appt appointments.Appointment) string {
	var parts []string
	if appt.ServiceDetails != nil {
		parts = append(parts, appt.ServiceDetails.Name)
	}
	if appt.BusinessDetails != nil {
		parts = append(parts, "at "+appt.BusinessDetails.Name)
	}
	if appt.ClientDetails != nil {
		parts = append(parts, "for "+appt.ClientDetails.DisplayName())
	}
	return strings.Join(parts, " ")
}

func printAppointments(a *app, list []appointments.Appointment) {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "  (none)")
		return
	}
	tw := table(a)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tSTATUS\tDETAILS")
	for _, appt := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\n", appt.ID, appt.Date, appt.StartTime, appt.EndTime, appt.Status.Label(), describe(appt))
	}
	_ = tw.Flush()
}

func runCancel(ctx context.Context, a *app, args []string) error {
	fs := newFlags("cancel")
	rawID := fs.String("id", "", "appointment id")
	yes := fs.Bool("yes", false, "confirm cancellation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := uuid.Parse(*rawID)
	if err != nil {
		return fmt.Errorf("invalid appointment id %q: %w", *rawID, err)
	}
	var confirm apiclient.Confirmation
	if *yes {
		confirm = apiclient.Confirm(appointments.Target(id))
	}
	msg, err := a.portal.Appointments.Cancel(ctx, id, confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}
