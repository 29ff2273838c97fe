package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-portal/internal/config"
	"github.com/wolfman30/booking-portal/internal/guard"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

// command is one CLI verb. route, when set, is checked by the guard
// before run.
type command struct {
	summary string
	route   string
	run     func(ctx context.Context, app *app, args []string) error
}

type app struct {
	portal *bootstrap.Portal
	out    io.Writer
	logger *logging.Logger
}

var commands = map[string]command{
	"login":                  {summary: "sign in", run: runLogin},
	"logout":                 {summary: "sign out and forget tokens", run: runLogout},
	"whoami":                 {summary: "show the signed-in account", route: "/profile", run: runWhoami},
	"profile":                {summary: "update profile fields", route: "/profile", run: runProfile},
	"register":               {summary: "create an account", run: runRegister},
	"verify-email":           {summary: "confirm an email address with a token", run: runVerifyEmail},
	"resend-verification":    {summary: "send a new verification email", run: runResendVerification},
	"password-reset":         {summary: "request a password reset email", run: runPasswordReset},
	"password-reset-confirm": {summary: "set a new password with a reset token", run: runPasswordResetConfirm},
	"change-password":        {summary: "change the signed-in password", route: "/profile", run: runChangePassword},
	"categories":             {summary: "list or search categories", run: runCategories},
	"category-request":       {summary: "ask for a new category", route: "/business/profile", run: runCategoryRequest},
	"businesses":             {summary: "list businesses", run: runBusinesses},
	"services":               {summary: "list a business's services", run: runServices},
	"service-delete":         {summary: "delete a service", route: "/business/services", run: runServiceDelete},
	"hours":                  {summary: "show or edit business hours", route: "/business/hours", run: runHours},
	"slots":                  {summary: "list available slots", run: runSlots},
	"book":                   {summary: "book an appointment for yourself", route: "/book/:businessId/:serviceId", run: runBook},
	"walk-in":                {summary: "book a walk-in client", route: "/business/create-appointment", run: runWalkIn},
	"appointments":           {summary: "list appointments", route: "/profile", run: runAppointments},
	"cancel":                 {summary: "cancel an appointment", route: "/profile", run: runCancel},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(os.Stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage(os.Stderr)
		return 2
	}

	// .env is optional
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	portal, err := bootstrap.BuildPortal(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to start portal", "error", err)
		return 1
	}
	defer portal.Close()

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	a := &app{portal: portal, out: os.Stdout, logger: logger}
	if cmd.route != "" {
		if err := portal.Guard.Check(ctx, cmd.route).Err(); err != nil {
			return report(err)
		}
	}
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		return report(err)
	}
	return 0
}

func report(err error) int {
	switch {
	case errors.Is(err, guard.ErrNotAuthenticated):
		fmt.Fprintln(os.Stderr, "Please log in first: portal login --username <name>")
	case errors.Is(err, guard.ErrForbidden):
		fmt.Fprintln(os.Stderr, "Your account type cannot use this command.")
	case errors.Is(err, apiclient.ErrConfirmationRequired):
		fmt.Fprintln(os.Stderr, "This action cannot be undone. Re-run with --yes to confirm.")
	default:
		fmt.Fprintln(os.Stderr, apiclient.UserMessage(err, err.Error()))
	}
	return 1
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: portal <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %s\n", name, commands[name].summary)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
}
