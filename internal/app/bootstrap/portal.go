// Package bootstrap wires the portal's services from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/appointments"
	"github.com/wolfman30/booking-portal/internal/auth"
	"github.com/wolfman30/booking-portal/internal/booking"
	"github.com/wolfman30/booking-portal/internal/businesses"
	"github.com/wolfman30/booking-portal/internal/categories"
	appconfig "github.com/wolfman30/booking-portal/internal/config"
	"github.com/wolfman30/booking-portal/internal/guard"
	"github.com/wolfman30/booking-portal/internal/hours"
	"github.com/wolfman30/booking-portal/internal/observability/metrics"
	"github.com/wolfman30/booking-portal/internal/session"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

// Portal holds one fully wired set of services sharing a session.
type Portal struct {
	Session      *session.Manager
	API          *apiclient.Client
	Auth         *auth.Service
	Guard        *guard.Guard
	Businesses   *businesses.Client
	Categories   *categories.Client
	Appointments *appointments.Client
	Metrics      *metrics.ClientMetrics

	logger  *logging.Logger
	closeFn func()
}

// BuildPortal wires the session store, API client and services. reg may be
// nil to skip metrics.
func BuildPortal(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*Portal, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	store, closeFn, err := BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var cm *metrics.ClientMetrics
	if reg != nil {
		cm = metrics.NewClientMetrics(reg)
	}

	mgr := session.NewManager(store, nil, logger)
	mgr.SetMetrics(cm)
	api := apiclient.New(apiclient.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
		Logger:    logger,
		Metrics:   cm,
	}, mgr)
	mgr.SetRefresher(apiclient.NewTokenRefresher(api))

	authSvc := auth.NewService(api, mgr, logger)
	return &Portal{
		Session:      mgr,
		API:          api,
		Auth:         authSvc,
		Guard:        guard.New(authSvc, guard.DefaultPolicy()),
		Businesses:   businesses.NewClient(api, logger),
		Categories:   categories.NewClient(api, logger),
		Appointments: appointments.NewClient(api, logger),
		Metrics:      cm,
		logger:       logger,
		closeFn:      closeFn,
	}, nil
}

// HoursEditor returns an editor bound to one business.
func (p *Portal) HoursEditor(businessID int64) *hours.Editor {
	return hours.NewEditor(p.Businesses, businessID, p.logger)
}

// BookingWorkflow starts a fresh booking session.
func (p *Portal) BookingWorkflow(mode booking.Mode) *booking.Workflow {
	w := booking.New(mode, p.Businesses, p.Appointments, p.logger)
	w.SetMetrics(p.Metrics)
	return w
}

// Close releases the session backend.
func (p *Portal) Close() {
	if p.closeFn != nil {
		p.closeFn()
	}
}
