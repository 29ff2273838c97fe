// Package booking drives slot discovery and appointment creation for
// client self-service bookings and business walk-ins.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/appointments"
	"github.com/wolfman30/booking-portal/internal/businesses"
	"github.com/wolfman30/booking-portal/internal/observability/metrics"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.booking")

var (
	ErrNoBusiness       = errors.New("booking: select a business first")
	ErrNoService        = errors.New("booking: select a service first")
	ErrUnknownService   = errors.New("booking: service not offered by this business")
	ErrNoDate           = errors.New("booking: select a date")
	ErrPastDate         = errors.New("booking: date is in the past")
	ErrUnknownSlot      = errors.New("booking: slot is not in the loaded list")
	ErrNotWalkIn        = errors.New("booking: client details only apply to walk-ins")
	ErrSubmitInProgress = errors.New("booking: submission in progress")
	// ErrIncomplete is returned by Submit before any network call when
	// required draft fields are missing.
	ErrIncomplete = errors.New("booking: missing required fields")
	// ErrSuperseded is returned when a newer selection made a fetch
	// result irrelevant. The result was discarded.
	ErrSuperseded = errors.New("booking: superseded by a newer selection")
	// ErrServicesNotLoaded is returned by SelectService until the selected
	// business's service list has been fetched.
	ErrServicesNotLoaded = errors.New("booking: services not loaded")
)

const (
	msgSlotsFailed  = "Failed to load available time slots"
	msgSubmitFailed = "Failed to create appointment. Please try again."
)

// Catalog lists the services a business offers.
type Catalog interface {
	Services(ctx context.Context, businessID int64) ([]businesses.Service, error)
}

// Scheduler fetches availability and creates appointments.
type Scheduler interface {
	AvailableSlots(ctx context.Context, businessID, serviceID int64, date appointments.Date) ([]appointments.Slot, error)
	Create(ctx context.Context, req appointments.CreateRequest) (*appointments.Appointment, error)
}

// Draft is the appointment being assembled.
type Draft struct {
	Business int64
	Service  int64
	Date     appointments.Date
	Slot     *appointments.Slot
	Notes    string
	// Client is only used for walk-ins.
	Client appointments.ClientInfo
}

// View is a consistent snapshot for rendering.
type View struct {
	Mode     Mode
	State    State
	Draft    Draft
	Services []businesses.Service
	Slots    []appointments.Slot
	// Error is the message to show; empty when there is nothing to report.
	Error  string
	Booked *appointments.Appointment
}

// Busy reports whether a network call is in flight.
func (v View) Busy() bool {
	return v.State == StateSelectingDate || v.State == StateSubmitting
}

// Workflow is one booking session. It is safe for concurrent use; only
// the latest selection's fetch may commit.
type Workflow struct {
	mode      Mode
	catalog   Catalog
	scheduler Scheduler
	logger    *logging.Logger
	metrics   *metrics.ClientMetrics
	now       func() time.Time

	mu       sync.Mutex
	state    State
	draft    Draft
	services []businesses.Service
	slots    []appointments.Slot
	errMsg   string
	booked   *appointments.Appointment
	// servicesLoaded is set once services holds the selected business's list.
	servicesLoaded bool
	// gen advances on every selection that invalidates an in-flight slot
	// fetch; svcGen does the same for service list fetches.
	gen    uint64
	svcGen uint64
}

func New(mode Mode, catalog Catalog, scheduler Scheduler, logger *logging.Logger) *Workflow {
	if catalog == nil || scheduler == nil {
		panic("booking: catalog and scheduler required")
	}
	if mode != SelfService && mode != WalkIn {
		panic("booking: unknown mode")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		mode:      mode,
		catalog:   catalog,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
		state:     StateSelectingService,
	}
}

func (w *Workflow) SetMetrics(cm *metrics.ClientMetrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = cm
}

// View returns a copy of the current state.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Mode:     w.mode,
		State:    w.state,
		Draft:    w.draft,
		Services: append([]businesses.Service(nil), w.services...),
		Slots:    append([]appointments.Slot(nil), w.slots...),
		Error:    w.errMsg,
		Booked:   w.booked,
	}
	if w.draft.Slot != nil {
		slot := *w.draft.Slot
		v.Draft.Slot = &slot
	}
	return v
}

// SelectBusiness switches business, dropping the service, date, slot and
// slots, then fetches the business's services. Re-selecting the same
// business fetches again.
func (w *Workflow) SelectBusiness(ctx context.Context, businessID int64) error {
	if businessID <= 0 {
		return ErrNoBusiness
	}
	w.mu.Lock()
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return ErrSubmitInProgress
	}
	w.gen++
	w.svcGen++
	gen := w.svcGen
	w.draft.Business = businessID
	w.draft.Service = 0
	w.resetDateLocked()
	w.services = nil
	w.servicesLoaded = false
	w.mu.Unlock()

	services, err := w.catalog.Services(ctx, businessID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.svcGen != gen || w.draft.Business != businessID {
		return ErrSuperseded
	}
	if err != nil {
		w.errMsg = apiclient.UserMessage(err, "Failed to load services")
		return fmt.Errorf("booking: load services: %w", err)
	}
	w.services = activeServices(services)
	w.servicesLoaded = true
	return nil
}

func activeServices(all []businesses.Service) []businesses.Service {
	out := make([]businesses.Service, 0, len(all))
	for _, s := range all {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// SelectService switches service, dropping the date, slot and slots.
func (w *Workflow) SelectService(serviceID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	if w.draft.Business == 0 {
		return ErrNoBusiness
	}
	if serviceID <= 0 {
		return ErrNoService
	}
	if !w.servicesLoaded {
		return ErrServicesNotLoaded
	}
	if !offers(w.services, serviceID) {
		return fmt.Errorf("%w: %d", ErrUnknownService, serviceID)
	}
	w.gen++
	w.draft.Service = serviceID
	w.resetDateLocked()
	return nil
}

func offers(services []businesses.Service, id int64) bool {
	for _, s := range services {
		if s.ID == id {
			return true
		}
	}
	return false
}

// resetDateLocked drops everything downstream of the service choice.
func (w *Workflow) resetDateLocked() {
	w.draft.Date = appointments.Date{}
	w.draft.Slot = nil
	w.slots = nil
	w.errMsg = ""
	w.booked = nil
	w.state = StateSelectingService
}

// SelectDate clears any selected slot and fetches slots for the current
// business, service and date. An empty answer is not an error. A failed
// fetch leaves no slots and sets the view's Error.
func (w *Workflow) SelectDate(ctx context.Context, date appointments.Date) error {
	w.mu.Lock()
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return ErrSubmitInProgress
	}
	if err := w.checkSelectionLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if date.IsZero() {
		w.mu.Unlock()
		return ErrNoDate
	}
	if date.Before(appointments.DateOf(w.now())) {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPastDate, date)
	}
	w.gen++
	gen := w.gen
	businessID, serviceID := w.draft.Business, w.draft.Service
	w.draft.Date = date
	w.draft.Slot = nil
	w.slots = nil
	w.errMsg = ""
	w.booked = nil
	w.state = StateSelectingDate
	w.mu.Unlock()

	slots, err := w.scheduler.AvailableSlots(ctx, businessID, serviceID, date)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.draft.Business != businessID || w.draft.Service != serviceID || w.draft.Date != date {
		w.logger.Debug("discarding stale slots", "business_id", businessID, "service_id", serviceID, "date", date.String())
		return ErrSuperseded
	}
	if err != nil {
		w.slots = []appointments.Slot{}
		w.errMsg = apiclient.UserMessage(err, msgSlotsFailed)
		w.state = StateSlotsEmpty
		return fmt.Errorf("booking: load slots: %w", err)
	}
	w.slots = slots
	if len(slots) == 0 {
		w.state = StateSlotsEmpty
		return nil
	}
	w.state = StateSlotsLoaded
	return nil
}

func (w *Workflow) checkSelectionLocked() error {
	if w.draft.Business == 0 {
		return ErrNoBusiness
	}
	if w.draft.Service == 0 {
		return ErrNoService
	}
	return nil
}

// SelectSlot records the chosen slot. It must be one of the loaded slots.
func (w *Workflow) SelectSlot(slot appointments.Slot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateSlotsLoaded, StateSlotSelected, StateFailed:
	case StateSubmitting:
		return ErrSubmitInProgress
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	if !containsSlot(w.slots, slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	w.draft.Slot = &slot
	w.errMsg = ""
	w.state = StateSlotSelected
	return nil
}

func containsSlot(slots []appointments.Slot, slot appointments.Slot) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

func (w *Workflow) SetNotes(notes string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	w.draft.Notes = notes
	return nil
}

// SetClientInfo records the walk-in client's identity.
func (w *Workflow) SetClientInfo(info appointments.ClientInfo) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != WalkIn {
		return ErrNotWalkIn
	}
	if w.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	w.draft.Client = info
	return nil
}

// DismissError clears the message; a failed submission returns to
// StateSlotSelected with the draft intact.
func (w *Workflow) DismissError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errMsg = ""
	if w.state == StateFailed {
		w.state = StateSlotSelected
	}
}

// missingLocked names the required fields the draft lacks.
func (w *Workflow) missingLocked() []string {
	var missing []string
	if w.draft.Business == 0 {
		missing = append(missing, "business")
	}
	if w.draft.Service == 0 {
		missing = append(missing, "service")
	}
	if w.draft.Date.IsZero() {
		missing = append(missing, "date")
	}
	if w.draft.Slot == nil {
		missing = append(missing, "time slot")
	}
	if w.mode == WalkIn {
		if strings.TrimSpace(w.draft.Client.FirstName) == "" {
			missing = append(missing, "client first name")
		}
		if strings.TrimSpace(w.draft.Client.LastName) == "" {
			missing = append(missing, "client last name")
		}
	}
	return missing
}

func (w *Workflow) requestLocked() appointments.CreateRequest {
	req := appointments.CreateRequest{
		Business:  w.draft.Business,
		Service:   w.draft.Service,
		Date:      w.draft.Date,
		StartTime: w.draft.Slot.StartTime,
		Notes:     w.draft.Notes,
	}
	if w.mode == WalkIn {
		status := appointments.StatusConfirmed
		client := appointments.ClientInfo{
			FirstName:   strings.TrimSpace(w.draft.Client.FirstName),
			LastName:    strings.TrimSpace(w.draft.Client.LastName),
			Email:       strings.TrimSpace(w.draft.Client.Email),
			PhoneNumber: strings.TrimSpace(w.draft.Client.PhoneNumber),
		}
		req.Status = &status
		req.ClientInfo = &client
	}
	return req
}

// Submit validates the draft locally, then creates the appointment. On
// success the slot, date, notes and walk-in client are cleared; on
// failure the draft is kept and the view's Error holds the backend's
// most actionable message.
func (w *Workflow) Submit(ctx context.Context) (*appointments.Appointment, error) {
	w.mu.Lock()
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if missing := w.missingLocked(); len(missing) > 0 {
		w.errMsg = "Please provide: " + strings.Join(missing, ", ")
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	req := w.requestLocked()
	w.state = StateSubmitting
	w.errMsg = ""
	cm := w.metrics
	w.mu.Unlock()

	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.mode", w.mode.String()),
		attribute.Int64("booking.business_id", req.Business),
		attribute.Int64("booking.service_id", req.Service),
		attribute.String("booking.date", req.Date.String()),
	)

	created, err := w.scheduler.Create(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		cm.ObserveBooking(w.mode.String(), "failed")
		w.state = StateFailed
		w.errMsg = apiclient.UserMessage(err, msgSubmitFailed)
		w.logger.Warn("booking failed", "mode", w.mode.String(), "business_id", req.Business, "error", err)
		return nil, fmt.Errorf("booking: submit: %w", err)
	}
	cm.ObserveBooking(w.mode.String(), "success")
	w.booked = created
	w.draft.Date = appointments.Date{}
	w.draft.Slot = nil
	w.draft.Notes = ""
	w.draft.Client = appointments.ClientInfo{}
	w.slots = nil
	w.state = StateSuccess
	w.logger.Info("appointment booked", "mode", w.mode.String(), "appointment_id", created.ID)
	return created, nil
}
