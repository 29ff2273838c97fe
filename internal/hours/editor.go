package hours

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.hours")

var ErrSaveInProgress = errors.New("hours: save already in progress")

// Backend reads and bulk-replaces a business's hours.
type Backend interface {
	GetHours(ctx context.Context, businessID int64) ([]Day, error)
	BulkUpdateHours(ctx context.Context, businessID int64, payload BulkPayload) error
}

// Editor holds the in-memory week for one business between load and save.
// It is safe for concurrent use; network calls run without the lock.
type Editor struct {
	backend    Backend
	businessID int64
	logger     *logging.Logger

	mu     sync.Mutex
	week   Week
	saving bool
	// edits counts local mutations so a save's re-fetch never overwrites
	// changes made while it was in flight.
	edits uint64
}

func NewEditor(backend Backend, businessID int64, logger *logging.Logger) *Editor {
	if backend == nil {
		panic("hours: backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Editor{
		backend:    backend,
		businessID: businessID,
		logger:     logger,
		week:       NewWeek(),
	}
}

// BusinessID returns the business being edited.
func (e *Editor) BusinessID() int64 {
	return e.businessID
}

// Week returns a copy of the current model.
func (e *Editor) Week() Week {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.week.Clone()
}

// Saving reports whether a save is in flight.
func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Load fetches the server hours and merges them into a fresh week. On
// failure the editor falls back to the default week and returns the error.
func (e *Editor) Load(ctx context.Context) error {
	server, err := e.backend.GetHours(ctx, e.businessID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.edits++
	if err != nil {
		e.logger.Warn("failed to load business hours, using defaults", "business_id", e.businessID, "error", err)
		e.week = NewWeek()
		return fmt.Errorf("hours: load: %w", err)
	}
	e.week = Merge(server)
	return nil
}

func (e *Editor) mutate(fn func(w *Week) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.week.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	e.week = next
	e.edits++
	return nil
}

func (e *Editor) ToggleClosed(d Weekday) error {
	return e.mutate(func(w *Week) error { return w.ToggleClosed(d) })
}

func (e *Editor) AddTimePeriod(d Weekday, in PeriodInput) error {
	return e.mutate(func(w *Week) error { return w.AddTimePeriod(d, in) })
}

func (e *Editor) RemoveTimePeriod(d Weekday, index int) error {
	return e.mutate(func(w *Week) error { return w.RemoveTimePeriod(d, index) })
}

// ApplyTemplate replaces all seven days with a preset.
func (e *Editor) ApplyTemplate(name string) error {
	tmpl, err := ApplyTemplate(name)
	if err != nil {
		return err
	}
	return e.mutate(func(w *Week) error {
		*w = tmpl
		return nil
	})
}

// Save sends the whole week in one bulk call, then re-fetches so server
// IDs are picked up. A failed save leaves the local week untouched.
func (e *Editor) Save(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "hours.save")
	defer span.End()
	span.SetAttributes(attribute.Int64("portal.business_id", e.businessID))

	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	e.saving = true
	payload := e.week.Payload()
	edits := e.edits
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.saving = false
		e.mu.Unlock()
	}()

	if err := e.backend.BulkUpdateHours(ctx, e.businessID, payload); err != nil {
		span.RecordError(err)
		e.logger.Error("failed to save business hours", "business_id", e.businessID, "error", err)
		return fmt.Errorf("hours: save: %w", err)
	}
	e.logger.Info("business hours saved", "business_id", e.businessID)

	server, err := e.backend.GetHours(ctx, e.businessID)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("saved hours but re-fetch failed", "business_id", e.businessID, "error", err)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.edits != edits {
		e.logger.Debug("local edits during save, keeping them", "business_id", e.businessID)
		return nil
	}
	e.week = Merge(server)
	return nil
}
