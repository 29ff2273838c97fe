// Package appointments wraps appointment endpoints and the list and
// calendar views built on fetched appointments.
package appointments

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

const basePath = "/api/appointments/"

type Client struct {
	api    *apiclient.Client
	logger *logging.Logger
}

func NewClient(api *apiclient.Client, logger *logging.Logger) *Client {
	if api == nil {
		panic("appointments: api client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{api: api, logger: logger}
}

func appointmentPath(id uuid.UUID) string {
	return basePath + id.String() + "/"
}

// Target names an appointment for cancellation confirmation.
func Target(id uuid.UUID) string {
	return "appointment:" + id.String()
}

// List returns every appointment visible to the caller.
func (c *Client) List(ctx context.Context) ([]Appointment, error) {
	return c.list(ctx, basePath, nil)
}

// ForBusinesses lists appointments of the caller's businesses, or of one
// business when businessID is non-zero.
func (c *Client) ForBusinesses(ctx context.Context, businessID int64) ([]Appointment, error) {
	var query url.Values
	if businessID != 0 {
		query = url.Values{"business_id": {strconv.FormatInt(businessID, 10)}}
	}
	return c.list(ctx, basePath+"business_appointments/", query)
}

func (c *Client) list(ctx context.Context, path string, query url.Values) ([]Appointment, error) {
	raw, err := c.api.GetRaw(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	col, err := apiclient.DecodeCollection[Appointment](raw)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return col.Items, nil
}

// Mine returns the caller's upcoming and past appointments.
func (c *Client) Mine(ctx context.Context) (*Mine, error) {
	var out Mine
	if err := c.api.Get(ctx, basePath+"my_appointments/", nil, &out); err != nil {
		return nil, fmt.Errorf("appointments: mine: %w", err)
	}
	if out.Upcoming == nil {
		out.Upcoming = []Appointment{}
	}
	if out.Past == nil {
		out.Past = []Appointment{}
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	if err := c.api.Get(ctx, appointmentPath(id), nil, &a); err != nil {
		return nil, fmt.Errorf("appointments: get %s: %w", id, err)
	}
	return &a, nil
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	var a Appointment
	if err := c.api.Post(ctx, basePath, req, &a); err != nil {
		return nil, fmt.Errorf("appointments: create: %w", err)
	}
	c.logger.Info("appointment created", "appointment_id", a.ID, "business_id", req.Business, "date", req.Date.String())
	return &a, nil
}

func (c *Client) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	var a Appointment
	if err := c.api.Patch(ctx, appointmentPath(id), req, &a); err != nil {
		return nil, fmt.Errorf("appointments: update %s: %w", id, err)
	}
	return &a, nil
}

// Cancel cancels an appointment after confirmation for Target(id) and
// returns the backend's message.
func (c *Client) Cancel(ctx context.Context, id uuid.UUID, confirm apiclient.Confirmation) (string, error) {
	if err := confirm.Check(Target(id)); err != nil {
		return "", err
	}
	var resp struct {
		Detail string `json:"detail"`
	}
	if err := c.api.Post(ctx, appointmentPath(id)+"cancel/", nil, &resp); err != nil {
		return "", fmt.Errorf("appointments: cancel %s: %w", id, err)
	}
	c.logger.Info("appointment cancelled", "appointment_id", id)
	return resp.Detail, nil
}

// AvailableSlots asks the backend for bookable slots. An empty result is
// a valid answer, not an error.
func (c *Client) AvailableSlots(ctx context.Context, businessID, serviceID int64, date Date) ([]Slot, error) {
	query := url.Values{
		"business_id": {strconv.FormatInt(businessID, 10)},
		"service_id":  {strconv.FormatInt(serviceID, 10)},
		"date":        {date.String()},
	}
	var resp struct {
		AvailableSlots []Slot `json:"available_slots"`
	}
	if err := c.api.Get(ctx, basePath+"available-slots/", query, &resp); err != nil {
		return nil, fmt.Errorf("appointments: available slots: %w", err)
	}
	if resp.AvailableSlots == nil {
		return []Slot{}, nil
	}
	return resp.AvailableSlots, nil
}
