// Package businesses wraps the business, service and business-hours
// endpoints.
package businesses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/hours"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

const basePath = "/api/businesses/"

var (
	ErrNameRequired   = errors.New("businesses: name is required")
	ErrInvalidService = errors.New("businesses: service needs a name, a positive duration and a non-negative price")
)

// Client talks to the business endpoints.
type Client struct {
	api    *apiclient.Client
	logger *logging.Logger
}

func NewClient(api *apiclient.Client, logger *logging.Logger) *Client {
	if api == nil {
		panic("businesses: api client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{api: api, logger: logger}
}

func businessPath(id int64) string {
	return fmt.Sprintf("%s%d/", basePath, id)
}

func servicesPath(businessID int64) string {
	return fmt.Sprintf("%s%d/services/", basePath, businessID)
}

func hoursPath(businessID int64) string {
	return fmt.Sprintf("%s%d/hours/", basePath, businessID)
}

// BusinessTarget names a business for destructive-action confirmation.
func BusinessTarget(id int64) string {
	return fmt.Sprintf("business:%d", id)
}

// ServiceTarget names a service for destructive-action confirmation.
func ServiceTarget(businessID, serviceID int64) string {
	return fmt.Sprintf("business:%d/service:%d", businessID, serviceID)
}

// List returns every business visible to the caller.
func (c *Client) List(ctx context.Context) ([]Business, error) {
	raw, err := c.api.GetRaw(ctx, basePath, nil)
	if err != nil {
		return nil, fmt.Errorf("businesses: list: %w", err)
	}
	col, err := apiclient.DecodeCollection[Business](raw)
	if err != nil {
		return nil, fmt.Errorf("businesses: list: %w", err)
	}
	return col.Items, nil
}

// MyBusinesses returns the businesses owned by ownerID.
func (c *Client) MyBusinesses(ctx context.Context, ownerID int64) ([]Business, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]Business, 0, len(all))
	for _, b := range all {
		if b.Owner == ownerID {
			mine = append(mine, b)
		}
	}
	c.logger.Debug("filtered owned businesses", "owner", ownerID, "total", len(all), "owned", len(mine))
	return mine, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*Business, error) {
	var b Business
	if err := c.api.Get(ctx, businessPath(id), nil, &b); err != nil {
		return nil, fmt.Errorf("businesses: get %d: %w", id, err)
	}
	return &b, nil
}

func (c *Client) Create(ctx context.Context, in BusinessInput) (*Business, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameRequired
	}
	var b Business
	if err := c.api.Post(ctx, basePath, in, &b); err != nil {
		return nil, fmt.Errorf("businesses: create: %w", err)
	}
	c.logger.Info("business created", "business_id", b.ID)
	return &b, nil
}

func (c *Client) Update(ctx context.Context, id int64, in BusinessInput) (*Business, error) {
	var b Business
	if err := c.api.Patch(ctx, businessPath(id), in, &b); err != nil {
		return nil, fmt.Errorf("businesses: update %d: %w", id, err)
	}
	return &b, nil
}

// Delete removes a business. confirm must have been issued for
// BusinessTarget(id); otherwise no request is sent.
func (c *Client) Delete(ctx context.Context, id int64, confirm apiclient.Confirmation) error {
	if err := confirm.Check(BusinessTarget(id)); err != nil {
		return err
	}
	if err := c.api.Delete(ctx, businessPath(id)); err != nil {
		return fmt.Errorf("businesses: delete %d: %w", id, err)
	}
	c.logger.Info("business deleted", "business_id", id)
	return nil
}

// GetHours implements hours.Backend.
func (c *Client) GetHours(ctx context.Context, businessID int64) ([]hours.Day, error) {
	raw, err := c.api.GetRaw(ctx, hoursPath(businessID), nil)
	if err != nil {
		return nil, fmt.Errorf("businesses: get hours: %w", err)
	}
	col, err := apiclient.DecodeCollection[hours.Day](raw)
	if err != nil {
		return nil, fmt.Errorf("businesses: get hours: %w", err)
	}
	return col.Items, nil
}

// BulkUpdateHours implements hours.Backend.
func (c *Client) BulkUpdateHours(ctx context.Context, businessID int64, payload hours.BulkPayload) error {
	if err := c.api.Post(ctx, hoursPath(businessID)+"bulk_update/", payload, nil); err != nil {
		return fmt.Errorf("businesses: bulk update hours: %w", err)
	}
	return nil
}

// Services lists the services of a business.
func (c *Client) Services(ctx context.Context, businessID int64) ([]Service, error) {
	raw, err := c.api.GetRaw(ctx, servicesPath(businessID), nil)
	if err != nil {
		return nil, fmt.Errorf("businesses: list services: %w", err)
	}
	col, err := apiclient.DecodeCollection[Service](raw)
	if err != nil {
		return nil, fmt.Errorf("businesses: list services: %w", err)
	}
	return col.Items, nil
}

func (c *Client) CreateService(ctx context.Context, businessID int64, in ServiceInput) (*Service, error) {
	if strings.TrimSpace(in.Name) == "" || in.Duration <= 0 || in.Price == nil || in.Price.IsNegative() {
		return nil, ErrInvalidService
	}
	var s Service
	if err := c.api.Post(ctx, servicesPath(businessID), in, &s); err != nil {
		return nil, fmt.Errorf("businesses: create service: %w", err)
	}
	return &s, nil
}

func (c *Client) UpdateService(ctx context.Context, businessID, serviceID int64, in ServiceInput) (*Service, error) {
	if in.Duration < 0 || (in.Price != nil && in.Price.IsNegative()) {
		return nil, ErrInvalidService
	}
	var s Service
	path := fmt.Sprintf("%s%d/", servicesPath(businessID), serviceID)
	if err := c.api.Patch(ctx, path, in, &s); err != nil {
		return nil, fmt.Errorf("businesses: update service: %w", err)
	}
	return &s, nil
}

// DeleteService removes a service after confirmation for
// ServiceTarget(businessID, serviceID).
func (c *Client) DeleteService(ctx context.Context, businessID, serviceID int64, confirm apiclient.Confirmation) error {
	if err := confirm.Check(ServiceTarget(businessID, serviceID)); err != nil {
		return err
	}
	path := fmt.Sprintf("%s%d/", servicesPath(businessID), serviceID)
	if err := c.api.Delete(ctx, path); err != nil {
		return fmt.Errorf("businesses: delete service: %w", err)
	}
	return nil
}
