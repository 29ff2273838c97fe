// Package categories wraps business-category browsing and the category
// request flow.
package categories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/businesses"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

const (
	basePath = "/api/businesses/categories/"

	DefaultIcon  = "fas fa-store"
	DefaultColor = "#007bff"
)

var ErrIncompleteRequest = errors.New("categories: business name, category name, description and service examples are required")

type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	IconClass     string `json:"icon_class"`
	Color         string `json:"color"`
	BusinessCount int    `json:"business_count"`
}

// Group is one entry of the grouped-by-category listing.
type Group struct {
	Category   Category              `json:"category"`
	Businesses []businesses.Business `json:"businesses"`
}

// Request asks an admin to add a new category.
type Request struct {
	BusinessName          string `json:"business_name"`
	RequestedCategoryName string `json:"requested_category_name"`
	RequestedDescription  string `json:"requested_description"`
	ServiceExamples       string `json:"service_examples"`
}

// RequestStatus is the stored request as echoed by the backend.
type RequestStatus struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Request
}

type Client struct {
	api    *apiclient.Client
	logger *logging.Logger
}

func NewClient(api *apiclient.Client, logger *logging.Logger) *Client {
	if api == nil {
		panic("categories: api client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{api: api, logger: logger}
}

// List returns every valid category with display defaults filled in.
func (c *Client) List(ctx context.Context) ([]Category, error) {
	return c.list(ctx, nil)
}

// Search filters categories by a free-text term.
func (c *Client) Search(ctx context.Context, term string) ([]Category, error) {
	return c.list(ctx, url.Values{"search": {term}})
}

func (c *Client) list(ctx context.Context, query url.Values) ([]Category, error) {
	raw, err := c.api.GetRaw(ctx, basePath, query)
	if err != nil {
		return nil, fmt.Errorf("categories: list: %w", describe(err))
	}
	col, err := apiclient.DecodeCollection[json.RawMessage](raw)
	if err != nil {
		return nil, fmt.Errorf("categories: list: %w", err)
	}
	return normalize(col.Items, c.logger), nil
}

// normalize drops entries without id or name and fills icon and color.
func normalize(items []json.RawMessage, logger *logging.Logger) []Category {
	out := make([]Category, 0, len(items))
	for _, item := range items {
		var cat Category
		if err := json.Unmarshal(item, &cat); err != nil || cat.ID == 0 || strings.TrimSpace(cat.Name) == "" {
			logger.Warn("skipping invalid category", "raw", string(item))
			continue
		}
		if cat.IconClass == "" {
			cat.IconClass = DefaultIcon
		}
		if cat.Color == "" {
			cat.Color = DefaultColor
		}
		out = append(out, cat)
	}
	return out
}

func describe(err error) error {
	switch {
	case apiclient.IsStatus(err, http.StatusNotFound):
		return fmt.Errorf("categories endpoint not found: %w", err)
	case apiclient.IsStatus(err, http.StatusInternalServerError):
		return fmt.Errorf("server error while fetching categories: %w", err)
	}
	return err
}

func (c *Client) Get(ctx context.Context, id int64) (*Category, error) {
	var raw json.RawMessage
	if err := c.api.Get(ctx, fmt.Sprintf("%s%d/", basePath, id), nil, &raw); err != nil {
		return nil, fmt.Errorf("categories: get %d: %w", id, err)
	}
	cats := normalize([]json.RawMessage{raw}, c.logger)
	if len(cats) == 0 {
		return nil, fmt.Errorf("categories: get %d: invalid category payload", id)
	}
	return &cats[0], nil
}

// Businesses lists the businesses in a category, optionally searched.
func (c *Client) Businesses(ctx context.Context, categoryID int64, search string) ([]businesses.Business, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}
	raw, err := c.api.GetRaw(ctx, fmt.Sprintf("%s%d/businesses/", basePath, categoryID), query)
	if err != nil {
		return nil, fmt.Errorf("categories: businesses of %d: %w", categoryID, err)
	}
	col, err := apiclient.DecodeCollection[businesses.Business](raw)
	if err != nil {
		return nil, fmt.Errorf("categories: businesses of %d: %w", categoryID, err)
	}
	return col.Items, nil
}

// Grouped returns businesses grouped under their category.
func (c *Client) Grouped(ctx context.Context) ([]Group, error) {
	raw, err := c.api.GetRaw(ctx, "/api/businesses/by_category/", nil)
	if err != nil {
		return nil, fmt.Errorf("categories: grouped: %w", err)
	}
	col, err := apiclient.DecodeCollection[Group](raw)
	if err != nil {
		return nil, fmt.Errorf("categories: grouped: %w", err)
	}
	return col.Items, nil
}

func (c *Client) Featured(ctx context.Context) ([]businesses.Business, error) {
	raw, err := c.api.GetRaw(ctx, "/api/businesses/featured/", nil)
	if err != nil {
		return nil, fmt.Errorf("categories: featured: %w", err)
	}
	col, err := apiclient.DecodeCollection[businesses.Business](raw)
	if err != nil {
		return nil, fmt.Errorf("categories: featured: %w", err)
	}
	return col.Items, nil
}

// Submit files a category request. All four fields are required.
func (c *Client) Submit(ctx context.Context, req Request) (*RequestStatus, error) {
	if strings.TrimSpace(req.BusinessName) == "" || strings.TrimSpace(req.RequestedCategoryName) == "" ||
		strings.TrimSpace(req.RequestedDescription) == "" || strings.TrimSpace(req.ServiceExamples) == "" {
		return nil, ErrIncompleteRequest
	}
	var out RequestStatus
	if err := c.api.Post(ctx, "/api/businesses/request_category/", req, &out); err != nil {
		return nil, fmt.Errorf("categories: request: %w", err)
	}
	c.logger.Info("category requested", "name", req.RequestedCategoryName)
	return &out, nil
}
