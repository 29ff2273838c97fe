package businesses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/booking-portal/internal/hours"
)

// Business is a bookable business as returned by the backend.
type Business struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Address       string      `json:"address"`
	Phone         string      `json:"phone"`
	Email         string      `json:"email"`
	LogoURL       string      `json:"logo_url"`
	Owner         int64       `json:"owner"`
	Category      *int64      `json:"category"`
	CategoryName  string      `json:"category_name"`
	CategoryIcon  string      `json:"category_icon"`
	CategoryColor string      `json:"category_color"`
	IsActive      bool        `json:"is_active"`
	CreatedAt     time.Time   `json:"created_at"`
	Services      []Service   `json:"services"`
	BusinessHours []hours.Day `json:"business_hours"`
}

// Week returns the embedded hours merged into a full week.
func (b Business) Week() hours.Week {
	return hours.Merge(b.BusinessHours)
}

// BusinessInput is the writable part of a business. Empty fields are
// omitted so it also serves as a PATCH body.
type BusinessInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Category    *int64 `json:"category,omitempty"`
}

// Service is something a business offers for booking.
type Service struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Duration    int             `json:"duration"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
}

// Length returns the service duration.
func (s Service) Length() time.Duration {
	return time.Duration(s.Duration) * time.Minute
}

// ServiceInput creates or patches a service.
type ServiceInput struct {
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Duration    int              `json:"duration,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}
