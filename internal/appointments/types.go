package appointments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-portal/internal/businesses"
	"github.com/wolfman30/booking-portal/internal/hours"
)

// Status is the closed set of appointment states.
type Status int

const (
	StatusPending Status = iota + 1
	StatusConfirmed
	StatusCancelled
	StatusCompleted
)

var ErrUnknownStatus = errors.New("appointments: unknown status")

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "cancelled":
		return StatusCancelled, nil
	case "completed":
		return StatusCompleted, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// String returns the wire value.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Label is the human form shown in lists.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCancelled:
		return "Cancelled"
	case StatusCompleted:
		return "Completed"
	}
	return "Unknown"
}

// Cancellable reports whether the backend will accept a cancel.
func (s Status) Cancellable() bool {
	switch s {
	case StatusPending, StatusConfirmed:
		return true
	case StatusCancelled, StatusCompleted:
		return false
	}
	return false
}

func (s Status) MarshalJSON() ([]byte, error) {
	if _, err := ParseStatus(s.String()); err != nil {
		return nil, err
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("appointments: decode status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("appointments: date must be YYYY-MM-DD: %w", err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Weekday() hours.Weekday {
	return hours.WeekdayOf(d.Time(time.UTC))
}

func (d Date) Before(o Date) bool {
	return d.compare(o) < 0
}

func (d Date) After(o Date) bool {
	return d.compare(o) > 0
}

func (d Date) compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

func (d Date) String() string {
	return d.Time(time.UTC).Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("appointments: decode date: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Slot is a bookable interval computed by the backend.
type Slot struct {
	StartTime hours.Clock `json:"start_time"`
	EndTime   hours.Clock `json:"end_time"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%s-%s", s.StartTime, s.EndTime)
}

// Person is the client attached to an appointment.
type Person struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

func (p Person) DisplayName() string {
	switch {
	case p.FirstName != "" || p.LastName != "":
		return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
	default:
		return p.Username
	}
}

type Appointment struct {
	ID              uuid.UUID            `json:"id"`
	Client          int64                `json:"client"`
	ClientDetails   *Person              `json:"client_details,omitempty"`
	Business        int64                `json:"business"`
	BusinessDetails *businesses.Business `json:"business_details,omitempty"`
	Service         int64                `json:"service"`
	ServiceDetails  *businesses.Service  `json:"service_details,omitempty"`
	Date            Date                 `json:"date"`
	StartTime       hours.Clock          `json:"start_time"`
	EndTime         hours.Clock          `json:"end_time"`
	Status          Status               `json:"status"`
	Notes           string               `json:"notes"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Starts returns the start instant in loc.
func (a Appointment) Starts(loc *time.Location) time.Time {
	return a.Date.Time(loc).Add(time.Duration(a.StartTime) * time.Minute)
}

// ClientInfo identifies a walk-in client without an account.
type ClientInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// CreateRequest is the appointment creation body. Status and ClientInfo
// are only sent for business-created walk-ins.
type CreateRequest struct {
	Business   int64       `json:"business"`
	Service    int64       `json:"service"`
	Date       Date        `json:"date"`
	StartTime  hours.Clock `json:"start_time"`
	Notes      string      `json:"notes,omitempty"`
	Status     *Status     `json:"status,omitempty"`
	ClientInfo *ClientInfo `json:"client_info,omitempty"`
}

// UpdateRequest patches status and/or notes.
type UpdateRequest struct {
	Status *Status `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Mine is the caller's appointments split by the backend.
type Mine struct {
	Upcoming []Appointment `json:"upcoming"`
	Past     []Appointment `json:"past"`
}
