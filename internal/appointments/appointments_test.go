package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/hours"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(apiclient.New(apiclient.Config{BaseURL: srv.URL, Logger: logging.Discard()}, nil), logging.Discard())
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func appt(t *testing.T, date, start string, status Status) Appointment {
	return Appointment{ID: uuid.New(), Date: mustDate(t, date), StartTime: hours.MustClock(start), Status: status}
}

func TestStatusIsClosed(t *testing.T) {
	for _, s := range Statuses {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
		assert.NotEqual(t, "Unknown", s.Label())
	}
	_, err := ParseStatus("no_show")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	var s Status
	assert.Error(t, json.Unmarshal([]byte(`"rescheduled"`), &s))
	_, err = json.Marshal(Status(0))
	assert.Error(t, err)

	assert.True(t, StatusPending.Cancellable())
	assert.False(t, StatusCompleted.Cancellable())
}

func TestAvailableSlots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/available-slots/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("business_id"))
		assert.Equal(t, "9", q.Get("service_id"))
		switch q.Get("date") {
		case "2026-10-19":
			_, _ = w.Write([]byte(`{"available_slots":[{"start_time":"09:00","end_time":"09:30"},{"start_time":"09:30","end_time":"10:00"}]}`))
		default:
			_, _ = w.Write([]byte(`{"available_slots":[]}`))
		}
	})
	ctx := context.Background()

	slots, err := client.AvailableSlots(ctx, 3, 9, mustDate(t, "2026-10-19"))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:30-10:00", slots[1].String())

	empty, err := client.AvailableSlots(ctx, 3, 9, mustDate(t, "2026-10-18"))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCreateWalkInBody(t *testing.T) {
	id := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "confirmed", body["status"])
		assert.Equal(t, "2026-10-19", body["date"])
		assert.Equal(t, "10:00", body["start_time"])
		info := body["client_info"].(map[string]any)
		assert.Equal(t, "Ana", info["first_name"])
		assert.NotContains(t, info, "email")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"` + id.String() + `","business":3,"service":9,"date":"2026-10-19","start_time":"10:00:00","end_time":"10:30:00","status":"confirmed"}`))
	})
	status := StatusConfirmed
	got, err := client.Create(context.Background(), CreateRequest{
		Business:   3,
		Service:    9,
		Date:       mustDate(t, "2026-10-19"),
		StartTime:  hours.MustClock("10:00"),
		Status:     &status,
		ClientInfo: &ClientInfo{FirstName: "Ana", LastName: "Lima"},
	})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, "10:30", got.EndTime.String())
}

func TestCancelRequiresConfirmation(t *testing.T) {
	var calls atomic.Int32
	id := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/appointments/"+id.String()+"/cancel/", r.URL.Path)
		if calls.Load() > 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"This appointment is already cancelled."}`))
			return
		}
		_, _ = w.Write([]byte(`{"detail":"Appointment cancelled successfully. Cancellation emails have been sent."}`))
	})
	ctx := context.Background()

	_, err := client.Cancel(ctx, id, apiclient.Confirm(Target(uuid.New())))
	assert.ErrorIs(t, err, apiclient.ErrConfirmationRequired)
	assert.Equal(t, int32(0), calls.Load())

	msg, err := client.Cancel(ctx, id, apiclient.Confirm(Target(id)))
	require.NoError(t, err)
	assert.Contains(t, msg, "cancelled successfully")

	_, err = client.Cancel(ctx, id, apiclient.Confirm(Target(id)))
	assert.Equal(t, "This appointment is already cancelled.", apiclient.UserMessage(err, "failed"))
}

func TestMineDefaultsToEmptyLists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"upcoming":[{"id":"` + uuid.NewString() + `","date":"2026-11-01","start_time":"09:00:00","end_time":"10:00:00","status":"pending"}]}`))
	})
	mine, err := client.Mine(context.Background())
	require.NoError(t, err)
	assert.Len(t, mine.Upcoming, 1)
	assert.NotNil(t, mine.Past)
}

func TestForBusinessesQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/business_appointments/", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("business_id"))
		_, _ = w.Write([]byte(`[]`))
	})
	list, err := client.ForBusinesses(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSplitMatchesBackendRule(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	list := []Appointment{
		appt(t, "2026-10-17", "11:59", StatusPending),
		appt(t, "2026-10-17", "12:00", StatusPending),
		appt(t, "2026-10-20", "08:00", StatusConfirmed),
		appt(t, "2026-10-16", "15:00", StatusCompleted),
		appt(t, "2026-10-18", "09:00", StatusPending),
	}
	upcoming, past := Split(list, now)

	require.Len(t, upcoming, 3)
	assert.Equal(t, "2026-10-17", upcoming[0].Date.String())
	assert.Equal(t, "12:00", upcoming[0].StartTime.String())
	assert.Equal(t, "2026-10-18", upcoming[1].Date.String())
	assert.Equal(t, "2026-10-20", upcoming[2].Date.String())

	require.Len(t, past, 2)
	assert.Equal(t, "11:59", past[0].StartTime.String())
	assert.Equal(t, "2026-10-16", past[1].Date.String())
}

func TestFiltersAndGrouping(t *testing.T) {
	list := []Appointment{
		appt(t, "2026-10-20", "14:00", StatusPending),
		appt(t, "2026-10-19", "09:00", StatusCancelled),
		appt(t, "2026-10-20", "09:00", StatusConfirmed),
		appt(t, "2026-10-25", "09:00", StatusPending),
	}

	assert.Len(t, FilterByStatus(list, StatusPending), 2)
	assert.Len(t, FilterByStatus(list, StatusPending, StatusConfirmed), 3)
	assert.Len(t, FilterByStatus(list), 4)

	inRange := FilterByDateRange(list, mustDate(t, "2026-10-19"), mustDate(t, "2026-10-20"))
	assert.Len(t, inRange, 3)
	assert.Len(t, FilterByDateRange(list, mustDate(t, "2026-10-21"), Date{}), 1)

	groups := GroupByDate(list)
	require.Len(t, groups, 3)
	assert.Equal(t, "2026-10-19", groups[0].Date.String())
	require.Len(t, groups[1].Appointments, 2)
	assert.Equal(t, "09:00", groups[1].Appointments[0].StartTime.String())

	counts := CountByStatus(list)
	assert.Equal(t, 2, counts[StatusPending])
	assert.Equal(t, 0, counts[StatusCompleted])
}

func TestDateHelpers(t *testing.T) {
	d := mustDate(t, "2026-10-19")
	assert.Equal(t, hours.Monday, d.Weekday())
	assert.True(t, d.Before(mustDate(t, "2026-11-01")))
	assert.True(t, d.After(mustDate(t, "2025-12-31")))
	_, err := ParseDate("19/10/2026")
	assert.Error(t, err)

	a := Appointment{Date: d, StartTime: hours.MustClock("09:30")}
	assert.Equal(t, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC), a.Starts(time.UTC))
}
