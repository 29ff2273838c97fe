package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by a
	// token refresh. The session has been cleared and the user must log in.
	ErrSessionExpired = errors.New("apiclient: session expired, please log in")
	// ErrConfirmationRequired guards destructive calls made without an
	// explicit confirmation for the same target.
	ErrConfirmationRequired = errors.New("apiclient: confirmation required")
)

const nonFieldErrors = "non_field_errors"

// APIError is a non-2xx backend response. Fields holds per-field messages
// in the order the backend listed them.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
	Fields map[string][]string
	Body   string

	order []string
}

func (e *APIError) Error() string {
	msg := e.Flatten()
	if msg == "" {
		msg = e.Body
	}
	if msg == "" {
		return fmt.Sprintf("apiclient: %s %s returned %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("apiclient: %s %s returned %d: %s", e.Method, e.Path, e.Status, msg)
}

// FieldNames returns the error keys in response order.
func (e *APIError) FieldNames() []string {
	return append([]string(nil), e.order...)
}

// Flatten combines detail and every field message into one readable line,
// e.g. "email: already taken; password: too short, too common".
func (e *APIError) Flatten() string {
	var parts []string
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	for _, name := range e.order {
		msgs := e.Fields[name]
		if len(msgs) == 0 {
			continue
		}
		joined := strings.Join(msgs, ", ")
		if name == nonFieldErrors || name == "error" {
			parts = append(parts, joined)
			continue
		}
		parts = append(parts, name+": "+joined)
	}
	return strings.Join(parts, "; ")
}

// FirstMessage returns the most actionable single message: detail, then
// the first non-field error, then the first message of the first field.
// It returns "" when the backend sent nothing usable.
func (e *APIError) FirstMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	if msgs := e.Fields[nonFieldErrors]; len(msgs) > 0 {
		return msgs[0]
	}
	for _, name := range e.order {
		if msgs := e.Fields[name]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// UserMessage turns any error into text fit for an error banner.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return "Your session has expired. Please log in again."
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.FirstMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Method: method,
		Path:   path,
		Status: status,
		Fields: map[string][]string{},
		Body:   truncate(string(body), 300),
	}
	parseErrorBody(apiErr, body)
	return apiErr
}

// parseErrorBody walks the top-level object with a token decoder so the
// backend's field order survives.
func parseErrorBody(apiErr *APIError, body []byte) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		key, ok := tok.(string)
		if !ok {
			return
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return
		}
		msgs := messages(raw)
		if key == "detail" {
			if len(msgs) > 0 {
				apiErr.Detail = msgs[0]
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		if _, seen := apiErr.Fields[key]; !seen {
			apiErr.order = append(apiErr.order, key)
		}
		apiErr.Fields[key] = msgs
	}
}

func messages(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, messages(item)...)
		}
		return out
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err == nil {
		sub := &APIError{Fields: map[string][]string{}}
		parseErrorBody(sub, raw)
		if flat := sub.Flatten(); flat != "" {
			return []string{flat}
		}
		return nil
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		// flags such as "expired": true are hints, not messages
		return nil
	}
	if text := strings.TrimSpace(string(raw)); text != "" && text != "null" {
		return []string{text}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Confirmation is an explicit user acknowledgement for one destructive
// action on one target.
type Confirmation struct {
	target string
}

// Confirm records that the user approved acting on target.
func Confirm(target string) Confirmation {
	return Confirmation{target: target}
}

// Check returns ErrConfirmationRequired unless c confirms target.
func (c Confirmation) Check(target string) error {
	if c.target == "" || c.target != target {
		return fmt.Errorf("%w for %q", ErrConfirmationRequired, target)
	}
	return nil
}
