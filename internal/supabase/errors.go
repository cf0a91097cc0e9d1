package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/neboloop/agencycheck/internal/store"
)

// APIError is a non-2xx response from any Supabase service.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string

	// storage reports its own status in the body, often under HTTP 400.
	storageStatus string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase: %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	return b.String()
}

// Is makes duplicates match store.ErrConflict.
func (e *APIError) Is(target error) bool {
	return target == store.ErrConflict && e.conflict()
}

// conflict reports a duplicate only. PostgREST also answers 409 for foreign
// key violations (23503), so the status alone says nothing.
func (e *APIError) conflict() bool {
	switch e.Code {
	case pgUniqueViolation, "email_exists", "user_already_exists":
		return true
	case storageDuplicate:
		return e.Status == http.StatusConflict || e.storageStatus == "409"
	}
	return false
}

const (
	pgUniqueViolation = "23505"
	storageDuplicate  = "Duplicate"
)

// The services disagree on error shapes. PostgREST sends code/message,
// GoTrue sends msg/error_code (or error/error_description) and storage sends
// statusCode/error/message.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Details          json.RawMessage `json:"details"`
	Hint             string          `json:"hint"`
	StatusCode       json.RawMessage `json:"statusCode"`
}

func decodeAPIError(status int, data []byte) *APIError {
	e := &APIError{Status: status}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		e.Message = strings.TrimSpace(string(data))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = body.ErrorCode
	if e.Code == "" {
		e.Code = rawString(body.Code)
	}
	if e.Code == "" {
		e.Code = body.Error
	}
	for _, m := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	e.Details = rawString(body.Details)
	e.Hint = body.Hint
	e.storageStatus = rawString(body.StatusCode)
	return e
}

// rawString returns a JSON string's value, a number's text, or "" for null.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// StatusOf returns the HTTP status of an *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports a 404 from any service.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsConflict reports a duplicate: a Postgres unique violation, GoTrue's
// email_exists, or a storage Duplicate.
func IsConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}
