package formsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// genericErrorText is what the user sees when no backend-provided message is
// available, such as on transport failure.
const genericErrorText = "An error has occurred."

// errorKindValidation marks field-level validation failures in the error
// body: {"error": "validation", "data": {field: message}}.
const errorKindValidation = "validation"

// ErrLoginRequired is returned when an operation gave up and redirected the
// page to interactive login. Callers should stop; the navigation already
// happened.
var ErrLoginRequired = errors.New("interactive login required")

// APIError is a non-validation application failure: any 4xx/5xx whose body
// carries a plain error string.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ValidationError is a structured field-level rejection. Fields maps field
// names to messages and replaces the controller's error map wholesale.
type ValidationError struct {
	StatusCode int
	Fields     map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%d fields)", len(e.Fields))
}

// TransportError reports that no response was received. It never carries a
// status code and never triggers authentication handling.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport failure: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// parseErrorBody turns an error response body into a typed error. The body
// is {"error": string} normally, or {"error": "validation", "data": {...}}
// for field-level failures. An empty or unreadable body falls back to the
// HTTP status text.
func parseErrorBody(statusCode int, body []byte) error {
	var resp struct {
		Error string            `json:"error"`
		Data  map[string]string `json:"data"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err == nil && resp.Error == errorKindValidation {
			return &ValidationError{StatusCode: statusCode, Fields: resp.Data}
		}
	}

	msg := resp.Error
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{StatusCode: statusCode, Message: msg}
}

// ErrorMessage extracts the user-facing text for an error: the backend
// message when one exists, the generic text otherwise.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return errorKindValidation
	}
	return genericErrorText
}

// statusOf returns the HTTP status attached to err, or 0 for transport and
// other statusless failures.
func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.StatusCode
	}
	return 0
}
