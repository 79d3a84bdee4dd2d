package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrServerUnreachable is wrapped by errors for requests that got no response
	ErrServerUnreachable = errors.New("server unreachable")
	// ErrUnauthenticated is wrapped by errors for 401 responses without a disabled-account marker
	ErrUnauthenticated = errors.New("session expired or not signed in")
)

// DisabledAccountMessage is the fixed message shown for disabled accounts
const DisabledAccountMessage = "Your account has been disabled, please contact an administrator"

// disabledMarkers are matched case-insensitively against the backend message
var disabledMarkers = []string{"disabled", "禁用"}

// Kind classifies a failed request
type Kind int

const (
	// KindUnreachable means no response was received
	KindUnreachable Kind = iota + 1
	// KindHTTP means the backend answered with an error status
	KindHTTP
	// KindUnauthenticated means a 401 without a disabled-account marker
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindHTTP:
		return "http"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Error is a classified request failure
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	// Message is the backend-provided message, empty when the body had none
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnreachable:
		return fmt.Sprintf("%s %s: %v: %v", e.Method, e.Path, ErrServerUnreachable, e.Err)
	case KindUnauthenticated:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, ErrUnauthenticated)
	default:
		msg := e.Message
		if msg == "" {
			msg = http.StatusText(e.StatusCode)
		}
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
	}
}

func (e *Error) Unwrap() []error {
	var errs []error
	switch e.Kind {
	case KindUnreachable:
		errs = append(errs, ErrServerUnreachable)
	case KindUnauthenticated:
		errs = append(errs, ErrUnauthenticated)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// DisabledAccountError is returned when the backend reports the account as disabled.
// The stored session is left untouched.
type DisabledAccountError struct {
	Message    string
	Disabled   bool
	StatusCode int
	// Detail is the backend message the marker was found in
	Detail string
}

func (e *DisabledAccountError) Error() string {
	return e.Message
}

// ValidationError rejects a call before any request is sent
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Field + " is required"
}

// RequireID returns a ValidationError when id is blank
func RequireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// IsDisabledAccount reports whether err is a disabled-account rejection
func IsDisabledAccount(err error) bool {
	var d *DisabledAccountError
	return errors.As(err, &d) && d.Disabled
}

// StatusCode returns the HTTP status carried by err, 0 when there is none
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == KindUnauthenticated && apiErr.StatusCode == 0 {
			return http.StatusUnauthorized
		}
		return apiErr.StatusCode
	}
	var d *DisabledAccountError
	if errors.As(err, &d) {
		return d.StatusCode
	}
	return 0
}

// StatusMessage is the default user-facing message for an HTTP status
func StatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request parameters"
	case http.StatusUnauthorized:
		return "Not signed in or session expired, please sign in again"
	case http.StatusForbidden:
		return "You do not have permission to perform this operation"
	case http.StatusNotFound:
		return "The requested resource does not exist"
	case http.StatusInternalServerError:
		return "Internal server error, please try again later"
	default:
		return fmt.Sprintf("Request failed (status %d)", status)
	}
}

// UserMessage turns any error into the message shown to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}

	var disabled *DisabledAccountError
	if errors.As(err, &disabled) {
		return DisabledAccountMessage
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindUnreachable:
			return "Unable to reach the server, please check your network connection"
		case KindUnauthenticated:
			return StatusMessage(http.StatusUnauthorized)
		default:
			if apiErr.Message != "" {
				return apiErr.Message
			}
			return StatusMessage(apiErr.StatusCode)
		}
	}

	return "Something went wrong: " + err.Error()
}

func containsDisabledMarker(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range disabledMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
