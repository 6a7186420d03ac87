package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound matches any APIError reporting a missing resource.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict matches any APIError reporting an existing resource.
	ErrConflict = errors.New("resource already exists")
)

// APIError is an error reported by the management API.
type APIError struct {
	Service    string
	Action     string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Service, e.Action, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// Is lets errors.Is match ErrNotFound and ErrConflict.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound ||
			strings.Contains(e.Code, "NotFound") || strings.Contains(e.Code, "NotExist")
	case ErrConflict:
		return e.StatusCode == http.StatusConflict ||
			strings.Contains(e.Code, "AlreadyExist") || strings.Contains(e.Code, "Conflict")
	}
	return false
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err means the resource already exists.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
