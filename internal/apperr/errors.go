// Package apperr defines the error taxonomy surfaced by the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the three error classes. Typed errors below unwrap to
// one of these so callers can use errors.Is.
var (
	// ErrConfiguration indicates required server-held settings are missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream indicates an external collaborator request failed.
	ErrUpstream = errors.New("upstream error")

	// ErrValidation indicates a request is missing required fields.
	ErrValidation = errors.New("validation error")
)

// ConfigurationError reports a missing or unusable server setting.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Setting != "" {
		return fmt.Sprintf("configuration error: %s (%s)", e.Message, e.Setting)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UpstreamError represents a failed call to an external collaborator.
type UpstreamError struct {
	// Service is the collaborator name (e.g. "chat-backend", "google-stt").
	Service string

	// StatusCode is the HTTP status returned, 0 for transport failures.
	StatusCode int

	// Message is the upstream's own error detail, if any.
	Message string

	Err error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s upstream error (%d): %s", e.Service, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s upstream error (%d)", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s upstream error: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s upstream error: %s", e.Service, e.Message)
	}
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// ValidationError reports a request that failed validation. Message is
// safe to return to the client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Configuration builds a ConfigurationError.
func Configuration(setting, message string) error {
	return &ConfigurationError{Setting: setting, Message: message}
}

// Validation builds a ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Upstream wraps err as an UpstreamError for service.
func Upstream(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
