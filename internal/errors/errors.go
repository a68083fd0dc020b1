// Package errors defines the service error taxonomy and its HTTP mapping.
package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuth            Kind = "auth"
	KindExternalService Kind = "external_service"
	KindParse           Kind = "parse"
	KindPersistence     Kind = "persistence"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// ServiceError is an error with a classification that maps to an HTTP status.
type ServiceError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *ServiceError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Validation reports a rejected request (missing file, wrong MIME type, oversized upload).
func Validation(message string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: message}
}

// Unauthorized reports a missing, invalid, or expired bearer token.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Kind: KindAuth, Message: message}
}

// ExternalService reports a failed upstream call; the upstream message is
// surfaced to the caller verbatim.
func ExternalService(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindExternalService, Message: message, Err: err}
}

// maxParseExcerpt bounds how much of a malformed reply leaks into errors.
const maxParseExcerpt = 200

// Parse reports an extraction reply that was not valid JSON. The offending
// text is truncated to at most 200 characters, on a rune boundary so a
// multibyte reply never yields invalid UTF-8 in the message.
func Parse(prefix, offending string) *ServiceError {
	excerpt := offending
	if runes := []rune(excerpt); len(runes) > maxParseExcerpt {
		excerpt = string(runes[:maxParseExcerpt])
	}
	return &ServiceError{Kind: KindParse, Message: prefix + ": " + excerpt}
}

// Persistence reports a backing-store failure; the store's message passes
// through unchanged.
func Persistence(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindPersistence, Message: message, Err: err}
}

// NotFound reports an unmatched route or missing resource.
func NotFound(message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: message}
}

// StatusFor returns the HTTP status for any error, defaulting to 500 for
// errors outside the taxonomy.
func StatusFor(err error) int {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}
