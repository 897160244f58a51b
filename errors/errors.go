package errors

import (
	"fmt"
	"net/http"
)

// AppError is the service's error type. Message is safe to show a client;
// Cause is only logged.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets Cause and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets one detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError whose Retryable flag follows code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Retryable: IsRetryableCode(code)}
}

func withCause(e *AppError, cause error) *AppError {
	e.Cause = cause
	return e
}

// ServiceUnavailable reports a backend that is down or overloaded.
func ServiceUnavailable(service string) *AppError {
	e := New(ErrCodeServiceUnavailable, fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service), http.StatusServiceUnavailable)
	return e.WithDetail("service", service)
}

// Timeout reports an operation that ran out of time.
func Timeout(operation string) *AppError {
	e := New(ErrCodeTimeout, "The request took too long. Please try again.", http.StatusGatewayTimeout)
	return e.WithDetail("operation", operation)
}

// NotFound reports a missing resource. id may be empty.
func NotFound(resource, id string) *AppError {
	e := New(ErrCodeNotFound, fmt.Sprintf("The requested %s was not found.", resource), http.StatusNotFound)
	e.WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

// InvalidInput reports a bad request field.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason, http.StatusBadRequest)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation reports a request that failed validation as a whole.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

// MissingField reports a required field that was not sent.
func MissingField(field string) *AppError {
	e := New(ErrCodeMissingField, "Missing required field: "+field, http.StatusBadRequest)
	return e.WithDetail("field", field)
}

// Internal hides cause behind a generic message.
func Internal(cause error) *AppError {
	return withCause(New(ErrCodeInternal,
		"An unexpected error occurred. Please try again or contact support.", http.StatusInternalServerError), cause)
}

// DatabaseError wraps an unclassified database failure.
func DatabaseError(cause error) *AppError {
	return withCause(New(ErrCodeDatabaseError, "A database error occurred. Please try again.", http.StatusInternalServerError), cause)
}

// AuthenticationFailed is returned when a dictation connection cannot be
// authenticated. Reason is safe to show to the client.
func AuthenticationFailed(reason string) *AppError {
	return New(ErrCodeAuthenticationFailed, reason, http.StatusUnauthorized)
}

// SessionConflict reports a session id that is already live.
func SessionConflict(sessionID string) *AppError {
	e := New(ErrCodeSessionConflict, "Session already active.", http.StatusConflict)
	return e.WithDetail("session_id", sessionID)
}

// TranscodeFailed wraps a transcoder failure.
func TranscodeFailed(cause error) *AppError {
	return withCause(New(ErrCodeTranscodeFailed,
		"Audio could not be converted to the recognizer format.", http.StatusUnprocessableEntity), cause)
}

// TranscriptionFailed wraps a speech recognition backend failure.
func TranscriptionFailed(provider string, cause error) *AppError {
	e := withCause(New(ErrCodeTranscriptionFailed, "Transcription failed.", http.StatusBadGateway), cause)
	return e.WithDetail("provider", provider)
}

// PersistenceFailed wraps a note write the database rejected.
func PersistenceFailed(cause error) *AppError {
	return withCause(New(ErrCodePersistenceFailed, "Failed to save clinical note.", http.StatusInternalServerError), cause)
}
