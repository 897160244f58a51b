// Package errors provides the service's structured error type.
//
// AppError carries a machine-readable code, a client-safe message, an HTTP
// status and a retryable flag. Handlers render it with ToResponse; the
// dictation stream maps it to status frames instead.
package errors
