package errors

// ErrorCode is the machine-readable code in error responses and status frames.
type ErrorCode string

// Backend availability. These are retryable.
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// Request errors.
const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField         ErrorCode = "MISSING_FIELD"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
)

// Dictation errors.
const (
	// ErrCodeSessionConflict means a session id is already bound to a live connection.
	ErrCodeSessionConflict ErrorCode = "SESSION_CONFLICT"
	// ErrCodeTranscodeFailed is reported by the audio transcoder. Callers fall back to the original file.
	ErrCodeTranscodeFailed ErrorCode = "TRANSCODE_FAILED"
	// ErrCodeTranscriptionFailed is a failure of a speech recognition backend.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodePersistenceFailed means a clinical note write was rejected by the database.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
)

// Internal errors.
const (
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// IsRetryableCode reports whether errors with code are worth retrying.
func IsRetryableCode(code ErrorCode) bool {
	switch code {
	case ErrCodeServiceUnavailable, ErrCodeConnectionFailed, ErrCodeTimeout,
		ErrCodeDatabaseError, ErrCodeTranscriptionFailed:
		return true
	}
	return false
}
