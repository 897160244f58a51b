package grpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/kbukum/dictation/errors"
)

// FromGRPC translates an error from a speech backend call into an AppError.
// Backend outages come back retryable so circuit breakers count them; audio
// the backend rejects does not. The original error stays reachable through
// errors.Is and errors.As.
func FromGRPC(err error, backend string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if IsConnectionError(err) {
		return apperrors.New(apperrors.ErrCodeConnectionFailed,
			"Could not reach the "+backend+".", http.StatusServiceUnavailable).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout(backend).WithCause(err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return apperrors.TranscriptionFailed(backend, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return apperrors.ServiceUnavailable(backend).WithCause(err)
	case codes.DeadlineExceeded:
		return apperrors.Timeout(backend).WithCause(err)
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return rejected(backend, st.Message()).WithCause(err)
	case codes.Unauthenticated, codes.PermissionDenied:
		// Our credentials, not the caller's. Retrying will not help.
		e := apperrors.TranscriptionFailed(backend, err)
		e.Retryable = false
		return e
	default:
		return apperrors.TranscriptionFailed(backend, err)
	}
}

func rejected(backend, msg string) *apperrors.AppError {
	text := "The " + backend + " rejected the audio."
	if msg != "" {
		text = "The " + backend + " rejected the audio: " + msg
	}
	return apperrors.New(apperrors.ErrCodeInvalidInput, text, http.StatusUnprocessableEntity)
}

// IsConnectionError reports whether err is a failure to reach the backend at
// all, as opposed to an error status returned by it.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection refused", "connection reset", "no such host", "transport is closing"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
