package transcription

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrDeadlineExceeded means the backend stream hit its inactivity deadline.
	ErrDeadlineExceeded = errors.New("transcription: stream deadline exceeded")
	// ErrCanceled means the stream was canceled, usually because the client left.
	ErrCanceled = errors.New("transcription: stream canceled")
)

// Normalize maps context and gRPC cancellation errors onto ErrDeadlineExceeded
// and ErrCanceled. Other errors pass through.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrDeadlineExceeded), errors.Is(err, ErrCanceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return errors.Join(ErrCanceled, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return errors.Join(ErrDeadlineExceeded, err)
		case codes.Canceled:
			return errors.Join(ErrCanceled, err)
		}
	}
	return err
}

// Kind returns a short label for an unexpected backend error, suitable for
// showing to a client: the gRPC code name when there is one.
func Kind(err error) string {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Code().String()
	}
	var kinder interface{ Kind() string }
	if errors.As(err, &kinder) {
		return kinder.Kind()
	}
	return "BackendError"
}
