package database

import (
	"database/sql/driver"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/dictation/errors"
)

// transientPatterns are driver messages for failures that a retry can fix:
// a dropped connection or lock contention.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"bad connection",
	"database is locked",
	"sqlite_busy",
	"deadlock",
	"too many connections",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// FromDatabase classifies a gorm error on resource. Constraint violations
// mean the write can never succeed and are not retryable; transient faults
// are, so note persistence retries them.
func FromDatabase(err error, resource string) *apperrors.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(resource, "").WithCause(err)
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return apperrors.PersistenceFailed(err).WithDetail("resource", resource)
	case IsTransient(err):
		return apperrors.New(apperrors.ErrCodeDatabaseError,
			"The database is temporarily unavailable. Please try again.", http.StatusServiceUnavailable).WithCause(err)
	default:
		return apperrors.DatabaseError(err)
	}
}
