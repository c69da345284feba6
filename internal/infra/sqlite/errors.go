package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// wrapNotFound turns sql.ErrNoRows into domain.ErrNotFound, leaving any
// other error untouched.
func wrapNotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, domain.ErrPersistence)
}

// isUniqueViolation detects SQLite's UNIQUE constraint failure message.
// modernc.org/sqlite surfaces constraint errors as plain *sqlite.Error
// whose Error() text includes "UNIQUE constraint failed" — matching on
// the message is the portable way to do this without importing the
// driver's internal error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func wrapWrite(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrUniqueViolation)
	}
	return fmt.Errorf("%s: %w", what, domain.ErrPersistence)
}
