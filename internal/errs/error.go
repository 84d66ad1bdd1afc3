package errs

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrBookUnavailable = errors.New("Book is not available")
	ErrInvalidAction   = errors.New("Invalid action")
	ErrConflict        = errors.New("already exists")
	ErrReferenced      = errors.New("referenced by other records")
	ErrNoAuth          = errors.New("Authentication required")
	ErrForbidden       = errors.New("Admin access required")
	ErrNoData          = errors.New("No data provided")
)
