package services

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	ErrNotFound       = errors.New("record not found")
	ErrValidation     = errors.New("validation failed")
	ErrUnknownDriver  = errors.New("unknown driver reference")
	ErrLedgerBusy     = errors.New("ledger busy, retry the request")
	ErrImmutableEntry = errors.New("ledger entry cannot be deleted")
	ErrInvalidState   = errors.New("invalid state transition")
)

// UnknownDriverError is returned by the calculator when a system driver id
// resolves to nothing. It matches ErrUnknownDriver.
type UnknownDriverError struct {
	DriverID string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown driver reference %q", e.DriverID)
}

func (e *UnknownDriverError) Is(target error) bool {
	return target == ErrUnknownDriver
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
