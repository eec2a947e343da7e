package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no record exists for a serial.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when inserting a serial that already has a record.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidRecord is returned when a record cannot be stored as given.
	ErrInvalidRecord = errors.New("device: invalid record")
)

// StoreError reports a failed store operation.
// Err carries the driver's message, or ErrDeviceExists for a unique violation.
type StoreError struct {
	Op     string
	Serial string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Serial == "" {
		return fmt.Sprintf("device store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("device store %s %q: %v", e.Op, e.Serial, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
