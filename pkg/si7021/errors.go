package si7021

import "fmt"

// BusError wraps a failed bus write or read. No reading is produced.
type BusError struct {
	Op      string
	Command Command
	Err     error
}

// Error implements error.
func (e *BusError) Error() string {
	return fmt.Sprintf("si7021 %s: bus %s failed: %v", e.Command, e.Op, e.Err)
}

// Unwrap returns the underlying bus error.
func (e *BusError) Unwrap() error {
	return e.Err
}

// ChecksumError is returned in strict mode when the check byte mismatches.
type ChecksumError struct {
	Command Command
	Err     error
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("si7021 %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying *crc8.MismatchError.
func (e *ChecksumError) Unwrap() error {
	return e.Err
}
