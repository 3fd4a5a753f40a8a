// internal/driver/errors.go
package driver

import (
	"errors"
	"fmt"
)

// Condition errors surfaced across the driver boundary. The connection
// manager re-raises every transport failure as one of these.
var (
	ErrNotAvailable     = errors.New("printer transport not available on this host")
	ErrNotConnected     = errors.New("printer not connected")
	ErrBusy             = errors.New("a print job is already in progress")
	ErrDeviceNotFound   = errors.New("printer device not found")
	ErrScanCancelled    = errors.New("device scan cancelled")
	ErrConnectionFailed = errors.New("failed to connect to printer")
)

// TransportError wraps a write failure mid-print. The manager treats it as
// a connection loss: a partial byte stream leaves the printer firmware in an
// undefined formatting state, so the logical connection is force-reset.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport write failed during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
