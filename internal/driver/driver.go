// internal/driver/driver.go
package driver

import (
	"context"

	"printer-bridge/internal/model"
)

// Driver is the backend contract for one printer transport. Exactly one
// implementation is selected at startup by a capability probe and injected
// into the connection manager; drivers never hold the authoritative
// connection state, only their own transport handle.
type Driver interface {
	// Name identifies the backend for logging and the device endpoint.
	Name() string

	// Available reports whether the host exposes this transport at all.
	Available() bool

	// Scan discovers nearby or paired printers. It may block for the
	// configured scan window and honors ctx cancellation.
	Scan(ctx context.Context) ([]model.DeviceDescriptor, error)

	// Connect opens a session with the given device. An empty id lets the
	// backend pick its default discovery path.
	Connect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error)

	// Reconnect attempts a silent connection to a previously authorized or
	// paired device, without any user-facing discovery prompt.
	Reconnect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error)

	// Disconnect tears down the session. Safe to call when not connected.
	Disconnect(ctx context.Context) error

	// Write sends raw bytes over the transport. Writes are serialized by
	// the implementation; callers must not issue them concurrently.
	Write(ctx context.Context, data []byte) error

	// WriteText sends plain text, a convenience for simple banner lines.
	WriteText(ctx context.Context, text string) error

	// Connected reports whether a live handle exists.
	Connected() bool

	// Device returns the descriptor of the connected device, nil otherwise.
	Device() *model.DeviceDescriptor
}
