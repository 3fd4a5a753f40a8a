// internal/model/device.go
package model

// ConnectionState represents the single authoritative state of the
// printer connection. It is owned by the connection manager; backend
// drivers only report transitions.
type ConnectionState string

const (
	StateUnavailable ConnectionState = "UNAVAILABLE"
	StateIdle        ConnectionState = "IDLE"
	StateScanning    ConnectionState = "SCANNING"
	StateConnecting  ConnectionState = "CONNECTING"
	StateConnected   ConnectionState = "CONNECTED"
	StatePrinting    ConnectionState = "PRINTING"
)

// TicketKind selects which layout the composer produces.
type TicketKind string

const (
	TicketKindCustomer TicketKind = "customer"
	TicketKindKitchen  TicketKind = "kitchen"
)

// IsValid reports whether the kind is one of the two supported layouts.
func (k TicketKind) IsValid() bool {
	return k == TicketKindCustomer || k == TicketKindKitchen
}

// DeviceDescriptor describes a printer seen during discovery. Descriptors
// are created on discovery, updated on connect/disconnect and discarded on
// disconnect; only the ID survives restarts (see the store package).
type DeviceDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}
