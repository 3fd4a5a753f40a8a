// internal/driver/serialbt/driver.go
package serialbt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"printer-bridge/internal/driver"
	"printer-bridge/internal/model"
)

// Config holds serial line parameters for the Bluetooth bridge.
type Config struct {
	BaudRate     int           `json:"baud_rate"`
	DataBits     int           `json:"data_bits"`
	StopBits     int           `json:"stop_bits"`
	Parity       string        `json:"parity"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PortPatterns []string      `json:"port_patterns"`
}

// Driver talks to the printer through a serial-over-Bluetooth bridge
// (an rfcomm device node or the platform's bonded SPP port). Discovery
// lists paired ports directly; there is no user-facing picker. Byte and
// text writes share one mutex-guarded channel — the transport is a single
// serial line and interleaving corrupts the control stream.
type Driver struct {
	config *Config
	logger *zap.Logger

	mutex sync.Mutex
	port  serial.Port
	info  *model.DeviceDescriptor
}

// NewDriver creates the serial bridge backend.
func NewDriver(config *Config, logger *zap.Logger) *Driver {
	if config.BaudRate <= 0 {
		config.BaudRate = 9600
	}
	if config.DataBits <= 0 {
		config.DataBits = 8
	}
	if config.StopBits <= 0 {
		config.StopBits = 1
	}
	if len(config.PortPatterns) == 0 {
		config.PortPatterns = defaultPortPatterns()
	}

	return &Driver{
		config: config,
		logger: logger.With(zap.String("driver", "serialbt")),
	}
}

func defaultPortPatterns() []string {
	return []string{
		"/dev/rfcomm*",         // linux bluetooth serial
		"/dev/tty.*Bluetooth*", // darwin
		"/dev/cu.*",            // darwin callout devices
		"COM*",                 // windows bonded SPP ports
	}
}

// Name identifies the backend.
func (d *Driver) Name() string { return "serialbt" }

// Available reports whether the host exposes any serial ports at all.
func (d *Driver) Available() bool {
	ports, err := serial.GetPortsList()
	return err == nil && len(ports) > 0
}

// Scan lists paired bridge ports matching the configured patterns.
func (d *Driver) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrNotAvailable, err)
	}

	var discovered []model.DeviceDescriptor
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return discovered, driver.ErrScanCancelled
		default:
		}
		if !d.matchesPattern(port) {
			continue
		}
		discovered = append(discovered, model.DeviceDescriptor{
			ID:      port,
			Name:    filepath.Base(port),
			Address: port,
		})
	}

	d.logger.Info("Serial bridge scan completed",
		zap.Int("ports_total", len(ports)),
		zap.Int("devices_found", len(discovered)),
	)
	return discovered, nil
}

func (d *Driver) matchesPattern(port string) bool {
	for _, pattern := range d.config.PortPatterns {
		if ok, err := filepath.Match(pattern, port); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(strings.ToUpper(pattern), strings.ToUpper(port)); err == nil && ok {
			return true
		}
	}
	return false
}

// Connect opens the bridge port. Connection is address-based; an empty id
// picks the first paired port found.
func (d *Driver) Connect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error) {
	if deviceID == "" {
		found, err := d.Scan(ctx)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, driver.ErrDeviceNotFound
		}
		deviceID = found[0].ID
	}

	return d.open(deviceID)
}

// Reconnect replays the persisted address directly.
func (d *Driver) Reconnect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error) {
	if deviceID == "" {
		return nil, driver.ErrDeviceNotFound
	}
	return d.open(deviceID)
}

func (d *Driver) open(address string) (*model.DeviceDescriptor, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.port != nil {
		if err := d.port.Close(); err != nil {
			d.logger.Warn("Failed to close stale port", zap.Error(err))
		}
		d.port = nil
		d.info = nil
	}

	mode := &serial.Mode{
		BaudRate: d.config.BaudRate,
		DataBits: d.config.DataBits,
		StopBits: serial.StopBits(d.config.StopBits),
		Parity:   parseParity(d.config.Parity),
	}

	port, err := serial.Open(address, mode)
	if err != nil {
		d.logger.Error("Failed to open bridge port",
			zap.String("port", address),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", driver.ErrConnectionFailed, err)
	}

	d.port = port
	d.info = &model.DeviceDescriptor{
		ID:        address,
		Name:      filepath.Base(address),
		Address:   address,
		Connected: true,
	}

	d.logger.Info("Bridge port opened",
		zap.String("port", address),
		zap.Int("baud_rate", d.config.BaudRate),
	)
	return d.info, nil
}

func parseParity(s string) serial.Parity {
	switch s {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

// Disconnect closes the port and discards the descriptor.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.port == nil {
		return nil
	}

	if err := d.port.Close(); err != nil {
		d.logger.Error("Failed to close bridge port", zap.Error(err))
	}

	d.port = nil
	d.info = nil

	d.logger.Info("Bridge port closed")
	return nil
}

// Write sends raw bytes down the serial line. A short write is a transport
// failure: a truncated control sequence cannot be resumed. When a write
// timeout is configured, a write that stalls past it (powered-off printer
// holding flow control) also fails as a transport error.
func (d *Driver) Write(ctx context.Context, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.port == nil {
		return driver.ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if d.config.WriteTimeout <= 0 {
		if err := writeAll(d.port, data); err != nil {
			return err
		}
		d.logger.Debug("Data written to bridge port", zap.Int("bytes_written", len(data)))
		return nil
	}

	port := d.port
	done := make(chan error, 1)
	go func() { done <- writeAll(port, data) }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		d.logger.Debug("Data written to bridge port", zap.Int("bytes_written", len(data)))
		return nil
	case <-time.After(d.config.WriteTimeout):
		return &driver.TransportError{
			Op:  "serial write",
			Err: fmt.Errorf("write timed out after %s", d.config.WriteTimeout),
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeAll(port serial.Port, data []byte) error {
	n, err := port.Write(data)
	if err != nil {
		return &driver.TransportError{Op: "serial write", Err: err}
	}
	if n != len(data) {
		return &driver.TransportError{
			Op:  "serial write",
			Err: fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data)),
		}
	}
	return nil
}

// WriteText sends plain text on the same serialized channel.
func (d *Driver) WriteText(ctx context.Context, text string) error {
	return d.Write(ctx, []byte(text))
}

// Connected reports whether the port handle is live.
func (d *Driver) Connected() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.port != nil
}

// Device returns the connected descriptor, nil when disconnected.
func (d *Driver) Device() *model.DeviceDescriptor {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.info == nil {
		return nil
	}
	info := *d.info
	return &info
}
