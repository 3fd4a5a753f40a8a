// internal/driver/ble/driver.go
package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"printer-bridge/internal/driver"
	"printer-bridge/internal/model"
)

// Config holds the GATT coordinates of the printer service.
type Config struct {
	ServiceUUID        string        `json:"service_uuid"`
	CharacteristicUUID string        `json:"characteristic_uuid"`
	ScanTimeout        time.Duration `json:"scan_timeout"`
	ChunkSize          int           `json:"chunk_size"`
}

// Driver talks to the printer over a BLE GATT write characteristic.
// Discovery is scoped to the configured service UUID; writes are chunked to
// the transport MTU and awaited one at a time — the characteristic is not
// safe for concurrent writers.
type Driver struct {
	config  *Config
	adapter *bluetooth.Adapter
	logger  *zap.Logger

	mutex     sync.Mutex
	enabled   bool
	device    *bluetooth.Device
	writeChar *bluetooth.DeviceCharacteristic
	info      *model.DeviceDescriptor

	serviceUUID bluetooth.UUID
	charUUID    bluetooth.UUID
}

// NewDriver creates the BLE backend. The adapter is probed once: a host
// without a BLE stack yields a driver that reports Available() == false.
func NewDriver(config *Config, logger *zap.Logger) (*Driver, error) {
	if config.ServiceUUID == "" || config.CharacteristicUUID == "" {
		return nil, fmt.Errorf("service and characteristic UUIDs are required")
	}

	serviceUUID, err := bluetooth.ParseUUID(config.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID: %w", err)
	}
	charUUID, err := bluetooth.ParseUUID(config.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID: %w", err)
	}

	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 30 * time.Second
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 20 // safe default for a 23-byte ATT MTU
	}

	d := &Driver{
		config:      config,
		adapter:     bluetooth.DefaultAdapter,
		logger:      logger.With(zap.String("driver", "ble")),
		serviceUUID: serviceUUID,
		charUUID:    charUUID,
	}

	if err := d.adapter.Enable(); err != nil {
		d.logger.Warn("BLE adapter unavailable", zap.Error(err))
	} else {
		d.enabled = true
	}

	return d, nil
}

// Name identifies the backend.
func (d *Driver) Name() string { return "ble" }

// Available reports whether the host exposes a BLE adapter.
func (d *Driver) Available() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.enabled
}

// Scan discovers advertising printers that expose the configured service.
func (d *Driver) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	if !d.Available() {
		return nil, driver.ErrNotAvailable
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.ScanTimeout)
	defer cancel()

	results := make(chan bluetooth.ScanResult, 16)
	scanErr := make(chan error, 1)

	go func() {
		err := d.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.AdvertisementPayload.HasServiceUUID(d.serviceUUID) {
				return
			}
			select {
			case results <- result:
			default:
			}
		})
		if err != nil {
			scanErr <- err
		}
	}()

	seen := make(map[string]bool)
	var discovered []model.DeviceDescriptor

	for {
		select {
		case <-ctx.Done():
			if err := d.adapter.StopScan(); err != nil {
				d.logger.Warn("Failed to stop scan", zap.Error(err))
			}
			// A cancelled picker and an expired window look the same to
			// callers: the scan just did not produce a selection.
			if ctx.Err() == context.Canceled {
				return nil, driver.ErrScanCancelled
			}
			d.logger.Info("BLE scan window closed", zap.Int("devices_found", len(discovered)))
			return discovered, nil
		case err := <-scanErr:
			return nil, fmt.Errorf("%w: %v", driver.ErrConnectionFailed, err)
		case result := <-results:
			addr := result.Address.String()
			if seen[addr] {
				continue
			}
			seen[addr] = true
			discovered = append(discovered, model.DeviceDescriptor{
				ID:      addr,
				Name:    result.LocalName(),
				Address: addr,
			})
			d.logger.Debug("BLE printer advertising",
				zap.String("address", addr),
				zap.String("name", result.LocalName()),
			)
		}
	}
}

// Connect opens a GATT session and resolves the write characteristic. An
// empty deviceID falls back to the first printer the scan finds.
func (d *Driver) Connect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error) {
	if !d.Available() {
		return nil, driver.ErrNotAvailable
	}

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

	return d.connectByAddress(deviceID)
}

// Reconnect attempts a direct connection to an already-authorized device.
// No scan, no picker: either the host still knows the address or it fails.
func (d *Driver) Reconnect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error) {
	if !d.Available() {
		return nil, driver.ErrNotAvailable
	}
	if deviceID == "" {
		return nil, driver.ErrDeviceNotFound
	}
	return d.connectByAddress(deviceID)
}

func (d *Driver) connectByAddress(address string) (*model.DeviceDescriptor, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Drop any session still held before replacing it; the old GATT link
	// would otherwise stay open until process exit.
	if d.device != nil {
		if err := d.device.Disconnect(); err != nil {
			d.logger.Warn("Failed to drop stale GATT session", zap.Error(err))
		}
		d.device = nil
		d.writeChar = nil
		d.info = nil
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid address %q", driver.ErrDeviceNotFound, address)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	device, err := d.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		d.logger.Error("BLE connect failed", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", driver.ErrConnectionFailed, err)
	}

	writeChar, err := d.resolveWriteCharacteristic(&device)
	if err != nil {
		_ = device.Disconnect()
		return nil, fmt.Errorf("%w: %v", driver.ErrConnectionFailed, err)
	}

	d.device = &device
	d.writeChar = writeChar
	d.info = &model.DeviceDescriptor{
		ID:        address,
		Name:      "BLE printer",
		Address:   address,
		Connected: true,
	}

	d.logger.Info("BLE printer connected", zap.String("address", address))
	return d.info, nil
}

// resolveWriteCharacteristic finds the single write characteristic of the
// printer service.
func (d *Driver) resolveWriteCharacteristic(device *bluetooth.Device) (*bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{d.serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("service discovery failed: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("printer service %s not present", d.serviceUUID.String())
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{d.charUUID})
	if err != nil {
		return nil, fmt.Errorf("characteristic discovery failed: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("write characteristic %s not present", d.charUUID.String())
	}

	return &chars[0], nil
}

// Disconnect drops the GATT session and discards the descriptor.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.device == nil {
		return nil
	}

	if err := d.device.Disconnect(); err != nil {
		d.logger.Warn("BLE disconnect reported error", zap.Error(err))
	}

	d.device = nil
	d.writeChar = nil
	d.info = nil

	d.logger.Info("BLE printer disconnected")
	return nil
}

// Write sends data over the write characteristic, chunked to the transport
// MTU. Each chunk is awaited before the next one goes out.
func (d *Driver) Write(ctx context.Context, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.device == nil || d.writeChar == nil {
		return driver.ErrNotConnected
	}

	for offset := 0; offset < len(data); offset += d.config.ChunkSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := offset + d.config.ChunkSize
		if end > len(data) {
			end = len(data)
		}

		if _, err := d.writeChar.WriteWithoutResponse(data[offset:end]); err != nil {
			return &driver.TransportError{Op: "ble write", Err: err}
		}
	}

	d.logger.Debug("BLE write completed", zap.Int("bytes", len(data)))
	return nil
}

// WriteText sends plain text through the same chunked path.
func (d *Driver) WriteText(ctx context.Context, text string) error {
	return d.Write(ctx, []byte(text))
}

// Connected reports whether a GATT handle is live.
func (d *Driver) Connected() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.device != nil && d.writeChar != nil
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
