// internal/printer/manager.go
package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"printer-bridge/internal/driver"
	"printer-bridge/internal/model"
	"printer-bridge/internal/receipt"
)

// DeviceStore abstracts the remembered-device persistence.
type DeviceStore interface {
	RememberedDevice() (string, error)
	SetRememberedDevice(id string) error
}

// StateListener observes connection-state transitions.
type StateListener func(old, new model.ConnectionState)

// Manager is the facade in front of the backend driver. It owns the single
// authoritative connection state, enforces single-flight printing and runs
// the silent-reconnect policy. One instance drives one physical printer.
type Manager struct {
	driver   driver.Driver
	store    DeviceStore
	composer *receipt.Composer
	logger   *zap.Logger
	now      func() time.Time

	mutex     sync.Mutex
	state     model.ConnectionState
	listeners []StateListener
}

// NewManager builds a manager around an injected driver. The capability
// probe happens here, once: a host without the transport starts (and stays)
// in the unavailable state until Reprobe is called.
func NewManager(drv driver.Driver, store DeviceStore, composer *receipt.Composer, logger *zap.Logger) *Manager {
	m := &Manager{
		driver:   drv,
		store:    store,
		composer: composer,
		logger:   logger.With(zap.String("component", "printer-manager")),
		now:      time.Now,
		state:    model.StateIdle,
	}
	if !drv.Available() {
		m.state = model.StateUnavailable
	}
	return m
}

// OnStateChange registers a transition listener. Listeners run outside the
// manager lock and must not call back into the manager synchronously.
func (m *Manager) OnStateChange(fn StateListener) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// DeviceInfo returns the connected device descriptor, nil when there is none.
func (m *Manager) DeviceInfo() *model.DeviceDescriptor {
	return m.driver.Device()
}

// Reprobe re-checks host capability from the unavailable state.
func (m *Manager) Reprobe() model.ConnectionState {
	m.mutex.Lock()
	if m.state != model.StateUnavailable {
		state := m.state
		m.mutex.Unlock()
		return state
	}
	m.mutex.Unlock()

	if m.driver.Available() {
		m.compareAndSetState(model.StateUnavailable, model.StateIdle)
	}
	return m.State()
}

// Scan discovers printers. Rejected while a print is in flight; the state
// passes through scanning and returns to where it was, unless another
// operation took over the state while the scan ran.
func (m *Manager) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	m.mutex.Lock()
	switch m.state {
	case model.StateUnavailable:
		m.mutex.Unlock()
		return nil, driver.ErrNotAvailable
	case model.StatePrinting:
		m.mutex.Unlock()
		return nil, driver.ErrBusy
	}
	previous := m.state
	m.state = model.StateScanning
	m.mutex.Unlock()
	m.notify(previous, model.StateScanning)

	devices, err := m.driver.Scan(ctx)

	// Restore only from scanning. A connect that completed while the scan
	// was in flight owns the state now and must not be stomped back.
	m.compareAndSetState(model.StateScanning, previous)

	if err != nil {
		m.logger.Warn("Scan failed", zap.Error(err))
		return nil, err
	}

	m.logger.Info("Scan completed", zap.Int("devices_found", len(devices)))
	return devices, nil
}

// Connect establishes a session. With an empty deviceID the manager first
// attempts one silent reconnect to the remembered device before falling
// back to the backend's discovery path; a fixed front-counter printer stays
// paired indefinitely, so this avoids repeated manual pairing.
func (m *Manager) Connect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error) {
	m.mutex.Lock()
	switch m.state {
	case model.StateUnavailable:
		m.mutex.Unlock()
		return nil, driver.ErrNotAvailable
	case model.StatePrinting:
		m.mutex.Unlock()
		return nil, driver.ErrBusy
	}
	previous := m.state
	m.state = model.StateConnecting
	m.mutex.Unlock()
	m.notify(previous, model.StateConnecting)

	if deviceID == "" {
		if desc := m.silentReconnect(ctx); desc != nil {
			m.setState(model.StateConnected)
			return desc, nil
		}
	}

	desc, err := m.driver.Connect(ctx, deviceID)
	if err != nil {
		m.compareAndSetState(model.StateConnecting, model.StateIdle)
		m.logger.Error("Connect failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, err
	}

	// Overwrite the remembered id on every successful manual connect.
	if err := m.store.SetRememberedDevice(desc.ID); err != nil {
		m.logger.Warn("Failed to persist remembered device", zap.Error(err))
	}

	m.setState(model.StateConnected)
	m.logger.Info("Printer connected",
		zap.String("device_id", desc.ID),
		zap.String("name", desc.Name),
	)
	return desc, nil
}

// TryReconnect attempts a silent reconnect to the remembered device. Every
// failure is downgraded to false: the absence of a remembered or authorized
// device is an expected outcome, not an exceptional one.
func (m *Manager) TryReconnect(ctx context.Context) bool {
	m.mutex.Lock()
	switch m.state {
	case model.StateUnavailable, model.StatePrinting, model.StateConnected:
		state := m.state
		m.mutex.Unlock()
		return state == model.StateConnected
	}
	previous := m.state
	m.state = model.StateConnecting
	m.mutex.Unlock()
	m.notify(previous, model.StateConnecting)

	desc := m.silentReconnect(ctx)
	if desc == nil {
		m.compareAndSetState(model.StateConnecting, model.StateIdle)
		return false
	}

	m.setState(model.StateConnected)
	return true
}

func (m *Manager) silentReconnect(ctx context.Context) *model.DeviceDescriptor {
	remembered, err := m.store.RememberedDevice()
	if err != nil {
		m.logger.Warn("Failed to read remembered device", zap.Error(err))
		return nil
	}
	if remembered == "" {
		return nil
	}

	desc, err := m.driver.Reconnect(ctx, remembered)
	if err != nil {
		m.logger.Info("Silent reconnect failed",
			zap.String("device_id", remembered),
			zap.Error(err),
		)
		return nil
	}

	m.logger.Info("Silent reconnect succeeded", zap.String("device_id", desc.ID))
	return desc
}

// Disconnect tears down the session. The remembered device id is kept so a
// later silent reconnect still works — this mirrors an unplanned link drop.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mutex.Lock()
	if m.state == model.StateUnavailable {
		m.mutex.Unlock()
		return driver.ErrNotAvailable
	}
	m.mutex.Unlock()

	if err := m.driver.Disconnect(ctx); err != nil {
		m.logger.Warn("Driver disconnect reported error", zap.Error(err))
	}

	m.setState(model.StateIdle)
	m.logger.Info("Printer disconnected")
	return nil
}

// Print composes the requested layout and streams it to the printer.
// Single-flight: a second call while printing fails immediately with
// ErrBusy and never touches the in-flight stream. A write failure is
// treated as a full connection loss — a partial stream leaves the firmware
// in an undefined formatting state, so the logical connection is reset.
func (m *Manager) Print(ctx context.Context, order *model.Order, kind model.TicketKind) error {
	m.mutex.Lock()
	switch m.state {
	case model.StateUnavailable:
		m.mutex.Unlock()
		return driver.ErrNotAvailable
	case model.StatePrinting:
		m.mutex.Unlock()
		return driver.ErrBusy
	case model.StateConnected:
		// proceed
	default:
		m.mutex.Unlock()
		return driver.ErrNotConnected
	}
	m.state = model.StatePrinting
	m.mutex.Unlock()
	m.notify(model.StateConnected, model.StatePrinting)

	jobID := uuid.New().String()
	start := m.now()

	var data []byte
	switch kind {
	case model.TicketKindKitchen:
		data = m.composer.ComposeKitchenTicket(order, start)
	default:
		data = m.composer.ComposeCustomerReceipt(order, start)
	}

	if err := m.driver.Write(ctx, data); err != nil {
		// Force-reset rather than resume: no way to know how much of the
		// stream the firmware consumed.
		if derr := m.driver.Disconnect(ctx); derr != nil {
			m.logger.Warn("Disconnect after failed write reported error", zap.Error(derr))
		}
		m.compareAndSetState(model.StatePrinting, model.StateIdle)
		m.logger.Error("Print job failed",
			zap.String("job_id", jobID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return fmt.Errorf("print job %s: %w", jobID, err)
	}

	// An explicit disconnect while the stream was in flight wins.
	m.compareAndSetState(model.StatePrinting, model.StateConnected)
	m.logger.Info("Print job completed",
		zap.String("job_id", jobID),
		zap.String("kind", string(kind)),
		zap.String("order_id", order.ID),
		zap.Int("bytes_written", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// compareAndSetState transitions to next only when the state is still from,
// so an operation finishing late cannot overwrite a transition made by a
// newer one. Reports whether the transition happened.
func (m *Manager) compareAndSetState(from, to model.ConnectionState) bool {
	m.mutex.Lock()
	if m.state != from {
		m.mutex.Unlock()
		return false
	}
	m.state = to
	m.mutex.Unlock()

	if from != to {
		m.notify(from, to)
	}
	return true
}

// setState transitions the state and notifies listeners.
func (m *Manager) setState(next model.ConnectionState) {
	m.mutex.Lock()
	old := m.state
	m.state = next
	m.mutex.Unlock()

	if old != next {
		m.notify(old, next)
	}
}

func (m *Manager) notify(old, next model.ConnectionState) {
	m.mutex.Lock()
	listeners := make([]StateListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mutex.Unlock()

	for _, fn := range listeners {
		fn(old, next)
	}
}
