// internal/handler/printer_handler.go
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-bridge/internal/driver"
	"printer-bridge/internal/model"
	"printer-bridge/internal/printer"
	"printer-bridge/internal/utils"
)

// Manager is the slice of the connection manager the HTTP layer needs.
type Manager interface {
	State() model.ConnectionState
	DeviceInfo() *model.DeviceDescriptor
	Reprobe() model.ConnectionState
	Scan(ctx context.Context) ([]model.DeviceDescriptor, error)
	Connect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error)
	TryReconnect(ctx context.Context) bool
	Disconnect(ctx context.Context) error
	Print(ctx context.Context, order *model.Order, kind model.TicketKind) error
	OnStateChange(fn printer.StateListener)
}

// PrinterHandler handles printer-related HTTP requests
type PrinterHandler struct {
	manager Manager
	logger  *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(manager Manager, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{
		manager: manager,
		logger:  utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// PrintRequest is the print endpoint payload.
type PrintRequest struct {
	Kind  model.TicketKind `json:"kind"`
	Order model.Order      `json:"order" binding:"required"`
}

// ConnectRequest is the connect endpoint payload. DeviceID may be empty,
// which asks the manager for a silent reconnect before fresh discovery.
type ConnectRequest struct {
	DeviceID string `json:"device_id"`
}

// Print composes and prints one ticket
func (h *PrinterHandler) Print(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "", "Invalid request body", err)
		return
	}

	if req.Kind == "" {
		req.Kind = model.TicketKindCustomer
	}
	if !req.Kind.IsValid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_TICKET_KIND",
			"kind must be 'customer' or 'kitchen'", nil)
		return
	}

	if err := h.manager.Print(c.Request.Context(), &req.Order, req.Kind); err != nil {
		h.respondPrinterError(c, "Print failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ticket printed", gin.H{
		"order_id": req.Order.ID,
		"kind":     req.Kind,
	})
}

// Scan discovers nearby printers
func (h *PrinterHandler) Scan(c *gin.Context) {
	devices, err := h.manager.Scan(c.Request.Context())
	if err != nil {
		h.respondPrinterError(c, "Scan failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Scan completed", gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// Connect establishes a printer session. The body is optional: no body (or
// no device_id) requests the silent-reconnect-first path.
func (h *PrinterHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "", "Invalid request body", err)
		return
	}

	device, err := h.manager.Connect(c.Request.Context(), req.DeviceID)
	if err != nil {
		h.respondPrinterError(c, "Connect failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Printer connected", device)
}

// Disconnect tears down the printer session
func (h *PrinterHandler) Disconnect(c *gin.Context) {
	if err := h.manager.Disconnect(c.Request.Context()); err != nil {
		h.respondPrinterError(c, "Disconnect failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Printer disconnected", nil)
}

// Reconnect attempts a silent reconnect to the remembered printer. It never
// fails: callers get connected true or false, matching its silent nature.
func (h *PrinterHandler) Reconnect(c *gin.Context) {
	connected := h.manager.TryReconnect(c.Request.Context())

	utils.SuccessResponse(c, http.StatusOK, "Reconnect attempted", gin.H{
		"connected": connected,
		"state":     h.manager.State(),
	})
}

// State returns the current connection state and device descriptor
func (h *PrinterHandler) State(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Printer state", gin.H{
		"state":  h.manager.State(),
		"device": h.manager.DeviceInfo(),
	})
}

// Device returns the connected device descriptor
func (h *PrinterHandler) Device(c *gin.Context) {
	device := h.manager.DeviceInfo()
	if device == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "NO_DEVICE", "No printer connected", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Connected device", device)
}

// Reprobe re-checks host transport capability
func (h *PrinterHandler) Reprobe(c *gin.Context) {
	state := h.manager.Reprobe()

	utils.SuccessResponse(c, http.StatusOK, "Capability probed", gin.H{
		"state": state,
	})
}

// respondPrinterError maps driver-level errors to HTTP status codes.
func (h *PrinterHandler) respondPrinterError(c *gin.Context, message string, err error) {
	var transportErr *driver.TransportError

	switch {
	case errors.Is(err, driver.ErrNotAvailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "PRINTER_UNAVAILABLE", message, err)
	case errors.Is(err, driver.ErrBusy):
		utils.ErrorResponse(c, http.StatusConflict, "PRINTER_BUSY", message, err)
	case errors.Is(err, driver.ErrNotConnected):
		utils.ErrorResponse(c, http.StatusPreconditionFailed, "PRINTER_NOT_CONNECTED", message, err)
	case errors.Is(err, driver.ErrDeviceNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "DEVICE_NOT_FOUND", message, err)
	case errors.Is(err, driver.ErrScanCancelled):
		utils.ErrorResponse(c, http.StatusRequestTimeout, "SCAN_CANCELLED", message, err)
	case errors.Is(err, driver.ErrConnectionFailed):
		utils.ErrorResponse(c, http.StatusBadGateway, "CONNECTION_FAILED", message, err)
	case errors.As(err, &transportErr):
		utils.ErrorResponse(c, http.StatusBadGateway, "TRANSPORT_ERROR", message, err)
	default:
		h.logger.Error("Unhandled printer error", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "", message, err)
	}
}
