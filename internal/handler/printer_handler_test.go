// internal/handler/printer_handler_test.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-bridge/internal/driver"
	"printer-bridge/internal/model"
	"printer-bridge/internal/printer"
)

type fakeManager struct {
	state      model.ConnectionState
	device     *model.DeviceDescriptor
	printErr   error
	connectErr error
	scanErr    error
	scanResult []model.DeviceDescriptor
	reconnect  bool

	printedKind model.TicketKind
	connectedID string
}

func (f *fakeManager) State() model.ConnectionState        { return f.state }
func (f *fakeManager) DeviceInfo() *model.DeviceDescriptor { return f.device }
func (f *fakeManager) Reprobe() model.ConnectionState      { return f.state }
func (f *fakeManager) OnStateChange(printer.StateListener) {}

func (f *fakeManager) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	return f.scanResult, f.scanErr
}

func (f *fakeManager) Connect(ctx context.Context, deviceID string) (*model.DeviceDescriptor, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connectedID = deviceID
	return f.device, nil
}

func (f *fakeManager) TryReconnect(ctx context.Context) bool { return f.reconnect }
func (f *fakeManager) Disconnect(ctx context.Context) error  { return nil }

func (f *fakeManager) Print(ctx context.Context, order *model.Order, kind model.TicketKind) error {
	f.printedKind = kind
	return f.printErr
}

func newTestRouter(m *fakeManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPrinterHandler(m, zap.NewNop())

	router := gin.New()
	api := router.Group("/api/v1/printer")
	api.POST("/print", h.Print)
	api.POST("/scan", h.Scan)
	api.POST("/connect", h.Connect)
	api.POST("/disconnect", h.Disconnect)
	api.POST("/reconnect", h.Reconnect)
	api.GET("/state", h.State)
	api.GET("/device", h.Device)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPrintErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"busy", driver.ErrBusy, http.StatusConflict, "PRINTER_BUSY"},
		{"not connected", driver.ErrNotConnected, http.StatusPreconditionFailed, "PRINTER_NOT_CONNECTED"},
		{"unavailable", driver.ErrNotAvailable, http.StatusServiceUnavailable, "PRINTER_UNAVAILABLE"},
		{"transport", &driver.TransportError{Op: "write", Err: context.DeadlineExceeded}, http.StatusBadGateway, "TRANSPORT_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeManager{state: model.StateConnected, printErr: tt.err}
			router := newTestRouter(m)

			rec := doRequest(t, router, http.MethodPost, "/api/v1/printer/print",
				`{"kind":"customer","order":{"id":"ord-1","items":[]}}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestPrintDefaultsToCustomerKind(t *testing.T) {
	m := &fakeManager{state: model.StateConnected}
	router := newTestRouter(m)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/printer/print",
		`{"order":{"id":"ord-1","items":[]}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if m.printedKind != model.TicketKindCustomer {
		t.Errorf("printed kind = %q, want customer", m.printedKind)
	}
}

func TestPrintRejectsUnknownKind(t *testing.T) {
	m := &fakeManager{state: model.StateConnected}
	router := newTestRouter(m)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/printer/print",
		`{"kind":"invoice","order":{"id":"ord-1","items":[]}}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if m.printedKind != "" {
		t.Error("print should not reach the manager on an invalid kind")
	}
}

func TestConnectPassesDeviceID(t *testing.T) {
	m := &fakeManager{
		state:  model.StateIdle,
		device: &model.DeviceDescriptor{ID: "AA:BB", Name: "Printer", Connected: true},
	}
	router := newTestRouter(m)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/printer/connect",
		`{"device_id":"AA:BB"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if m.connectedID != "AA:BB" {
		t.Errorf("connected id = %q, want AA:BB", m.connectedID)
	}
}

func TestConnectAcceptsEmptyBody(t *testing.T) {
	m := &fakeManager{
		state:       model.StateIdle,
		device:      &model.DeviceDescriptor{ID: "AA:BB", Connected: true},
		connectedID: "sentinel",
	}
	router := newTestRouter(m)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/printer/connect", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	// No body means no device id: the manager runs its silent-reconnect path.
	if m.connectedID != "" {
		t.Errorf("connected id = %q, want empty", m.connectedID)
	}
}

func TestReconnectNeverFails(t *testing.T) {
	for _, connected := range []bool{true, false} {
		m := &fakeManager{state: model.StateIdle, reconnect: connected}
		router := newTestRouter(m)

		rec := doRequest(t, router, http.MethodPost, "/api/v1/printer/reconnect", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp struct {
			Data struct {
				Connected bool `json:"connected"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.Data.Connected != connected {
			t.Errorf("connected = %v, want %v", resp.Data.Connected, connected)
		}
	}
}

func TestStateEndpoint(t *testing.T) {
	m := &fakeManager{
		state:  model.StateConnected,
		device: &model.DeviceDescriptor{ID: "AA:BB", Connected: true},
	}
	router := newTestRouter(m)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/printer/state", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data struct {
			State  string                  `json:"state"`
			Device *model.DeviceDescriptor `json:"device"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.State != string(model.StateConnected) {
		t.Errorf("state = %q, want CONNECTED", resp.Data.State)
	}
	if resp.Data.Device == nil || resp.Data.Device.ID != "AA:BB" {
		t.Errorf("device = %+v, want id AA:BB", resp.Data.Device)
	}
}

func TestDeviceEndpointWithoutConnection(t *testing.T) {
	m := &fakeManager{state: model.StateIdle}
	router := newTestRouter(m)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/printer/device", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestScanReturnsDiscoveredDevices(t *testing.T) {
	m := &fakeManager{
		state: model.StateIdle,
		scanResult: []model.DeviceDescriptor{
			{ID: "AA:BB", Name: "Thermal"},
			{ID: "CC:DD", Name: "Kitchen"},
		},
	}
	router := newTestRouter(m)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/printer/scan", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data struct {
			Count   int                      `json:"count"`
			Devices []model.DeviceDescriptor `json:"devices"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.Count != 2 || len(resp.Data.Devices) != 2 {
		t.Errorf("count = %d devices = %d, want 2/2", resp.Data.Count, len(resp.Data.Devices))
	}
}
