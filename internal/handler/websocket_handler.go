// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"printer-bridge/internal/model"
	"printer-bridge/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// StateEvent is the message pushed to websocket clients.
type StateEvent struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// wsClient is one connected websocket peer.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHandler pushes connection-state transitions to subscribed UIs so
// they never have to poll the state endpoint.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	manager  Manager
	logger   *utils.ServiceLogger

	mutex   sync.Mutex
	clients map[string]*wsClient
}

// NewWebSocketHandler creates the handler and hooks it into the manager's
// state-transition notifications.
func NewWebSocketHandler(manager Manager, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// CORS config guards the HTTP surface; the bridge binds to
				// loopback, so origins are not re-checked here.
				return true
			},
		},
		manager: manager,
		logger:  utils.NewServiceLogger(logger, "websocket-handler"),
		clients: make(map[string]*wsClient),
	}

	manager.OnStateChange(func(old, new model.ConnectionState) {
		h.broadcast(&StateEvent{
			Type: "state_changed",
			Data: map[string]interface{}{
				"old_state": old,
				"new_state": new,
			},
			Timestamp: time.Now(),
		})
	})

	return h
}

// HandleStateConnection upgrades the request and streams state transitions.
func (h *WebSocketHandler) HandleStateConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.mutex.Lock()
	h.clients[client.id] = client
	h.mutex.Unlock()

	h.logger.Info("State WebSocket client connected",
		zap.String("client_id", client.id),
		zap.String("remote_addr", c.Request.RemoteAddr),
	)

	// Snapshot first so a client joining mid-session sees the current state.
	h.sendTo(client, &StateEvent{
		Type: "state",
		Data: map[string]interface{}{
			"state":  h.manager.State(),
			"device": h.manager.DeviceInfo(),
		},
		Timestamp: time.Now(),
	})

	go h.readPump(client)
	go h.writePump(client)
}

// readPump drains the connection; clients only listen, so inbound traffic
// exists purely to detect closure and answer pings.
func (h *WebSocketHandler) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.id),
				)
			}
			return
		}
	}
}

// writePump forwards queued events and keeps the connection alive with pings.
func (h *WebSocketHandler) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) unregister(client *wsClient) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
	h.mutex.Unlock()

	h.logger.Info("State WebSocket client disconnected", zap.String("client_id", client.id))
}

func (h *WebSocketHandler) sendTo(client *wsClient, event *StateEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket event", zap.Error(err))
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.Warn("Client send channel full, dropping event",
			zap.String("client_id", client.id),
		)
	}
}

func (h *WebSocketHandler) broadcast(event *StateEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket event", zap.Error(err))
		return
	}

	h.mutex.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.id),
			)
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
