package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/notify"
)

// WebSocket message types for the alert channel
const (
	// Client -> Server messages
	MsgTypePing       = "ping"
	MsgTypePermission = "permission"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAlert     = "alert"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// PermissionPayload reports the browser's notification permission.
type PermissionPayload struct {
	Permission models.NotificationPermission `json:"permission"`
}

// WSErrorResponse is sent when a client frame cannot be handled.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes spawn alerts to the browser tab owning a session.
type WebSocketHandler struct {
	sessions     SessionManager
	hub          Subscriber
	upgrader     websocket.Upgrader
	readLimit    int64
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewWebSocketHandler creates a new alert websocket handler. maxMessageKB bounds
// client frames.
func NewWebSocketHandler(sessions SessionManager, hub Subscriber, maxMessageKB int) *WebSocketHandler {
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &WebSocketHandler{
		sessions: sessions,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
		readLimit:    int64(maxMessageKB) * 1024,
		writeTimeout: 10 * time.Second,
		logger:       log.WithComponent("websocket"),
	}
}

// HandleWebSocket upgrades the connection and relays the session's notifications
// until either side goes away.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if !wsh.sessions.Touch(id) {
		return NewNotFoundError("session", id)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.readLimit)

	conn := &wsConn{ws: ws, timeout: wsh.writeTimeout, logger: wsh.logger}
	sub := wsh.hub.Subscribe(id, notify.DefaultBuffer)
	logger := wsh.logger.With().Str("session", log.ShortID(id)).Str("subscription", log.ShortID(sub.ID)).Logger()
	logger.Info().Msg("client connected")

	conn.send(WSMessage{Type: MsgTypeConnected, ID: id})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := range sub.C() {
			conn.send(WSMessage{Type: MsgTypeAlert, ID: n.ID, Payload: mustJSON(n)})
		}
		// Channel closed: the session is gone or the reader stopped.
		ws.Close()
	}()

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("connection error")
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sessions.Touch(id)
			conn.send(WSMessage{Type: MsgTypePong})
		case MsgTypePermission:
			wsh.handlePermission(conn, id, msg)
		default:
			conn.sendError("Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	wsh.hub.Unsubscribe(sub)
	<-done
	logger.Info().Msg("client disconnected")
	return nil
}

func (wsh *WebSocketHandler) handlePermission(conn *wsConn, id string, msg WSMessage) {
	var payload PermissionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError("Invalid permission payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if _, err := wsh.sessions.SetPermission(id, payload.Permission); err != nil {
		apiErr := FromError(err)
		conn.sendError(apiErr.Message, apiErr.Code)
	}
}

// wsConn serializes writes; gorilla connections allow a single concurrent writer.
type wsConn struct {
	mu      sync.Mutex
	ws      *websocket.Conn
	timeout time.Duration
	logger  zerolog.Logger
}

func (c *wsConn) send(msg WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("failed to send message")
	}
}

func (c *wsConn) sendError(message, code string) {
	c.send(WSMessage{
		Type:    MsgTypeError,
		Payload: mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
