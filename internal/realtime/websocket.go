package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 32
)

// Message types on the socket.
const (
	MessageJoin         = "join"
	MessageNotification = "notification"
)

// InboundMessage is what clients send. A join announces the user the
// connection belongs to.
type InboundMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// OutboundMessage is what the server pushes.
type OutboundMessage struct {
	Type string               `json:"type"`
	Data *models.Notification `json:"data"`
}

// Handler upgrades HTTP requests to WebSocket connections and keeps them
// registered for as long as they stay open.
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	log      log.FieldLogger
}

// NewHandler returns a WebSocket handler. An empty allowedOrigins list or
// one containing "*" accepts any origin.
func NewHandler(registry *Registry, allowedOrigins []string, logger log.FieldLogger) *Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Serve is the echo handler for GET /ws.
func (h *Handler) Serve(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		h.log.WithError(err).Debug("websocket upgrade failed")
		return nil
	}

	conn := newWSConn(ws)
	logger := h.log.WithField("conn", conn.id)
	go conn.writePump(logger)
	defer func() {
		h.registry.Unregister(conn)
		conn.Close()
		logger.Debug("connection closed")
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Info("connection dropped")
			}
			return nil
		}
		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WithError(err).Warn("ignoring malformed client message")
			continue
		}
		switch msg.Type {
		case MessageJoin:
			if msg.UserID == "" {
				logger.Warn("join without userId")
				continue
			}
			h.registry.Register(msg.UserID, conn)
			logger.WithField("user", msg.UserID).Info("user joined")
		default:
			logger.WithField("type", msg.Type).Debug("ignoring unknown client message")
		}
	}
}

// wsConn serializes all writes through writePump, as gorilla/websocket
// allows a single concurrent writer.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(n *models.Notification) error {
	data, err := json.Marshal(OutboundMessage{Type: MessageNotification, Data: n})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *wsConn) writePump(logger log.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Nothing drains send once the pump is gone.
		c.Close()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.WithError(err).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
