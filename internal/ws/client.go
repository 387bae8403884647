package ws

import (
	"net/http"
	"time"

	"github.com/bengkel-pos/api/internal/auth"
	"github.com/bengkel-pos/api/internal/enum"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	// must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // access is checked via the JWT
	},
}

// Client is one WebSocket connection watching a repair order.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	repairOrderID uuid.UUID
	send          chan []byte
	log           *logger.Logger
}

// ReadPump only detects disconnects; clients never send commands over the socket.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnw("websocket read", "repair_order_id", c.repairOrderID, "error", err)
			}
			break
		}
	}
}

// WritePump forwards hub messages to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued events into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades watch requests for a repair order.
// Route: WS /ws/garages/{gid}/repair-orders/{id}?token=JWT
type Handler struct {
	hub       *Hub
	jwtSecret string
	log       *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(hub *Hub, jwtSecret string, log *logger.Logger) *Handler {
	return &Handler{hub: hub, jwtSecret: jwtSecret, log: log}
}

// ServeHTTP authenticates the query token and joins the repair order's room.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(h.jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	garageID, err := uuid.Parse(chi.URLParam(r, "gid"))
	if err != nil {
		http.Error(w, "invalid garage id", http.StatusBadRequest)
		return
	}
	repairOrderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid repair order id", http.StatusBadRequest)
		return
	}

	if claims.Role != enum.UserRoleOwner && claims.GarageID != garageID {
		http.Error(w, "garage access denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade", "error", err)
		return
	}

	client := &Client{
		hub:           h.hub,
		conn:          conn,
		repairOrderID: repairOrderID,
		send:          make(chan []byte, 256),
		log:           h.log,
	}
	if !client.hub.join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
