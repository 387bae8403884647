package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/bengkel-pos/api/internal/logger"
	"github.com/google/uuid"
)

// Event types pushed to clients watching a repair order.
const (
	EventSessionChanged  = "session.changed"
	EventItemsSaved      = "items.saved"
	EventPaymentRecorded = "payment.recorded"
)

// ErrHubStopped is returned by Publish once Run has returned.
var ErrHubStopped = errors.New("ws hub stopped")

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent routes an event to the clients of one repair order
type roomEvent struct {
	RepairOrderID uuid.UUID
	Event         Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients are grouped in rooms keyed by repair order id.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent
	// done is closed when Run returns.
	done chan struct{}

	mu  sync.RWMutex
	log *logger.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing every
// client's send channel. Call it as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.repairOrderID] == nil {
				h.rooms[client.repairOrderID] = make(map[*Client]bool)
			}
			h.rooms[client.repairOrderID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.repairOrderID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.repairOrderID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.log.Errorw("marshal ws event", "type", event.Event.Type, "error", err)
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.RepairOrderID] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop it
					close(client.send)
					delete(h.rooms[event.RepairOrderID], client)
					if len(h.rooms[event.RepairOrderID]) == 0 {
						delete(h.rooms, event.RepairOrderID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all clients watching a repair order. It reports
// false when the hub has stopped and the event was dropped.
func (h *Hub) Broadcast(repairOrderID uuid.UUID, event Event) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- &roomEvent{RepairOrderID: repairOrderID, Event: event}:
		return true
	case <-h.done:
		return false
	}
}

// join registers c, or reports false when the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish marshals payload and broadcasts it as an event of the given type.
func (h *Hub) Publish(repairOrderID uuid.UUID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if !h.Broadcast(repairOrderID, Event{Type: eventType, Payload: raw}) {
		return ErrHubStopped
	}
	return nil
}

// ClientCount returns the number of clients watching a repair order.
func (h *Hub) ClientCount(repairOrderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[repairOrderID])
}
