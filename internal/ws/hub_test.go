package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bengkel-pos/api/internal/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient creates a client without a real WebSocket connection.
func mockClient(hub *Hub, repairOrderID uuid.UUID) *Client {
	return &Client{
		hub:           hub,
		repairOrderID: repairOrderID,
		send:          make(chan []byte, 256),
		log:           logger.NewNop(),
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(logger.NewNop())
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.send:
		t.Fatal("client should not have received a message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegistration(t *testing.T) {
	hub := runHub(t)

	roID := uuid.New()
	client := mockClient(hub, roID)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, hub.ClientCount(roID))
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := runHub(t)

	roID := uuid.New()
	client1 := mockClient(hub, roID)
	client2 := mockClient(hub, roID)
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 2, hub.ClientCount(roID))

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount(roID))

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Nil(t, hub.rooms[roID], "room should be deleted when last client leaves")
}

func TestBroadcastIsolatedPerRepairOrder(t *testing.T) {
	hub := runHub(t)

	ro1, ro2 := uuid.New(), uuid.New()
	watchers := []*Client{mockClient(hub, ro1), mockClient(hub, ro1)}
	other := mockClient(hub, ro2)
	for _, c := range append(watchers, other) {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`{"row_count":2}`)
	hub.Broadcast(ro1, Event{Type: EventSessionChanged, Payload: payload})

	for _, c := range watchers {
		ev := receive(t, c)
		assert.Equal(t, EventSessionChanged, ev.Type)
		assert.JSONEq(t, string(payload), string(ev.Payload))
	}
	assertSilent(t, other)
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := runHub(t)

	client := mockClient(hub, uuid.New())
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(uuid.New(), Event{Type: EventItemsSaved, Payload: json.RawMessage(`{}`)})
	assertSilent(t, client)
}

func TestPublish(t *testing.T) {
	hub := runHub(t)

	roID := uuid.New()
	client := mockClient(hub, roID)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	err := hub.Publish(roID, EventPaymentRecorded, map[string]string{"amount": "130000.00"})
	require.NoError(t, err)

	ev := receive(t, client)
	assert.Equal(t, EventPaymentRecorded, ev.Type)
	assert.JSONEq(t, `{"amount":"130000.00"}`, string(ev.Payload))
}

func TestPublish_UnmarshalablePayload(t *testing.T) {
	hub := runHub(t)
	err := hub.Publish(uuid.New(), EventItemsSaved, make(chan int))
	assert.Error(t, err)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.NewNop())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	roID := uuid.New()
	client := mockClient(hub, roID)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed")
	assert.Equal(t, 0, hub.ClientCount(roID))
}

func TestPublishAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.NewNop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	returned := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 300; i++ { // more than the broadcast buffer holds
			err = hub.Publish(uuid.New(), EventItemsSaved, map[string]int{"n": i})
		}
		returned <- err
	}()

	select {
	case err := <-returned:
		assert.ErrorIs(t, err, ErrHubStopped)
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after the hub stopped")
	}

	assert.False(t, hub.join(mockClient(hub, uuid.New())))
	hub.leave(mockClient(hub, uuid.New()))
}
