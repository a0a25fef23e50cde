package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/solecare/solecare-api/metrics"
)

// Message is one event queued for a client.
type Message struct {
	Event string
	Data  ChangeEvent
}

// Client is a connected real-time subscriber.
type Client struct {
	ID       string
	BranchID string
	events   chan Message
}

// Events is closed when the client is unsubscribed.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Hub fans relayed events out to every connected client. Sends never block:
// a client whose buffer is full is disconnected so its EventSource reconnects
// and resyncs instead of silently missing events.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	branchScoped bool
	bufferSize   int
}

// NewHub creates a hub. With branchScoped set, a client that subscribed with
// a branch only receives events for that branch; everyone else receives
// everything.
func NewHub(branchScoped bool) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		branchScoped: branchScoped,
		bufferSize:   64,
	}
}

func (h *Hub) Subscribe(branchID string) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		BranchID: branchID,
		events:   make(chan Message, h.bufferSize),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetRealtimeClients(count)
	log.Printf("[realtime] client connected: %s (%d connected)", client.ID, count)
	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	removed := h.remove(client)
	count := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.SetRealtimeClients(count)
		log.Printf("[realtime] client disconnected: %s (%d connected)", client.ID, count)
	}
}

// CloseAll disconnects every client. It is registered as a server shutdown
// hook so open event streams return instead of holding Shutdown open.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	n := len(h.clients)
	for _, client := range h.clients {
		h.remove(client)
	}
	h.mu.Unlock()

	metrics.SetRealtimeClients(0)
	log.Printf("[realtime] closed %d client(s)", n)
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) bool {
	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	delete(h.clients, client.ID)
	close(client.events)
	return true
}

// Broadcast implements Broadcaster.
func (h *Hub) Broadcast(event string, change ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := Message{Event: event, Data: change}
	dropped := 0
	for _, client := range h.clients {
		if h.branchScoped && client.BranchID != "" && change.BranchID != "" && client.BranchID != change.BranchID {
			continue
		}
		select {
		case client.events <- msg:
		default:
			log.Printf("[realtime] WARN disconnecting slow client %s, buffer full at %s", client.ID, event)
			h.remove(client)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.SetRealtimeClients(len(h.clients))
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
