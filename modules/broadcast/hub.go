package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/room-relay/modules/relay"
)

// Frame is the JSON shape written to WebSocket clients.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client is one connected WebSocket client as seen by the hub. Frames queued
// for it are read from Send by the connection's write pump.
//
// A registered client receives nothing until the relay opens it.
type Client struct {
	ID   string
	Send chan []byte
	open bool
}

// Hub tracks connected clients and their room groups and fans envelopes
// out to them.
type Hub struct {
	clients map[string]*Client         // clientID -> Client
	groups  map[string]map[string]bool // room -> set of clientIDs
	buffer  int
	dropped int
	logger  types.Logger
	mu      sync.RWMutex
}

var _ relay.Transport = (*Hub)(nil)

// NewHub creates a hub whose clients queue up to buffer frames each.
func NewHub(buffer int, logger types.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]bool),
		buffer:  buffer,
		logger:  logger,
	}
}

// Register adds a client with the given id and returns it.
func (h *Hub) Register(id string) *Client {
	client := &Client{ID: id, Send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[id]; ok {
		close(old.Send)
	}
	h.clients[id] = client
	h.logger.Debug("Client registered", "clientID", id)
	return client
}

// Unregister removes the client, drops it from every group and closes its
// send queue.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	for room, members := range h.groups {
		if members[id] {
			h.removeMember(room, id)
		}
	}
	close(client.Send)
	h.logger.Debug("Client unregistered", "clientID", id)
}

// Open starts delivery to a registered client.
func (h *Hub) Open(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[id]; ok {
		client.open = true
	}
}

// Join adds a registered client to the room group.
func (h *Hub) Join(id, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[id]; !ok {
		return
	}
	if h.groups[room] == nil {
		h.groups[room] = make(map[string]bool)
	}
	h.groups[room][id] = true
}

// Leave removes the client from the room group.
func (h *Hub) Leave(id, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeMember(room, id)
}

func (h *Hub) removeMember(room, id string) {
	members, ok := h.groups[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.groups, room)
	}
}

// Deliver encodes the envelope once and queues it for every receiver the
// target resolves to. It never blocks: a client whose queue is full loses
// the frame.
func (h *Hub) Deliver(env relay.Envelope) {
	data, err := json.Marshal(Frame{Type: env.Event, Payload: env.Payload})
	if err != nil {
		h.logger.Error("Failed to marshal frame", "event", env.Event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch env.Target.Mode {
	case relay.ModeOne:
		if client, ok := h.clients[env.Target.ConnID]; ok {
			h.enqueue(client, env.Event, data)
		}
	case relay.ModeRoom:
		for id := range h.groups[env.Target.Room] {
			if id == env.Target.Except {
				continue
			}
			if client, ok := h.clients[id]; ok {
				h.enqueue(client, env.Event, data)
			}
		}
	case relay.ModeAll:
		for _, client := range h.clients {
			h.enqueue(client, env.Event, data)
		}
	default:
		h.logger.Warn("Unknown target mode", "mode", env.Target.Mode.String(), "event", env.Event)
	}
}

func (h *Hub) enqueue(client *Client, event string, data []byte) {
	if !client.open {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.dropped++
		h.logger.Warn("Client send queue full, frame dropped", "clientID", client.ID, "event", event)
	}
}

// CloseAll unregisters every client.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.clients)
	for _, client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[string]*Client)
	h.groups = make(map[string]map[string]bool)
	return n
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of non-empty room groups.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// RoomClientCount returns the number of clients in a room group.
func (h *Hub) RoomClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[room])
}

// Dropped returns how many frames were discarded on full queues.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
