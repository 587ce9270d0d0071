package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/pkg/observability"
)

// Client is one socket connection.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   string

	rooms  map[string]bool
	send   chan []byte
	closed bool
}

// Outbound yields encoded frames for the connection writer. It is closed when
// the client is removed from the hub.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Hub tracks room membership of local connections.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{rooms: make(map[string]map[*Client]bool), buffer: buffer}
}

func (h *Hub) NewClient(userID uuid.UUID, role string) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Role:   role,
		rooms:  make(map[string]bool),
		send:   make(chan []byte, h.buffer),
	}
}

func (h *Hub) Join(c *Client, room string) {
	room = strings.TrimSpace(room)
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}

	c.rooms[room] = true
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom reports whether c has joined room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.rooms[room]
}

// Remove drops c from every room and closes its outbound channel.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.closed = true
	close(c.send)
}

// RoomSize returns the number of local connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Deliver hands env to the local members of its room. A full client buffer
// drops the frame for that client.
func (h *Hub) Deliver(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[env.Room] {
		if env.ExceptUser != nil && c.UserID == *env.ExceptUser {
			continue
		}
		select {
		case c.send <- env.Frame:
		default:
			slog.Warn("realtime: outbound buffer full, dropping frame",
				"client_id", c.ID, "user_id", c.UserID, "room", env.Room)
			observability.Domain().FrameDropped(context.Background(), roomKind(env.Room))
		}
	}
}

// Send queues a frame for one connection. It reports false when the client is
// gone or its buffer is full.
func (h *Hub) Send(c *Client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// roomKind strips the id from a room name for metric labels.
func roomKind(room string) string {
	if i := strings.IndexByte(room, ':'); i > 0 {
		return room[:i]
	}
	return room
}
