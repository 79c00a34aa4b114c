package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains session-keyed rooms of connected clients and fans events out
// to them. Delivery is fire-and-forget: a slow client's full buffer drops the
// event rather than blocking the room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Join adds a client to a session's room.
func (h *Hub) Join(sessionID int64, c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Leave removes a client from a session's room, dropping the room when empty.
// Safe to call for a client that already left.
func (h *Hub) Leave(sessionID int64, c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every connection in the session's room.
func (h *Hub) Broadcast(sessionID int64, event any) {
	h.broadcast(sessionID, nil, event)
}

// BroadcastExcept sends an event to every room occupant except skip. Used for
// peer-to-peer relays where the sender already knows its own state.
func (h *Hub) BroadcastExcept(sessionID int64, skip *Client, event any) {
	h.broadcast(sessionID, skip, event)
}

func (h *Hub) broadcast(sessionID int64, skip *Client, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[sessionID] {
		if c == skip {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop event to avoid blocking the room
		}
	}
}

// RoomSize returns the number of connections in the session's room.
func (h *Hub) RoomSize(sessionID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
