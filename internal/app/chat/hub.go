/*
Package chat contains the core logic for the real-time conversation layer.

This file defines the Hub, which owns the two pieces of process-local runtime
state: the presence registry (which users currently hold an open connection)
and room membership (which connections receive a conversation's events). Both
are in-memory maps scoped to the process lifetime; deploying more than one
instance requires an external broadcast bus, which the Hub does not provide.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"agrichat/internal/pkg/logx"
)

// Hub tracks online users and per-conversation rooms, and fans events out to them.
// It is the only component that mutates presence or membership state.
type Hub struct {
	// mu protects clients and rooms.
	mu sync.RWMutex

	// clients maps a user id to its single active connection.
	// A newer connection for the same user replaces (and kicks) the older one.
	clients map[string]*Client

	// rooms maps a conversation id to the set of member connections.
	rooms map[string]map[*Client]struct{}

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Register records the connection as the user's active one and broadcasts the
// user's online transition to every connected client. An existing connection
// for the same user is kicked: one handle per user, newest wins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()

	old, replaced := h.clients[c.user.ID]
	h.clients[c.user.ID] = c

	h.mu.Unlock()

	if replaced {
		h.logger.Warn().
			Str("user_id", c.user.ID).
			Msg("User already connected. Closing old connection for replacement.")
		old.Kick()
	}

	h.logger.Info().Str("user_id", c.user.ID).Msg("User connected.")

	h.broadcastPresence(EventUserOnline, c.user.ID)
}

// Unregister removes the connection from every room and, when it is still the
// user's active connection, from the presence registry, broadcasting exactly
// one offline transition. A stale (already replaced) connection leaves presence
// untouched so the replacement stays online.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()

	for conversationID, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}

	wasCurrent := false
	if current, ok := h.clients[c.user.ID]; ok && current == c {
		delete(h.clients, c.user.ID)
		wasCurrent = true
	}

	c.closeSend()

	h.mu.Unlock()

	if wasCurrent {
		h.logger.Info().Str("user_id", c.user.ID).Msg("User disconnected.")
		h.broadcastPresence(EventUserOffline, c.user.ID)
	} else {
		h.logger.Info().
			Str("user_id", c.user.ID).
			Msg("Stale connection cleaned up; presence unchanged.")
	}
}

// Join adds the connection to a conversation's room.
func (h *Hub) Join(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[conversationID] = members
	}
	members[c] = struct{}{}
}

// Leave removes the connection from a conversation's room.
func (h *Hub) Leave(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[conversationID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// InRoom reports whether the connection is currently a member of the room.
func (h *Hub) InRoom(conversationID string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[conversationID][c]
	return ok
}

// IsOnline reports whether the user currently has an open connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}

// OnlineUsers returns the ids of all currently connected users.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for id := range h.clients {
		users = append(users, id)
	}
	return users
}

// BroadcastRoom queues the event to every member of the room, the sender included.
func (h *Hub) BroadcastRoom(conversationID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for member := range h.rooms[conversationID] {
		member.queue(message)
	}
}

// BroadcastRoomExcept queues the event to every room member except the given connection.
func (h *Hub) BroadcastRoomExcept(conversationID string, except *Client, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for member := range h.rooms[conversationID] {
		if member != except {
			member.queue(message)
		}
	}
}

// BroadcastAll queues the event to every connected client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		c.queue(message)
	}
}

// broadcastPresence emits a global user_online/user_offline event.
func (h *Hub) broadcastPresence(event string, userID string) {
	message, err := NewEvent(event, PresencePayload{UserID: userID})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to build presence event.")
		return
	}
	h.BroadcastAll(message)
}

// Shutdown closes every client's send queue, terminating their write pumps.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		c.closeSend()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[*Client]struct{})

	h.logger.Info().Msg("Hub shutdown complete.")
}
