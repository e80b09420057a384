/*
Package chat contains the core of the messaging engine.

This file defines the Hub, which owns the registries and runs each accepted
connection's lifecycle from registration to the single cleanup sequence.
*/
package chat

import (
	"time"

	"github.com/rs/zerolog"

	"talkroom/internal/pkg/logx"
)

// Hub wires the connection registry, room registry, dispatcher, and
// broadcaster together and owns every connection between handshake success
// and close.
type Hub struct {
	connections *ConnectionRegistry
	rooms       *RoomRegistry
	dispatcher  *Dispatcher
	broadcaster *Broadcaster
	logger      zerolog.Logger
}

// NewHub builds the engine on top of the given persistence gateway.
func NewHub(gateway Gateway, storeTimeout time.Duration) *Hub {
	h := &Hub{
		connections: NewConnectionRegistry(),
		rooms:       NewRoomRegistry(gateway, storeTimeout),
		logger:      logx.Logger().With().Str("component", "hub").Logger(),
	}

	h.broadcaster = NewBroadcaster(h.Release)
	h.dispatcher = NewDispatcher(h.rooms, h.broadcaster)

	return h
}

// Rooms exposes the room registry to handlers and tests.
func (h *Hub) Rooms() *RoomRegistry {
	return h.rooms
}

// Connections exposes the connection registry to handlers and tests.
func (h *Hub) Connections() *ConnectionRegistry {
	return h.connections
}

// Dispatcher exposes the frame dispatcher.
func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// Register installs an authenticated connection as the identity's live
// session. Single-session policy: a prior connection for the same identity
// is kicked with a session-replaced close frame and fully cleaned up, so no
// registry retains a reference to it.
func (h *Hub) Register(c *Conn) {
	if prior := h.connections.Register(c); prior != nil {
		h.logger.Warn().
			Str("user_id", c.identity.UserID).
			Msg("Identity already online, replacing prior session")

		prior.Kick("Session replaced by a newer connection")
		h.Release(prior)
	}

	h.logger.Info().
		Str("user_id", c.identity.UserID).
		Int("online", h.connections.Len()).
		Msg("Connection registered")
}

// Serve runs the connection's pumps. It blocks until the read side exits
// and the cleanup sequence has been requested.
func (h *Hub) Serve(c *Conn) {
	go c.writePump(h)
	c.readPump(h)
}

// Release runs the connection's cleanup sequence: mark closed, drop it from
// the connection registry and from every room set, and close the socket.
// Close, read error, kick, and failed-broadcast paths all funnel here; the
// sequence runs at most once per connection and repeat calls are harmless.
func (h *Hub) Release(c *Conn) {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		close(c.done)

		h.connections.Unregister(c)
		h.rooms.DropConn(c)
		c.closeSocket()

		h.logger.Info().
			Str("user_id", c.identity.UserID).
			Int("online", h.connections.Len()).
			Msg("Connection released")
	})
}

// Shutdown releases every live connection. Used during graceful stop.
func (h *Hub) Shutdown() {
	for _, c := range h.connections.Snapshot() {
		h.Release(c)
	}

	h.logger.Info().Msg("Hub shutdown complete")
}
