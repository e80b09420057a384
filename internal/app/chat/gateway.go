/*
Package chat contains the core of the messaging engine.

This file defines the persistence gateway consumed by the room registry.
Rooms, memberships, and message history are durable; the in-memory room sets
are only a presence cache over what the gateway reports.
*/
package chat

import (
	"context"
	"errors"
	"time"
)

// Role is a member's persisted standing in a room.
type Role string

const (
	// RoleAdmin is granted to the room creator.
	RoleAdmin Role = "ADMIN"

	// RoleMember is granted on first join.
	RoleMember Role = "MEMBER"
)

// Member is one persisted membership record of a room.
type Member struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// RoomSummary is the durable state of a room as reported by the gateway.
type RoomSummary struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []Member  `json:"members"`
}

// ErrRoomNotFound is returned by FindRoom when no persisted room carries the
// requested id. Room existence is always decided against the store, never
// against the in-memory sets.
var ErrRoomNotFound = errors.New("room not found")

// Gateway is the durable store behind the room registry. Implementations
// must treat AddMember as idempotent: re-adding an existing member is not an
// error. Every call is made under a caller-supplied deadline.
type Gateway interface {
	// CreateRoom persists a new room with owner as its sole ADMIN member
	// and returns the summary including the generated room id.
	CreateRoom(ctx context.Context, owner Identity) (RoomSummary, error)

	// FindRoom returns the summary of a persisted room, or ErrRoomNotFound.
	FindRoom(ctx context.Context, roomID string) (RoomSummary, error)

	// AddMember records a membership; a duplicate is a no-op.
	AddMember(ctx context.Context, roomID, userID string, role Role) error

	// IsMember reports persisted membership. A room id with no persisted
	// room yields ErrRoomNotFound, never a bare false.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)

	// RecordMessage appends a message to the room history and returns the
	// generated message id.
	RecordMessage(ctx context.Context, roomID, senderID, content string) (string, error)
}
