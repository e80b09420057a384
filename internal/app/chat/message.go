/*
Package chat contains the core of the messaging engine.

This file defines the wire protocol: the frame envelope shared by both
directions and the typed payloads carried inside it.
*/
package chat

import (
	"encoding/json"
	"time"
)

// MessageType tags a frame. The inbound set is closed: anything else is
// logged and dropped without affecting the connection.
type MessageType string

// Inbound frame types.
const (
	TypeCreate  MessageType = "CREATE"
	TypeJoin    MessageType = "JOIN"
	TypeLeave   MessageType = "LEAVE"
	TypeMessage MessageType = "MESSAGE"
	TypeTyping  MessageType = "TYPING"
)

// Outbound frame types. Replies reuse the inbound envelope shape.
const (
	TypeWelcome     MessageType = "WELCOME"
	TypeRoomCreated MessageType = "ROOM_CREATED"
	TypeRoomJoined  MessageType = "ROOM_JOINED"
	TypeAck         MessageType = "ACK"
	TypeUserLeft    MessageType = "USER_LEFT"
	TypeError       MessageType = "ERROR"
)

// Frame is the envelope carried on every WebSocket text frame, in both
// directions: a type, a type-specific payload, and a timestamp.
type Frame struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// RoomPayload is the inbound payload of JOIN, LEAVE, and TYPING frames.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// ContentPayload is the inbound payload of MESSAGE frames.
type ContentPayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// WelcomePayload is sent once after a successful handshake.
type WelcomePayload struct {
	User Identity `json:"user"`
}

// RoomCreatedPayload answers a CREATE, to the creator only.
type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

// RoomJoinedPayload answers a JOIN with the persisted room summary.
type RoomJoinedPayload struct {
	Room RoomSummary `json:"room"`
}

// ChatPayload is the outbound payload of a fanned-out MESSAGE, tagged with
// the sender's identity.
type ChatPayload struct {
	MessageID string   `json:"messageId"`
	RoomID    string   `json:"roomId"`
	Sender    Identity `json:"sender"`
	Content   string   `json:"content"`
}

// AckPayload confirms a sender's own MESSAGE instead of echoing it back.
type AckPayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

// UserEventPayload is the outbound payload of USER_LEFT and TYPING notices.
type UserEventPayload struct {
	RoomID string   `json:"roomId"`
	User   Identity `json:"user"`
}

// ErrorPayload reports a recoverable error to a single connection.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewFrame builds an outbound frame around the marshaled payload, stamped
// with the current time.
func NewFrame(t MessageType, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Type:      t,
		Payload:   raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// Encode marshals the frame for the wire.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
