/*
Package chat contains the core of the messaging engine.

This file defines the Dispatcher, which decodes inbound frames and routes
each to the matching handler. There is no per-connection protocol state
beyond "authenticated": every frame is typed and handled independently.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"talkroom/internal/metrics"
	"talkroom/internal/pkg/errs"
	"talkroom/internal/pkg/logx"
	"talkroom/internal/pkg/randx"
)

// Dispatcher routes typed inbound frames to their handlers, enforcing
// membership before any broadcast. Malformed input is never fatal to the
// connection: it is logged and dropped.
type Dispatcher struct {
	rooms       *RoomRegistry
	broadcaster *Broadcaster
	logger      zerolog.Logger
}

// NewDispatcher wires the dispatcher to the room registry and broadcaster.
func NewDispatcher(rooms *RoomRegistry, broadcaster *Broadcaster) *Dispatcher {
	return &Dispatcher{
		rooms:       rooms,
		broadcaster: broadcaster,
		logger:      logx.Logger().With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch decodes one inbound frame and routes it.
func (d *Dispatcher) Dispatch(c *Conn, frameBytes []byte) {
	var frame Frame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		d.logger.Warn().
			Err(err).
			Str("user_id", c.Identity().UserID).
			Msg("Dropping frame that is not valid JSON")
		metrics.FramesDropped.Inc()
		return
	}

	ctx := context.Background()

	switch frame.Type {
	case TypeCreate:
		d.handleCreate(ctx, c)

	case TypeJoin:
		d.handleJoin(ctx, c, frame.Payload)

	case TypeLeave:
		d.handleLeave(c, frame.Payload)

	case TypeMessage:
		d.handleMessage(ctx, c, frame.Payload)

	case TypeTyping:
		d.handleTyping(c, frame.Payload)

	default:
		d.logger.Warn().
			Str("frame_type", string(frame.Type)).
			Str("user_id", c.Identity().UserID).
			Msg("Dropping frame with unknown type")
		metrics.FramesDropped.Inc()
	}
}

// handleCreate persists a new room and replies the fresh room id to the
// creator only.
func (d *Dispatcher) handleCreate(ctx context.Context, c *Conn) {
	summary, err := d.rooms.CreateRoom(ctx, c)
	if err != nil {
		d.logger.Error().Err(err).Str("user_id", c.Identity().UserID).Msg("Room creation failed")
		c.SendError(errs.NewError(errs.ErrStoreUnavailable))
		return
	}

	if err := c.SendFrame(TypeRoomCreated, RoomCreatedPayload{RoomID: summary.ID}); err != nil {
		d.logger.Warn().Err(err).Str("room_id", summary.ID).Msg("Failed to queue ROOM_CREATED reply")
	}
}

// handleJoin subscribes the sender to a room and replies the persisted room
// summary, or RoomNotFound.
func (d *Dispatcher) handleJoin(ctx context.Context, c *Conn, payload json.RawMessage) {
	roomID, ok := d.roomIDFrom(c, payload)
	if !ok {
		return
	}

	summary, err := d.rooms.JoinRoom(ctx, c, roomID)
	if err != nil {
		c.SendError(d.storeError(err, roomID))
		return
	}

	if err := c.SendFrame(TypeRoomJoined, RoomJoinedPayload{Room: summary}); err != nil {
		d.logger.Warn().Err(err).Str("room_id", roomID).Msg("Failed to queue ROOM_JOINED reply")
	}
}

// handleLeave drops the sender's presence from the room and notifies the
// remaining subscribers. Membership is untouched.
func (d *Dispatcher) handleLeave(c *Conn, payload json.RawMessage) {
	roomID, ok := d.roomIDFrom(c, payload)
	if !ok {
		return
	}

	d.rooms.LeaveRoom(c, roomID)

	d.broadcaster.DeliverFrame(d.rooms.Subscribers(roomID), TypeUserLeft, UserEventPayload{
		RoomID: roomID,
		User:   c.Identity(),
	}, nil)
}

// handleMessage enforces persisted membership, persists the message, and
// fans it out to every other subscriber, in one per-room critical section.
func (d *Dispatcher) handleMessage(ctx context.Context, c *Conn, payload json.RawMessage) {
	var content ContentPayload
	if err := json.Unmarshal(payload, &content); err != nil || content.RoomID == "" {
		d.logger.Warn().Str("user_id", c.Identity().UserID).Msg("Dropping MESSAGE with invalid payload")
		metrics.FramesDropped.Inc()
		return
	}

	if len(content.Content) > MaxContentBytes {
		c.SendError(errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	member, err := d.rooms.IsMember(ctx, c.Identity(), content.RoomID)
	if err != nil {
		c.SendError(d.storeError(err, content.RoomID))
		return
	}
	if !member {
		c.SendError(errs.NewError(errs.ErrForbidden))
		return
	}

	sender := c.Identity()

	messageID, err := d.rooms.PublishMessage(ctx, content.RoomID, sender, content.Content,
		func(messageID string, subscribers []*Conn) {
			d.broadcaster.DeliverFrame(subscribers, TypeMessage, ChatPayload{
				MessageID: messageID,
				RoomID:    content.RoomID,
				Sender:    sender,
				Content:   content.Content,
			}, c)
		})
	if err != nil {
		c.SendError(d.storeError(err, content.RoomID))
		return
	}

	if err := c.SendFrame(TypeAck, AckPayload{MessageID: messageID, RoomID: content.RoomID}); err != nil {
		d.logger.Warn().Err(err).Str("room_id", content.RoomID).Msg("Failed to queue ACK reply")
	}
}

// handleTyping is a transient, best-effort notice: nothing is persisted, an
// unknown room is dropped silently, and the sender never sees its own echo.
func (d *Dispatcher) handleTyping(c *Conn, payload json.RawMessage) {
	var room RoomPayload
	if err := json.Unmarshal(payload, &room); err != nil || room.RoomID == "" {
		return
	}

	if !d.rooms.HasSubscribers(room.RoomID) {
		return
	}

	d.broadcaster.DeliverFrame(d.rooms.Subscribers(room.RoomID), TypeTyping, UserEventPayload{
		RoomID: room.RoomID,
		User:   c.Identity(),
	}, c)
}

// roomIDFrom extracts and validates the roomId of a JOIN or LEAVE payload.
func (d *Dispatcher) roomIDFrom(c *Conn, payload json.RawMessage) (string, bool) {
	var room RoomPayload
	if err := json.Unmarshal(payload, &room); err != nil || room.RoomID == "" {
		d.logger.Warn().Str("user_id", c.Identity().UserID).Msg("Dropping frame with invalid room payload")
		metrics.FramesDropped.Inc()
		return "", false
	}

	if !randx.IsValidID(room.RoomID) {
		c.SendError(errs.NewError(errs.ErrRoomNotFound))
		return "", false
	}

	return room.RoomID, true
}

// storeError maps a gateway failure onto the reply sent to the requester.
func (d *Dispatcher) storeError(err error, roomID string) *errs.CustomError {
	if errors.Is(err, ErrRoomNotFound) {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	d.logger.Error().Err(err).Str("room_id", roomID).Msg("Store operation failed")
	return errs.NewError(errs.ErrStoreUnavailable)
}
