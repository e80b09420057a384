package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkroom/internal/pkg/errs"
)

// newTestHub wires a hub over the fake gateway and registers the given
// connections.
func newTestHub(t *testing.T, gateway Gateway, conns ...*Conn) *Hub {
	t.Helper()

	hub := NewHub(gateway, testStoreTimeout)
	for _, c := range conns {
		hub.Register(c)
	}
	return hub
}

// createRoom drives a CREATE frame through the dispatcher and returns the
// new room id from the reply.
func createRoom(t *testing.T, hub *Hub, c *Conn) string {
	t.Helper()

	hub.Dispatcher().Dispatch(c, inbound(t, TypeCreate, struct{}{}))

	reply := nextFrame(t, c)
	require.Equal(t, TypeRoomCreated, reply.Type)

	var created RoomCreatedPayload
	decodePayload(t, reply, &created)
	require.NotEmpty(t, created.RoomID)

	return created.RoomID
}

// joinRoom drives a JOIN frame through the dispatcher and asserts success.
func joinRoom(t *testing.T, hub *Hub, c *Conn, roomID string) {
	t.Helper()

	hub.Dispatcher().Dispatch(c, inbound(t, TypeJoin, RoomPayload{RoomID: roomID}))

	reply := nextFrame(t, c)
	require.Equal(t, TypeRoomJoined, reply.Type)
}

// requireError asserts the next queued frame is an ERROR with the given code.
func requireError(t *testing.T, c *Conn, code int) {
	t.Helper()

	reply := nextFrame(t, c)
	require.Equal(t, TypeError, reply.Type)

	var payload ErrorPayload
	decodePayload(t, reply, &payload)
	assert.Equal(t, code, payload.Code)
	assert.NotEmpty(t, payload.Message)
}

func TestCreateRepliesToSenderOnly(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	other := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, other)

	roomID := createRoom(t, hub, creator)

	assert.NotEmpty(t, roomID)
	requireNoFrame(t, other)
	assert.Equal(t, 1, hub.Rooms().SubscriberCount(roomID))
}

func TestJoinRepliesWithRoomSummary(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, joiner)

	roomID := createRoom(t, hub, creator)

	hub.Dispatcher().Dispatch(joiner, inbound(t, TypeJoin, RoomPayload{RoomID: roomID}))

	reply := nextFrame(t, joiner)
	require.Equal(t, TypeRoomJoined, reply.Type)
	assert.NotEmpty(t, reply.Timestamp)

	var joined RoomJoinedPayload
	decodePayload(t, reply, &joined)
	assert.Equal(t, roomID, joined.Room.ID)
	assert.Equal(t, "u1", joined.Room.OwnerID)
	assert.Len(t, joined.Room.Members, 2)
}

func TestJoinUnknownRoom(t *testing.T) {
	gateway := newFakeGateway()
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, joiner)

	hub.Dispatcher().Dispatch(joiner, inbound(t, TypeJoin, RoomPayload{RoomID: "2b9c7a31-64a1-4b14-9f51-223344556677"}))
	requireError(t, joiner, errs.ErrRoomNotFound)
}

func TestJoinMalformedRoomID(t *testing.T) {
	gateway := newFakeGateway()
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, joiner)

	hub.Dispatcher().Dispatch(joiner, inbound(t, TypeJoin, RoomPayload{RoomID: "not-a-room-id"}))
	requireError(t, joiner, errs.ErrRoomNotFound)
}

func TestMessageFanOutSkipsSender(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, joiner)

	roomID := createRoom(t, hub, creator)
	joinRoom(t, hub, joiner, roomID)

	hub.Dispatcher().Dispatch(creator, inbound(t, TypeMessage, ContentPayload{
		RoomID:  roomID,
		Content: "hello room",
	}))

	// The recipient sees the message, tagged with the sender's identity.
	delivered := nextFrame(t, joiner)
	require.Equal(t, TypeMessage, delivered.Type)
	assert.NotEmpty(t, delivered.Timestamp)

	var payload ChatPayload
	decodePayload(t, delivered, &payload)
	assert.Equal(t, roomID, payload.RoomID)
	assert.Equal(t, "hello room", payload.Content)
	assert.Equal(t, "u1", payload.Sender.UserID)
	assert.Equal(t, "alice", payload.Sender.Username)
	assert.NotEmpty(t, payload.MessageID)

	// The sender gets an ACK carrying the same message id, never an echo.
	ack := nextFrame(t, creator)
	require.Equal(t, TypeAck, ack.Type)

	var ackPayload AckPayload
	decodePayload(t, ack, &ackPayload)
	assert.Equal(t, payload.MessageID, ackPayload.MessageID)
	assert.Equal(t, roomID, ackPayload.RoomID)

	requireNoFrame(t, creator)
	assert.Equal(t, 1, gateway.messageCount(roomID))
}

func TestMessageFromNonMember(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	outsider := newTestConn("u3", "carol")
	hub := newTestHub(t, gateway, creator, outsider)

	roomID := createRoom(t, hub, creator)

	hub.Dispatcher().Dispatch(outsider, inbound(t, TypeMessage, ContentPayload{
		RoomID:  roomID,
		Content: "let me in",
	}))

	requireError(t, outsider, errs.ErrForbidden)
	requireNoFrame(t, creator)
	assert.Equal(t, 0, gateway.messageCount(roomID))
}

func TestMessageToUnknownRoom(t *testing.T) {
	gateway := newFakeGateway()
	sender := newTestConn("u1", "alice")
	hub := newTestHub(t, gateway, sender)

	hub.Dispatcher().Dispatch(sender, inbound(t, TypeMessage, ContentPayload{
		RoomID:  "2b9c7a31-64a1-4b14-9f51-223344556677",
		Content: "anyone here",
	}))

	requireError(t, sender, errs.ErrRoomNotFound)
}

func TestMessageContentTooLong(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	hub := newTestHub(t, gateway, creator)

	roomID := createRoom(t, hub, creator)

	oversized := make([]byte, MaxContentBytes+1)
	for i := range oversized {
		oversized[i] = 'a'
	}

	hub.Dispatcher().Dispatch(creator, inbound(t, TypeMessage, ContentPayload{
		RoomID:  roomID,
		Content: string(oversized),
	}))

	requireError(t, creator, errs.ErrMessageContentTooLong)
	assert.Equal(t, 0, gateway.messageCount(roomID))
}

func TestMessagePersistsWithEmptyRoom(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	hub := newTestHub(t, gateway, creator)

	roomID := createRoom(t, hub, creator)

	// The creator goes offline; membership survives, presence does not.
	hub.Rooms().LeaveRoom(creator, roomID)

	hub.Dispatcher().Dispatch(creator, inbound(t, TypeMessage, ContentPayload{
		RoomID:  roomID,
		Content: "anyone home",
	}))

	ack := nextFrame(t, creator)
	require.Equal(t, TypeAck, ack.Type)
	assert.Equal(t, 1, gateway.messageCount(roomID))
}

func TestLeaveNotifiesRemainingSubscribers(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, joiner)

	roomID := createRoom(t, hub, creator)
	joinRoom(t, hub, joiner, roomID)

	hub.Dispatcher().Dispatch(joiner, inbound(t, TypeLeave, RoomPayload{RoomID: roomID}))

	notice := nextFrame(t, creator)
	require.Equal(t, TypeUserLeft, notice.Type)

	var payload UserEventPayload
	decodePayload(t, notice, &payload)
	assert.Equal(t, roomID, payload.RoomID)
	assert.Equal(t, "u2", payload.User.UserID)

	// The leaver receives nothing.
	requireNoFrame(t, joiner)
	assert.Equal(t, 1, hub.Rooms().SubscriberCount(roomID))
}

func TestTypingReachesOthersOnly(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, joiner)

	roomID := createRoom(t, hub, creator)
	joinRoom(t, hub, joiner, roomID)

	hub.Dispatcher().Dispatch(creator, inbound(t, TypeTyping, RoomPayload{RoomID: roomID}))

	notice := nextFrame(t, joiner)
	require.Equal(t, TypeTyping, notice.Type)

	var payload UserEventPayload
	decodePayload(t, notice, &payload)
	assert.Equal(t, "u1", payload.User.UserID)

	requireNoFrame(t, creator)
}

func TestTypingToUnknownRoomIsSilent(t *testing.T) {
	gateway := newFakeGateway()
	sender := newTestConn("u1", "alice")
	hub := newTestHub(t, gateway, sender)

	hub.Dispatcher().Dispatch(sender, inbound(t, TypeTyping, RoomPayload{RoomID: "2b9c7a31-64a1-4b14-9f51-223344556677"}))
	requireNoFrame(t, sender)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "not JSON", frame: []byte("{{{nope")},
		{name: "unknown type", frame: []byte(`{"type":"SHOUT","payload":{}}`)},
		{name: "join without room id", frame: []byte(`{"type":"JOIN","payload":{}}`)},
		{name: "message without payload", frame: []byte(`{"type":"MESSAGE"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := newFakeGateway()
			sender := newTestConn("u1", "alice")
			hub := newTestHub(t, gateway, sender)

			hub.Dispatcher().Dispatch(sender, tt.frame)

			// The frame is discarded and the connection stays usable.
			requireNoFrame(t, sender)
			assert.Equal(t, StateOpen, sender.State())
			assert.Same(t, sender, hub.Connections().Lookup("u1"))
		})
	}
}

func TestSessionReplacementEvictsPriorConnection(t *testing.T) {
	gateway := newFakeGateway()
	first := newTestConn("u1", "alice")
	hub := newTestHub(t, gateway, first)

	roomID := createRoom(t, hub, first)
	require.Equal(t, 1, hub.Rooms().SubscriberCount(roomID))

	second := newTestConn("u1", "alice")
	hub.Register(second)

	// The replaced connection is fully cleaned up.
	assert.Equal(t, StateClosed, first.State())
	assert.Same(t, second, hub.Connections().Lookup("u1"))
	assert.Equal(t, 1, hub.Connections().Len())
	assert.False(t, hub.Rooms().HasSubscribers(roomID))
}

func TestFrameDispatchedAfterReleaseLeavesNoReference(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	victim := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, victim)

	roomID := createRoom(t, hub, creator)
	joinRoom(t, hub, victim, roomID)

	hub.Release(victim)
	require.Equal(t, StateClosed, victim.State())
	require.Equal(t, 1, hub.Rooms().SubscriberCount(roomID))

	// The read loop may have pulled this frame off the wire before the
	// cleanup ran; dispatching it now must not resurrect the connection in
	// any index.
	hub.Dispatcher().Dispatch(victim, inbound(t, TypeJoin, RoomPayload{RoomID: roomID}))

	assert.Equal(t, 1, hub.Rooms().SubscriberCount(roomID))
	assert.NotContains(t, hub.Rooms().Subscribers(roomID), victim)
	assert.Nil(t, hub.Connections().Lookup("u2"))

	// A second cleanup pass still finds nothing to remove.
	hub.Release(victim)
	assert.Equal(t, 1, hub.Rooms().SubscriberCount(roomID))
}

func TestJoinRacingReleaseNeverLeaksConnection(t *testing.T) {
	gateway := newFakeGateway()

	for i := 0; i < 50; i++ {
		creator := newTestConn("u1", "alice")
		hub := newTestHub(t, gateway, creator)
		roomID := createRoom(t, hub, creator)

		victim := newTestConn("u2", "bob")
		hub.Register(victim)

		joinFrame := inbound(t, TypeJoin, RoomPayload{RoomID: roomID})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Dispatcher().Dispatch(victim, joinFrame)
		}()
		go func() {
			defer wg.Done()
			hub.Release(victim)
		}()
		wg.Wait()

		// Whichever side won, the registries must have converged: a join
		// that slipped in first was swept by the release, a later one was
		// refused.
		assert.NotContains(t, hub.Rooms().Subscribers(roomID), victim)
		assert.Nil(t, hub.Connections().Lookup("u2"))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	gateway := newFakeGateway()
	c := newTestConn("u1", "alice")
	hub := newTestHub(t, gateway, c)

	roomID := createRoom(t, hub, c)

	hub.Release(c)
	hub.Release(c)

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, hub.Connections().Len())
	assert.False(t, hub.Rooms().HasSubscribers(roomID))
}

func TestClosedConnectionSkippedByBroadcast(t *testing.T) {
	gateway := newFakeGateway()
	creator := newTestConn("u1", "alice")
	joiner := newTestConn("u2", "bob")
	hub := newTestHub(t, gateway, creator, joiner)

	roomID := createRoom(t, hub, creator)
	joinRoom(t, hub, joiner, roomID)

	joiner.setState(StateClosing)

	hub.Dispatcher().Dispatch(creator, inbound(t, TypeMessage, ContentPayload{
		RoomID:  roomID,
		Content: "hello",
	}))

	ack := nextFrame(t, creator)
	require.Equal(t, TypeAck, ack.Type)
	requireNoFrame(t, joiner)
}
