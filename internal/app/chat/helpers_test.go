package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestConn builds a transportless connection for registry and dispatcher
// tests. Frames queued on it are read back with nextFrame.
func newTestConn(userID, username string) *Conn {
	return NewConn(nil, Identity{UserID: userID, Username: username})
}

// nextFrame pops one queued outbound frame and decodes its envelope.
func nextFrame(t *testing.T, c *Conn) Frame {
	t.Helper()

	select {
	case frameBytes := <-c.send:
		var frame Frame
		require.NoError(t, json.Unmarshal(frameBytes, &frame))
		return frame
	default:
		t.Fatal("expected a queued outbound frame, found none")
		return Frame{}
	}
}

// requireNoFrame asserts the connection's outbound queue is empty.
func requireNoFrame(t *testing.T, c *Conn) {
	t.Helper()

	select {
	case frameBytes := <-c.send:
		t.Fatalf("expected no outbound frame, got: %s", frameBytes)
	default:
	}
}

// decodePayload unmarshals a frame payload into target.
func decodePayload(t *testing.T, frame Frame, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(frame.Payload, target))
}

// inbound encodes an inbound frame the way a client would send it.
func inbound(t *testing.T, frameType MessageType, payload any) []byte {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	frameBytes, err := json.Marshal(Frame{Type: frameType, Payload: raw})
	require.NoError(t, err)

	return frameBytes
}
