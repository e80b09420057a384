/*
Package chat contains the core of the messaging engine.

This file defines Conn, one live WebSocket connection: its identity, send
state, outbound queue, and the read/write pumps. A Conn is owned exclusively
by the engine between handshake success and cleanup.
*/
package chat

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"talkroom/internal/pkg/errs"
	"talkroom/internal/pkg/logx"
)

const (
	// writeWait bounds a single write to the WebSocket connection.
	writeWait = 10 * time.Second

	// pongWait is the maximum silence tolerated before the read side gives up.
	pongWait = 60 * time.Second

	// pingPeriod is how often the server pings; must be below pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize is the maximum inbound frame size in bytes.
	maxFrameSize = 8192

	// MaxContentBytes caps the content of a single chat message.
	MaxContentBytes = 5000

	// sendQueueSize is the depth of the per-connection outbound queue.
	sendQueueSize = 256
)

// Application-level WebSocket close codes (4000-4999 range).
const (
	// CloseCodeUnauthenticated signals a rejected bearer token.
	CloseCodeUnauthenticated = 4001

	// CloseCodeSessionReplaced signals that the same identity opened a
	// newer connection and this one was evicted.
	CloseCodeSessionReplaced = 4002

	// CloseReasonUnauthenticated is the close reason paired with 4001.
	CloseReasonUnauthenticated = "Unauthenticated user"
)

// SendState is the delivery state of a connection. Only OPEN connections
// receive broadcasts; anything else is silently skipped.
type SendState int32

const (
	StateOpen SendState = iota
	StateClosing
	StateClosed
)

var (
	errConnNotOpen   = errors.New("connection is not open")
	errSendQueueFull = errors.New("connection send queue full")
)

// Conn is one live connection and the queue feeding its write pump.
type Conn struct {
	// sock is the underlying WebSocket connection. Nil in unit tests that
	// exercise the registries without a transport.
	sock *websocket.Conn

	// identity is the verified identity behind the connection.
	identity Identity

	// send queues encoded outbound frames for the write pump.
	send chan []byte

	// done is closed exactly once during cleanup and stops the write pump.
	done chan struct{}

	state atomic.Int32

	// closeOnce guards the cleanup sequence: close, read error, kick, and
	// failed-send paths may all request it concurrently.
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewConn wraps an accepted WebSocket connection and its verified identity.
func NewConn(sock *websocket.Conn, identity Identity) *Conn {
	connLogger := logx.Logger().With().
		Str("user_id", identity.UserID).
		Str("username", identity.Username).
		Logger()

	return &Conn{
		sock:     sock,
		identity: identity,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		logger:   connLogger,
	}
}

// Identity returns the connection's verified identity.
func (c *Conn) Identity() Identity {
	return c.identity
}

// State returns the connection's current send state.
func (c *Conn) State() SendState {
	return SendState(c.state.Load())
}

func (c *Conn) setState(s SendState) {
	c.state.Store(int32(s))
}

// enqueue places an encoded frame on the outbound queue without blocking.
func (c *Conn) enqueue(frameBytes []byte) error {
	if c.State() != StateOpen {
		return errConnNotOpen
	}

	select {
	case c.send <- frameBytes:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Connection send queue full, dropping frame")
		return errSendQueueFull
	}
}

// SendFrame builds, encodes, and queues an outbound frame for this
// connection only.
func (c *Conn) SendFrame(t MessageType, payload any) error {
	frame, err := NewFrame(t, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", string(t)).Msg("Failed to build outbound frame")
		return err
	}

	frameBytes, err := frame.Encode()
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", string(t)).Msg("Failed to encode outbound frame")
		return err
	}

	return c.enqueue(frameBytes)
}

// SendError reports a recoverable error to this connection as an ERROR frame.
func (c *Conn) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if err := c.SendFrame(TypeError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue ERROR frame")
	}
}

// Kick writes an application close frame announcing that the session was
// replaced. The caller is expected to release the connection afterwards.
func (c *Conn) Kick(reason string) {
	c.setState(StateClosing)

	c.logger.Warn().
		Int("close_code", CloseCodeSessionReplaced).
		Str("reason", reason).
		Msg("Kicking connection")

	if c.sock == nil {
		return
	}

	closeMessage := websocket.FormatCloseMessage(CloseCodeSessionReplaced, reason)

	// WriteControl is safe against the connection's own write pump, which
	// may still be draining its queue when the kick arrives.
	if err := c.sock.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write session-replaced close frame")
	}
}

// closeSocket closes the underlying transport, if any.
func (c *Conn) closeSocket() {
	if c.sock == nil {
		return
	}

	if err := c.sock.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Socket close error")
	}
}

// readPump reads inbound frames and hands each to the dispatcher. It owns
// the read side: deadlines, pong handling, and the exit path into cleanup.
func (c *Conn) readPump(h *Hub) {
	defer h.Release(c)

	c.sock.SetReadLimit(maxFrameSize)

	if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Read loop ended with unexpected close")
			}
			break
		}

		h.dispatcher.Dispatch(c, frameBytes)
	}
}

// writePump drains the send queue to the socket and keeps the heartbeat
// alive. Any write failure releases the connection.
func (c *Conn) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		h.Release(c)
	}()

	for {
		select {
		case frameBytes := <-c.send:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, frameBytes); err != nil {
				c.logger.Info().Err(err).Msg("Write failed, releasing connection")
				return
			}

		case <-ticker.C:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Info().Err(err).Msg("Ping failed, releasing connection")
				return
			}

		case <-c.done:
			return
		}
	}
}
