/*
Package chat contains the core of the messaging engine.

This file defines the Broadcaster, which fans one encoded frame out to a set
of connections.
*/
package chat

import (
	"github.com/rs/zerolog"

	"talkroom/internal/metrics"
	"talkroom/internal/pkg/logx"
)

// Broadcaster delivers an outbound payload to a set of connections. A
// connection that is not in the OPEN state is silently skipped: a close is
// usually in flight and the cleanup sequence will collect it. A failed
// enqueue never aborts delivery to the rest; it schedules the failing
// connection's release instead.
type Broadcaster struct {
	// release funnels a dead connection into the hub's once-guarded
	// cleanup, asynchronously so fan-out never blocks on it.
	release func(*Conn)

	logger zerolog.Logger
}

// NewBroadcaster builds a Broadcaster that hands failed connections to
// release.
func NewBroadcaster(release func(*Conn)) *Broadcaster {
	return &Broadcaster{
		release: release,
		logger:  logx.Logger().With().Str("component", "broadcast").Logger(),
	}
}

// Deliver enqueues frameBytes on every OPEN connection in conns. skip, when
// non-nil, names a connection excluded from delivery (the sender of a chat
// message does not receive its own echo).
func (b *Broadcaster) Deliver(conns []*Conn, frameBytes []byte, skip *Conn) {
	for _, c := range conns {
		if c == skip {
			continue
		}

		if c.State() != StateOpen {
			continue
		}

		if err := c.enqueue(frameBytes); err != nil {
			b.logger.Warn().
				Err(err).
				Str("user_id", c.Identity().UserID).
				Msg("Delivery failed, scheduling connection release")

			go b.release(c)
			continue
		}

		metrics.MessagesDelivered.Inc()
	}
}

// DeliverFrame builds and encodes a frame once, then delivers it.
func (b *Broadcaster) DeliverFrame(conns []*Conn, t MessageType, payload any, skip *Conn) {
	frame, err := NewFrame(t, payload)
	if err != nil {
		b.logger.Error().Err(err).Str("frame_type", string(t)).Msg("Failed to build broadcast frame")
		return
	}

	frameBytes, err := frame.Encode()
	if err != nil {
		b.logger.Error().Err(err).Str("frame_type", string(t)).Msg("Failed to encode broadcast frame")
		return
	}

	b.Deliver(conns, frameBytes, skip)
}
