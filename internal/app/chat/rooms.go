/*
Package chat contains the core of the messaging engine.

This file defines the RoomRegistry: the in-memory map from room id to the
set of currently subscribed connections, backed by the persistence gateway.
The sets are a presence cache, never the source of truth for membership or
room existence — both are always decided against the store.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkroom/internal/metrics"
	"talkroom/internal/pkg/logx"
)

// roomEntry is the live state of one room with at least one subscriber.
type roomEntry struct {
	conns map[*Conn]struct{}
}

// RoomRegistry tracks which connections are subscribed to which rooms.
//
// Locking: mu guards the rooms map, the per-room conns sets, and the
// reverse index. pubs carries one mutex per room id, held only across a
// message publish; mu is never held while a publish mutex is acquired.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry

	// joined is the reverse index used by DropConn: every room id a
	// connection was added to, so cleanup removes it from all of them.
	joined map[*Conn]map[string]struct{}

	// pubs maps a room id to the mutex serializing persist-then-fan-out
	// for that room. Unlike the presence entries, a publish mutex is
	// never evicted: its identity must stay stable across the room's set
	// emptying and refilling, or two concurrent publishers could end up
	// holding different locks.
	pubMu sync.Mutex
	pubs  map[string]*sync.Mutex

	gateway Gateway

	// timeout bounds every gateway call. On expiry the operation fails and
	// no in-memory state changes.
	timeout time.Duration

	logger zerolog.Logger
}

// NewRoomRegistry builds a registry over the given gateway. Every gateway
// call is bounded by storeTimeout.
func NewRoomRegistry(gateway Gateway, storeTimeout time.Duration) *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]*roomEntry),
		joined:  make(map[*Conn]map[string]struct{}),
		pubs:    make(map[string]*sync.Mutex),
		gateway: gateway,
		timeout: storeTimeout,
		logger:  logx.Logger().With().Str("component", "rooms").Logger(),
	}
}

// publishLock returns the room's publish mutex, creating it on first use.
func (r *RoomRegistry) publishLock(roomID string) *sync.Mutex {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	lock, ok := r.pubs[roomID]
	if !ok {
		lock = &sync.Mutex{}
		r.pubs[roomID] = lock
	}
	return lock
}

func (r *RoomRegistry) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// CreateRoom persists a new room owned by the connection's identity and
// seeds the in-memory set with the creator. Persistence happens first: a
// store failure leaves no trace in the registry.
func (r *RoomRegistry) CreateRoom(ctx context.Context, c *Conn) (RoomSummary, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	summary, err := r.gateway.CreateRoom(sctx, c.Identity())
	if err != nil {
		return RoomSummary{}, err
	}

	r.addConn(summary.ID, c)

	r.logger.Info().
		Str("room_id", summary.ID).
		Str("owner_id", summary.OwnerID).
		Msg("Room created")

	return summary, nil
}

// JoinRoom subscribes the connection to an existing room. Existence is
// checked against the store; a room whose members are all offline has no
// in-memory entry but joins fine. Membership is granted on first join and
// re-joining an existing member is a no-op on the persisted side.
func (r *RoomRegistry) JoinRoom(ctx context.Context, c *Conn, roomID string) (RoomSummary, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	summary, err := r.gateway.FindRoom(sctx, roomID)
	if err != nil {
		return RoomSummary{}, err
	}

	identity := c.Identity()

	alreadyMember := false
	for _, m := range summary.Members {
		if m.UserID == identity.UserID {
			alreadyMember = true
			break
		}
	}

	if !alreadyMember {
		if err := r.gateway.AddMember(sctx, roomID, identity.UserID, RoleMember); err != nil {
			return RoomSummary{}, err
		}
		summary.Members = append(summary.Members, Member{
			UserID:   identity.UserID,
			Username: identity.Username,
			Role:     RoleMember,
		})
	}

	r.addConn(roomID, c)

	return summary, nil
}

// LeaveRoom drops the connection from the room's in-memory set. Leaving is
// a presence change only: persisted membership is never revoked. Absence is
// not an error.
func (r *RoomRegistry) LeaveRoom(c *Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeConnLocked(roomID, c)
}

// IsMember reports persisted membership, queried before a broadcast is
// allowed.
func (r *RoomRegistry) IsMember(ctx context.Context, identity Identity, roomID string) (bool, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	return r.gateway.IsMember(sctx, roomID, identity.UserID)
}

// PublishMessage persists one message and hands the current subscriber
// snapshot to deliver, all inside the room's publish critical section so
// concurrent sends into the same room cannot interleave out of submission
// order. The message is persisted even when nobody is subscribed.
func (r *RoomRegistry) PublishMessage(ctx context.Context, roomID string, sender Identity, content string, deliver func(messageID string, subscribers []*Conn)) (string, error) {
	lock := r.publishLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	messageID, err := r.gateway.RecordMessage(sctx, roomID, sender.UserID, content)
	if err != nil {
		return "", err
	}

	metrics.MessagesPersisted.Inc()

	deliver(messageID, r.Subscribers(roomID))

	return messageID, nil
}

// Subscribers returns a snapshot of the connections currently subscribed to
// the room. The snapshot is safe to iterate without holding any lock.
func (r *RoomRegistry) Subscribers(roomID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	conns := make([]*Conn, 0, len(entry.conns))
	for c := range entry.conns {
		conns = append(conns, c)
	}
	return conns
}

// SubscriberCount returns the size of a room's in-memory set; zero when the
// room has no entry.
func (r *RoomRegistry) SubscriberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	return len(entry.conns)
}

// HasSubscribers reports whether the room has an in-memory entry at all.
func (r *RoomRegistry) HasSubscribers(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID]
	return ok
}

// DropConn removes the connection from every room set it was added to and
// evicts entries that become empty. Called exactly once per connection from
// the hub's cleanup sequence; a repeat call finds nothing to do.
func (r *RoomRegistry) DropConn(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joined[c] {
		r.removeConnLocked(roomID, c)
	}
}

// addConn inserts the connection into the room's set, creating the entry
// lazily. Re-adding is a no-op, so repeated JOINs never duplicate.
func (r *RoomRegistry) addConn(roomID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A frame already read can be dispatched while the connection's cleanup
	// runs on another goroutine (kick, failed delivery). Once the state has
	// left OPEN the cleanup sweep may already be past this room, so a late
	// insert would outlive the connection. The state flips before the sweep
	// and both sides hold mu, so either ordering leaves the indexes clean.
	if c.State() != StateOpen {
		r.logger.Debug().
			Str("room_id", roomID).
			Str("user_id", c.Identity().UserID).
			Msg("Refusing room insert for connection that is not open")
		return
	}

	entry, ok := r.rooms[roomID]
	if !ok {
		entry = &roomEntry{conns: make(map[*Conn]struct{})}
		r.rooms[roomID] = entry
	}

	if _, present := entry.conns[c]; present {
		return
	}

	entry.conns[c] = struct{}{}
	metrics.RoomSubscribers.Inc()

	set, ok := r.joined[c]
	if !ok {
		set = make(map[string]struct{})
		r.joined[c] = set
	}
	set[roomID] = struct{}{}
}

// removeConnLocked removes the connection from one room set and evicts the
// entry when it empties. Callers hold r.mu.
func (r *RoomRegistry) removeConnLocked(roomID string, c *Conn) {
	entry, ok := r.rooms[roomID]
	if !ok {
		return
	}

	if _, present := entry.conns[c]; !present {
		return
	}

	delete(entry.conns, c)
	metrics.RoomSubscribers.Dec()

	if set, ok := r.joined[c]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.joined, c)
		}
	}

	// Evict the cache entry, not the persisted room.
	if len(entry.conns) == 0 {
		delete(r.rooms, roomID)
		r.logger.Debug().Str("room_id", roomID).Msg("Empty room entry evicted")
	}
}
