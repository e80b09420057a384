package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// fakeGateway is an in-memory Gateway for registry and dispatcher tests.
// Individual calls can be made to fail by setting the matching error field.
type fakeGateway struct {
	mu sync.Mutex

	rooms    map[string]RoomSummary
	messages map[string][]string

	createErr error
	findErr   error
	addErr    error
	memberErr error
	recordErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rooms:    make(map[string]RoomSummary),
		messages: make(map[string][]string),
	}
}

func (f *fakeGateway) CreateRoom(_ context.Context, owner Identity) (RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return RoomSummary{}, f.createErr
	}

	summary := RoomSummary{
		ID:      uuid.NewString(),
		OwnerID: owner.UserID,
		Members: []Member{{
			UserID:   owner.UserID,
			Username: owner.Username,
			Role:     RoleAdmin,
		}},
	}
	f.rooms[summary.ID] = summary

	return summary, nil
}

func (f *fakeGateway) FindRoom(_ context.Context, roomID string) (RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return RoomSummary{}, f.findErr
	}

	summary, ok := f.rooms[roomID]
	if !ok {
		return RoomSummary{}, ErrRoomNotFound
	}

	return summary, nil
}

func (f *fakeGateway) AddMember(_ context.Context, roomID, userID string, role Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.addErr != nil {
		return f.addErr
	}

	summary, ok := f.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}

	for _, m := range summary.Members {
		if m.UserID == userID {
			return nil
		}
	}

	summary.Members = append(summary.Members, Member{UserID: userID, Role: role})
	f.rooms[roomID] = summary

	return nil
}

func (f *fakeGateway) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.memberErr != nil {
		return false, f.memberErr
	}

	summary, ok := f.rooms[roomID]
	if !ok {
		return false, ErrRoomNotFound
	}

	for _, m := range summary.Members {
		if m.UserID == userID {
			return true, nil
		}
	}

	return false, nil
}

func (f *fakeGateway) RecordMessage(_ context.Context, roomID, senderID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordErr != nil {
		return "", f.recordErr
	}

	if _, ok := f.rooms[roomID]; !ok {
		return "", ErrRoomNotFound
	}

	messageID := uuid.NewString()
	f.messages[roomID] = append(f.messages[roomID], content)

	return messageID, nil
}

func (f *fakeGateway) messageCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.messages[roomID])
}

// messageLog returns the room's message contents in the order they were
// recorded.
func (f *fakeGateway) messageLog(roomID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	log := make([]string, len(f.messages[roomID]))
	copy(log, f.messages[roomID])
	return log
}
