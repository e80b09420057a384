/*
Package store implements the durable side of the messaging engine on
PostgreSQL: users, rooms, memberships, and message history.

It satisfies chat.Gateway; the engine never talks to the database directly.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkroom/internal/app/chat"
	"talkroom/internal/pkg/randx"
)

// Store runs all persistence queries over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an initialized pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UserRecord is one row of the users table.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ErrUserNotFound is returned when a username or user id has no row.
var ErrUserNotFound = errors.New("user not found")

// CreateUser inserts a new account. The unique constraint on username
// surfaces through db.IsUniqueViolation at the caller.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (UserRecord, error) {
	var rec UserRecord

	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, username, password_hash, created_at`,
		username, passwordHash,
	).Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &rec.CreatedAt)

	if err != nil {
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return rec, nil
}

// GetUserByUsername fetches an account by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (UserRecord, error) {
	var rec UserRecord

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &rec.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user by username: %w", err)
	}

	return rec, nil
}

// CreateRoom persists a new room with owner as its sole ADMIN member, in
// one transaction so a half-created room can never be observed.
func (s *Store) CreateRoom(ctx context.Context, owner chat.Identity) (chat.RoomSummary, error) {
	roomID := randx.RoomID()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return chat.RoomSummary{}, fmt.Errorf("create room: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var createdAt time.Time
	err = tx.QueryRow(ctx,
		`INSERT INTO rooms (id, owner_id) VALUES ($1, $2) RETURNING created_at`,
		roomID, owner.UserID,
	).Scan(&createdAt)
	if err != nil {
		return chat.RoomSummary{}, fmt.Errorf("create room: insert room: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`,
		roomID, owner.UserID, string(chat.RoleAdmin),
	)
	if err != nil {
		return chat.RoomSummary{}, fmt.Errorf("create room: insert owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.RoomSummary{}, fmt.Errorf("create room: commit: %w", err)
	}

	return chat.RoomSummary{
		ID:        roomID,
		OwnerID:   owner.UserID,
		CreatedAt: createdAt,
		Members: []chat.Member{
			{UserID: owner.UserID, Username: owner.Username, Role: chat.RoleAdmin},
		},
	}, nil
}

// FindRoom returns a room summary with its persisted member list, or
// chat.ErrRoomNotFound.
func (s *Store) FindRoom(ctx context.Context, roomID string) (chat.RoomSummary, error) {
	var summary chat.RoomSummary

	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, created_at FROM rooms WHERE id = $1`,
		roomID,
	).Scan(&summary.ID, &summary.OwnerID, &summary.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return chat.RoomSummary{}, chat.ErrRoomNotFound
	}
	if err != nil {
		return chat.RoomSummary{}, fmt.Errorf("find room: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT m.user_id, u.username, m.role
		 FROM room_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = $1
		 ORDER BY m.joined_at`,
		roomID,
	)
	if err != nil {
		return chat.RoomSummary{}, fmt.Errorf("find room: members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m chat.Member
		var role string
		if err := rows.Scan(&m.UserID, &m.Username, &role); err != nil {
			return chat.RoomSummary{}, fmt.Errorf("find room: scan member: %w", err)
		}
		m.Role = chat.Role(role)
		summary.Members = append(summary.Members, m)
	}
	if err := rows.Err(); err != nil {
		return chat.RoomSummary{}, fmt.Errorf("find room: iterate members: %w", err)
	}

	return summary, nil
}

// AddMember records a membership. Duplicate joins hit the primary key and
// are dropped, keeping the operation idempotent.
func (s *Store) AddMember(ctx context.Context, roomID, userID string, role chat.Role) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		roomID, userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// IsMember reports persisted membership; a missing room is
// chat.ErrRoomNotFound rather than a bare false.
func (s *Store) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var roomExists, member bool

	err := s.pool.QueryRow(ctx,
		`SELECT
		    EXISTS (SELECT 1 FROM rooms WHERE id = $1),
		    EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&roomExists, &member)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}

	if !roomExists {
		return false, chat.ErrRoomNotFound
	}

	return member, nil
}

// RecordMessage appends one message to the room history.
func (s *Store) RecordMessage(ctx context.Context, roomID, senderID, content string) (string, error) {
	messageID := randx.MessageID()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, room_id, sender_id, content) VALUES ($1, $2, $3, $4)`,
		messageID, roomID, senderID, content,
	)
	if err != nil {
		return "", fmt.Errorf("record message: %w", err)
	}

	return messageID, nil
}
