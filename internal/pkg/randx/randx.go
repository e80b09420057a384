/*
Package randx generates the identifiers used by the messaging engine.

Room and message ids are UUIDv4: a 128-bit random space, so freshly created
ids never collide in practice and existence checks can be left entirely to
the persisted store.
*/
package randx

import (
	"github.com/google/uuid"
)

// RoomID returns a new room identifier.
func RoomID() string {
	return uuid.NewString()
}

// MessageID returns a new message identifier.
func MessageID() string {
	return uuid.NewString()
}

// IsValidID reports whether s parses as a UUID. Used to reject obviously
// malformed room ids before a store round trip.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
