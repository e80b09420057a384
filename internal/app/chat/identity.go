/*
Package chat contains the core of the messaging engine: connection and room
registries, the typed message dispatcher, and the fan-out broadcaster.

This file defines Identity, the verified principal behind a connection.
*/
package chat

// Identity is the verified identity derived from a connection's bearer
// token. It is immutable for the lifetime of the connection.
type Identity struct {
	// UserID is the unique account identifier from the token's userId claim.
	UserID string `json:"userId"`

	// Username is the display name from the token's username claim.
	Username string `json:"username"`
}
