package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims carried by a talkroom bearer token.
// A verified payload is the sole source of a connection's identity.
type Payload struct {
	// StandardClaims embeds the JWT standard fields (Exp, Iat, Iss) used
	// for validity checks.
	jwt.StandardClaims

	// UserID is the unique identifier of the account the token was issued to.
	UserID string `json:"userId"`

	// Username is the display name bound to the account at issue time.
	Username string `json:"username"`
}
