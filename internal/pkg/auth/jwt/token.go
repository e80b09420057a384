/*
Package jwt mints and verifies the signed bearer tokens that gate every
WebSocket connection. Verification is pure: no registry or store is touched
here, callers decide what a failure means for the connection.
*/
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// IdentityExpiration defines how long an issued identity token stays valid.
	IdentityExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "talkroom-server"
)

var (
	// ErrInvalidToken reports a token that could not be parsed or verified,
	// or that has expired.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrMissingUserID reports a verified token without a userId claim.
	ErrMissingUserID = errors.New("token is missing the userId claim")
)

// GenerateToken signs a new token string for the given payload.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// VerifyToken parses and validates a token string against secretKey.
// It returns ErrInvalidToken when the signature, structure, or expiry check
// fails, and ErrMissingUserID when a valid token lacks a user id.
func VerifyToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}

	return claims, nil
}
