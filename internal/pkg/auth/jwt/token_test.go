package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestGenerateAndVerifyToken(t *testing.T) {
	token, err := GenerateToken(&Payload{
		UserID:   "u1",
		Username: "alice",
	}, testSecret, IdentityExpiration)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := VerifyToken(token, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestVerifyTokenFailures(t *testing.T) {
	valid, err := GenerateToken(&Payload{UserID: "u1", Username: "alice"}, testSecret, IdentityExpiration)
	require.NoError(t, err)

	expired, err := GenerateToken(&Payload{UserID: "u1", Username: "alice"}, testSecret, -time.Minute)
	require.NoError(t, err)

	anonymous, err := GenerateToken(&Payload{Username: "alice"}, testSecret, IdentityExpiration)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{name: "empty token", token: "", secret: testSecret, wantErr: ErrInvalidToken},
		{name: "garbage token", token: "not.a.token", secret: testSecret, wantErr: ErrInvalidToken},
		{name: "wrong secret", token: valid, secret: "other-secret", wantErr: ErrInvalidToken},
		{name: "expired token", token: expired, secret: testSecret, wantErr: ErrInvalidToken},
		{name: "missing user id", token: anonymous, secret: testSecret, wantErr: ErrMissingUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := VerifyToken(tt.token, tt.secret)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
