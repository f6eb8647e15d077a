package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.GenerateToken("admin")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	refreshed, err := m.RefreshToken(token)
	require.NoError(t, err)
	_, err = m.ValidateToken(refreshed)
	assert.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour).ValidateToken(token)
	assert.Error(t, err, "a different secret must not validate")
}

func TestExpiredToken(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.GenerateToken("admin")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestExtractTokenFromBearer(t *testing.T) {
	token, err := ExtractTokenFromBearer("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	for _, header := range []string{"", "Bearer ", "Basic abc", "bearer abc"} {
		_, err := ExtractTokenFromBearer(header)
		assert.Error(t, err, header)
	}
}

func TestCredentials(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	creds := Credentials{Username: "admin", PasswordHash: hash}

	assert.NoError(t, creds.Verify("admin", "hunter2"))
	assert.ErrorIs(t, creds.Verify("admin", "hunter3"), ErrInvalidCredentials)
	assert.ErrorIs(t, creds.Verify("root", "hunter2"), ErrInvalidCredentials)
	assert.ErrorIs(t, Credentials{Username: "admin"}.Verify("admin", ""), ErrInvalidCredentials)
}
