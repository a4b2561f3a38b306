package realtime

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestCheckTokenValid(t *testing.T) {
	now := time.Now()
	token := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	assert.NoError(t, checkToken(token, now))
}

func TestCheckTokenExpired(t *testing.T) {
	now := time.Now()
	token := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()})
	assert.Error(t, checkToken(token, now))
}

func TestCheckTokenNoExpiryAllowed(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-1"})
	assert.NoError(t, checkToken(token, time.Now()))
}

func TestCheckTokenMalformed(t *testing.T) {
	assert.Error(t, checkToken("", time.Now()))
	assert.Error(t, checkToken("not-a-jwt", time.Now()))
}
