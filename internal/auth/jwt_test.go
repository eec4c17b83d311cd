package auth

import (
	"testing"
	"time"

	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedForTest(t *testing.T, claims jwt.MapClaims) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestParseJwtWithStringCapability(t *testing.T) {
	issued := time.Unix(1000, 0)
	raw := sharedtest.MakeStreamingToken([]string{"b_splits", "a_control_pri"}, issued, time.Minute)
	token, err := ParseJwt(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), token.IssuedAt)
	assert.Equal(t, int64(1060), token.ExpirationTime)
	assert.Equal(t, []string{"a_control_pri", "b_splits"}, token.Channels)
}

func TestParseJwtWithObjectCapability(t *testing.T) {
	raw := signedForTest(t, jwt.MapClaims{
		"exp":               2000,
		"x-ably-capability": map[string]interface{}{"x_mySegments": []string{"subscribe"}},
	})
	token, err := ParseJwt(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"x_mySegments"}, token.Channels)
	assert.Equal(t, int64(0), token.IssuedAt)
}

func TestParseJwtErrors(t *testing.T) {
	_, err := ParseJwt("garbage")
	assert.Error(t, err)

	_, err = ParseJwt(signedForTest(t, jwt.MapClaims{"x-ably-capability": "{}"}))
	assert.Error(t, err, "missing exp")

	_, err = ParseJwt(signedForTest(t, jwt.MapClaims{"exp": 5}))
	assert.Error(t, err, "missing capability")

	_, err = ParseJwt(signedForTest(t, jwt.MapClaims{"exp": 5, "x-ably-capability": "{not json"}))
	assert.Error(t, err)
}
