package sharedtest

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Channel names used in test tokens.
const (
	TestFlagsChannel     = "NzM2MDI5Mzc0_MTgyNTg1MTgwNg==_splits"
	TestPrimaryChannel   = "control_pri"
	TestSecondaryChannel = "control_sec"
)

// MakeStreamingToken returns a signed token carrying the given channels in its capability claim,
// in the same shape the auth service issues.
func MakeStreamingToken(channels []string, issuedAt time.Time, ttl time.Duration) string {
	capability := make(map[string][]string, len(channels))
	for _, c := range channels {
		capability[c] = []string{"subscribe"}
	}
	capabilityJSON, _ := json.Marshal(capability)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"x-ably-capability": string(capabilityJSON),
		"iat":               issuedAt.Unix(),
		"exp":               issuedAt.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}

// MakeAuthResponse returns the JSON body of a successful auth service response.
func MakeAuthResponse(pushEnabled bool, token string, connDelaySeconds int) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"pushEnabled": pushEnabled,
		"token":       token,
		"connDelay":   connDelaySeconds,
	})
	return data
}
