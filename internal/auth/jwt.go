package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"
)

const capabilityClaim = "x-ably-capability"

// JwtToken is a parsed streaming token. It is immutable once created.
type JwtToken struct {
	// IssuedAt and ExpirationTime are in epoch seconds.
	IssuedAt       int64
	ExpirationTime int64
	// Channels is the sorted set of channels the token may subscribe to.
	Channels []string
	RawToken string
}

// ParseJwt decodes a streaming token without verifying its signature; the SDK only needs its claims,
// and the streaming service performs verification.
func ParseJwt(raw string) (*JwtToken, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("invalid streaming token: %w", err)
	}

	ret := &JwtToken{RawToken: raw}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ret.ExpirationTime = exp.Unix()
	} else {
		return nil, errors.New("invalid streaming token: missing expiration time")
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		ret.IssuedAt = iat.Unix()
	}

	channels, err := parseCapability(claims[capabilityClaim])
	if err != nil {
		return nil, err
	}
	ret.Channels = channels
	return ret, nil
}

// The capability claim maps channel names to permissions. It arrives either as a JSON-encoded
// string or as an object.
func parseCapability(value interface{}) ([]string, error) {
	var capability map[string]interface{}
	switch v := value.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &capability); err != nil {
			return nil, fmt.Errorf("invalid streaming token capability: %w", err)
		}
	case map[string]interface{}:
		capability = v
	case nil:
		return nil, errors.New("invalid streaming token: missing capability")
	default:
		return nil, fmt.Errorf("invalid streaming token capability of type %T", value)
	}
	channels := make([]string, 0, len(capability))
	for name := range capability {
		channels = append(channels, name)
	}
	sort.Strings(channels)
	return channels, nil
}
