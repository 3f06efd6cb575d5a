package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

var urlSafeReplacer = strings.NewReplacer("-", "+", "_", "/")

// PadSegment pads a base64url segment with '=' to a multiple of four.
// A segment of length 4k+1 cannot be valid base64 and is rejected.
func PadSegment(segment string) (string, error) {
	switch len(segment) % 4 {
	case 0:
	case 2:
		segment += "=="
	case 3:
		segment += "="
	default:
		return "", fmt.Errorf("%w: invalid segment length %d", autherrors.ErrTokenDecode, len(segment))
	}
	return segment, nil
}

// DecodePayload decodes the claims segment of a JWT without verifying its signature
func DecodePayload(rawToken string) (jwtlib.MapClaims, error) {
	parts := strings.Split(rawToken, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: token has no payload segment", autherrors.ErrTokenDecode)
	}

	segment, err := PadSegment(parts[1])
	if err != nil {
		return nil, err
	}

	payload, err := base64.StdEncoding.DecodeString(urlSafeReplacer.Replace(segment))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrTokenDecode, err)
	}

	// the payload is UTF-8 JSON, anything else is malformed
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", autherrors.ErrTokenDecode)
	}

	claims := jwtlib.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrTokenDecode, err)
	}
	return claims, nil
}
