package jwt_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token/jwt"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestPadSegment(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		want    string
		wantErr bool
	}{
		{name: "multiple of four", segment: "abcd", want: "abcd"},
		{name: "two over", segment: "abcdef", want: "abcdef=="},
		{name: "three over", segment: "abcdefg", want: "abcdefg="},
		{name: "one over", segment: "abcde", wantErr: true},
		{name: "empty", segment: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := jwt.PadSegment(tt.segment)
			if tt.wantErr {
				require.ErrorIs(t, err, autherrors.ErrTokenDecode)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDecodePayload(t *testing.T) {
	t.Run("signed token", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "name": "Zoë"})

		claims, err := jwt.DecodePayload(raw)

		require.NoError(t, err)
		require.Equal(t, "user-1", claims["sub"])
		require.Equal(t, "Zoë", claims["name"])
	})

	t.Run("url safe alphabet", func(t *testing.T) {
		// ">>>" and "???" encode to characters outside the standard alphabet
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"a":">>>","b":"???"}`))
		require.True(t, strings.ContainsAny(payload, "-_"))

		claims, err := jwt.DecodePayload("h." + payload + ".s")

		require.NoError(t, err)
		require.Equal(t, ">>>", claims["a"])
		require.Equal(t, "???", claims["b"])
	})

	t.Run("payload lengths needing padding", func(t *testing.T) {
		for _, body := range []string{`{"a":1}`, `{"ab":1}`, `{"abc":1}`} {
			payload := base64.RawURLEncoding.EncodeToString([]byte(body))
			_, err := jwt.DecodePayload("h." + payload + ".s")
			require.NoError(t, err, body)
		}
	})

	t.Run("impossible segment length", func(t *testing.T) {
		_, err := jwt.DecodePayload("h.abcde.s")
		require.ErrorIs(t, err, autherrors.ErrTokenDecode)
	})

	t.Run("missing payload segment", func(t *testing.T) {
		_, err := jwt.DecodePayload("not-a-token")
		require.ErrorIs(t, err, autherrors.ErrTokenDecode)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte{'{', '"', 0xff, '"', ':', '1', '}'})
		_, err := jwt.DecodePayload("h." + payload + ".s")
		require.ErrorIs(t, err, autherrors.ErrTokenDecode)
	})

	t.Run("not json", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte("hello"))
		_, err := jwt.DecodePayload("h." + payload + ".s")
		require.ErrorIs(t, err, autherrors.ErrTokenDecode)
	})
}

func TestIntrospect(t *testing.T) {
	iat := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	raw := signedToken(t, jwtlib.MapClaims{
		"sub":             "user-1",
		"iat":             iat.Unix(),
		"exp":             iat.Add(5 * time.Minute).Unix(),
		"session_state":   "abc",
		"realm_access":    map[string]any{"roles": []string{"admin"}},
		"resource_access": map[string]any{"app": map[string]any{"roles": []string{"viewer"}}},
	})

	ti, err := jwt.Introspect(raw)
	require.NoError(t, err)

	require.Equal(t, "user-1", ti.Subject)
	require.Equal(t, "abc", ti.SessionState)
	require.NotNil(t, ti.IssuedAt)
	require.True(t, ti.IssuedAt.Equal(iat))
	require.Contains(t, ti.RealmAccess, "roles")
	require.Contains(t, ti.ResourceAccess, "app")
	require.Equal(t, []string{"admin"}, ti.RealmRoles())
	require.Equal(t, []string{"viewer"}, ti.ResourceRoles("app"))
	require.Nil(t, ti.ResourceRoles("other"))

	t.Run("expires in", func(t *testing.T) {
		d, err := ti.ExpiresIn(iat, 0)
		require.NoError(t, err)
		require.Equal(t, 5*time.Minute, d)

		// fractional seconds round the local clock up
		d, err = ti.ExpiresIn(iat.Add(500*time.Millisecond), 0)
		require.NoError(t, err)
		require.Equal(t, 5*time.Minute-time.Second, d)

		// a client running 10s ahead of the server
		d, err = ti.ExpiresIn(iat.Add(10*time.Second), 10)
		require.NoError(t, err)
		require.Equal(t, 5*time.Minute, d)
	})

	t.Run("time skew", func(t *testing.T) {
		skew, err := ti.TimeSkew(iat.Add(-3 * time.Second))
		require.NoError(t, err)
		require.Equal(t, int64(-3), skew)
	})

	t.Run("missing claims", func(t *testing.T) {
		bare, err := jwt.Introspect(signedToken(t, jwtlib.MapClaims{"sub": "x"}))
		require.NoError(t, err)
		require.Nil(t, bare.ExpiresAt)

		_, err = bare.ExpiresIn(iat, 0)
		require.Error(t, err)
		_, err = bare.TimeSkew(iat)
		require.Error(t, err)
	})

	t.Run("malformed exp", func(t *testing.T) {
		_, err := jwt.Introspect(signedToken(t, jwtlib.MapClaims{"exp": "tomorrow"}))
		require.ErrorIs(t, err, autherrors.ErrTokenDecode)
	})
}
