package jwt

import (
	"errors"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

// TokenIntrospection holds the claims a client needs from a decoded token.
// Nothing here is verified, the provider remains the authority.
type TokenIntrospection struct {
	Subject        string         // sub
	SessionState   string         // session_state (keycloak)
	IssuedAt       *time.Time     // iat, nil when absent
	ExpiresAt      *time.Time     // exp, nil when absent
	RealmAccess    map[string]any // realm_access (keycloak)
	ResourceAccess map[string]any // resource_access (keycloak)
	Claims         map[string]any // all decoded claims
}

// Introspect decodes a raw token and extracts the well known claims
func Introspect(rawToken string) (*TokenIntrospection, error) {
	claims, err := DecodePayload(rawToken)
	if err != nil {
		return nil, err
	}

	ti := &TokenIntrospection{Claims: claims}
	if ti.Subject, err = claims.GetSubject(); err != nil {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrTokenDecode, err)
	}
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrTokenDecode, err)
	}
	if iat != nil {
		ti.IssuedAt = &iat.Time
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrTokenDecode, err)
	}
	if exp != nil {
		ti.ExpiresAt = &exp.Time
	}

	ti.SessionState, _ = claims["session_state"].(string)
	ti.RealmAccess, _ = claims["realm_access"].(map[string]any)
	ti.ResourceAccess, _ = claims["resource_access"].(map[string]any)
	return ti, nil
}

// ExpiresIn returns how long the token stays valid on the local clock, given a
// client-minus-server skew in seconds. Server time values are whole seconds.
func (t *TokenIntrospection) ExpiresIn(now time.Time, timeSkew int64) (time.Duration, error) {
	if t.ExpiresAt == nil {
		return 0, errors.New("token has no exp claim")
	}
	nowSeconds := now.Unix()
	if now.Nanosecond() > 0 {
		nowSeconds++
	}
	return time.Duration(t.ExpiresAt.Unix()-nowSeconds+timeSkew) * time.Second, nil
}

// TimeSkew estimates the client-minus-server clock difference in seconds from iat
func (t *TokenIntrospection) TimeSkew(localTime time.Time) (int64, error) {
	if t.IssuedAt == nil {
		return 0, errors.New("token has no iat claim")
	}
	return localTime.Unix() - t.IssuedAt.Unix(), nil
}

// RealmRoles returns realm_access.roles
func (t *TokenIntrospection) RealmRoles() []string {
	return rolesOf(t.RealmAccess)
}

// ResourceRoles returns resource_access[resource].roles
func (t *TokenIntrospection) ResourceRoles(resource string) []string {
	access, _ := t.ResourceAccess[resource].(map[string]any)
	return rolesOf(access)
}

func rolesOf(access map[string]any) []string {
	claimRoles, ok := access["roles"].([]any)
	if !ok {
		return nil
	}
	return utils.ToStringSlice(claimRoles)
}
