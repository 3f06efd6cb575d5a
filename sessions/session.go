package sessions

import (
	"time"
)

// Session is the token state of the signed-in user. A zero ExpiresAt means no session.
type Session struct {
	AccessToken    string         // OAuth2 access token (JWT)
	IDToken        string         // OIDC ID token (JWT)
	RefreshToken   string         // kept for providers renewing over REST, may be empty
	ExpiresAt      time.Time      // When the access token expires
	Subject        string         // sub claim, provider dependent
	RealmAccess    map[string]any // realm_access claim, provider dependent
	ResourceAccess map[string]any // resource_access claim, provider dependent
	TimeSkew       *int64         // Client minus server clock in seconds, provider dependent
}

// Valid reports whether the session can be used for at least offset more time
func (s Session) Valid(now time.Time, offset time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(offset).Before(s.ExpiresAt)
}

// TokenChange is delivered to token-change listeners on every session update
type TokenChange struct {
	Token     string
	ExpiresAt time.Time
}
