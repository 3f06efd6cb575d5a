package keycloak

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/internal/clock"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token/jwt"
)

// Config identifies the keycloak client
type Config struct {
	URL      string // server URL including the context path, e.g. "https://sso.example.com/auth"
	Realm    string // empty for a generic OIDC server without account console
	ClientID string
	Scope    string // extra scope appended to "openid"
}

// LoginOptions tune a login, registration or silent renewal URL
type LoginOptions struct {
	RedirectURI string
	Prompt      string // "none" for silent renewal
	Action      string // "register" for registration
	LoginHint   string
}

// Instance holds the provider side token state: raw and decoded tokens, the
// client/server clock skew and the token-expired timer.
type Instance struct {
	cfg   Config
	clock clock.Clock

	mu                 sync.Mutex
	token              string
	idToken            string
	refreshToken       string
	tokenParsed        *jwt.TokenIntrospection
	idTokenParsed      *jwt.TokenIntrospection
	refreshTokenParsed *jwt.TokenIntrospection
	sessionID          string
	timeSkew           *int64
	authenticated      bool
	onTokenExpired     func()
	tokenTimeout       clock.Timer
	pendingStates      map[string]struct{}
}

func NewInstance(cfg Config, c clock.Clock) *Instance {
	if c == nil {
		c = clock.Real{}
	}
	return &Instance{
		cfg:           cfg,
		clock:         c,
		pendingStates: make(map[string]struct{}),
	}
}

// OnTokenExpired registers the callback armed from the token expiry on every SetToken
func (i *Instance) OnTokenExpired(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onTokenExpired = fn
}

// SetToken installs new tokens. Empty tokens clear the matching state. A
// non-zero timeLocal recomputes the clock skew from the access token's iat.
func (i *Instance) SetToken(token, refreshToken, idToken string, timeLocal time.Time) error {
	var tokenParsed, idTokenParsed, refreshTokenParsed *jwt.TokenIntrospection
	var err error
	if token != "" {
		if tokenParsed, err = jwt.Introspect(token); err != nil {
			return fmt.Errorf("access token: %w", err)
		}
	}
	if idToken != "" {
		if idTokenParsed, err = jwt.Introspect(idToken); err != nil {
			return fmt.Errorf("id token: %w", err)
		}
	}
	if refreshToken != "" {
		if refreshTokenParsed, err = jwt.Introspect(refreshToken); err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
	}

	i.mu.Lock()
	if i.tokenTimeout != nil {
		i.tokenTimeout.Stop()
		i.tokenTimeout = nil
	}

	i.refreshToken, i.refreshTokenParsed = refreshToken, refreshTokenParsed
	i.idToken, i.idTokenParsed = idToken, idTokenParsed

	if token == "" {
		i.token, i.tokenParsed = "", nil
		i.sessionID = ""
		i.authenticated = false
		i.mu.Unlock()
		return nil
	}

	i.token, i.tokenParsed = token, tokenParsed
	i.sessionID = tokenParsed.SessionState
	i.authenticated = true

	if !timeLocal.IsZero() {
		if skew, err := tokenParsed.TimeSkew(timeLocal); err == nil {
			i.timeSkew = utils.Ptr(skew)
		}
	}

	var fireNow func()
	if i.timeSkew != nil && i.onTokenExpired != nil {
		if expiresIn, err := tokenParsed.ExpiresIn(i.clock.Now(), *i.timeSkew); err == nil {
			if expiresIn <= 0 {
				fireNow = i.onTokenExpired
			} else {
				i.tokenTimeout = i.clock.AfterFunc(expiresIn, i.onTokenExpired)
			}
		}
	}
	i.mu.Unlock()

	if fireNow != nil {
		fireNow()
	}
	return nil
}

// ClearToken removes every token
func (i *Instance) ClearToken() {
	_ = i.SetToken("", "", "", time.Time{})
}

// SetTimeSkew overrides the skew estimate, e.g. when restoring persisted tokens
func (i *Instance) SetTimeSkew(seconds int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.timeSkew = utils.Ptr(seconds)
}

// TimeSkew returns the client-minus-server skew in seconds, false until known
func (i *Instance) TimeSkew() (int64, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return utils.Value(i.timeSkew), i.timeSkew != nil
}

// IsTokenExpired reports whether the access token expires within minValidity.
// It fails when there is no token or the skew is unknown.
func (i *Instance) IsTokenExpired(minValidity time.Duration) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokenParsed == nil {
		return false, errors.New("not authenticated")
	}
	if i.timeSkew == nil {
		return false, errors.New("unable to determine if token is expired as time skew is not set")
	}
	expiresIn, err := i.tokenParsed.ExpiresIn(i.clock.Now(), *i.timeSkew)
	if err != nil {
		return false, err
	}
	return expiresIn-minValidity.Truncate(time.Second) < 0, nil
}

func (i *Instance) Authenticated() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.authenticated
}

func (i *Instance) Token() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.token
}

func (i *Instance) IDToken() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.idToken
}

// Session returns the session described by the installed tokens, including the
// keycloak specific claims
func (i *Instance) Session() sessions.Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	s := sessions.Session{
		AccessToken: i.token,
		IDToken:     i.idToken,
	}
	if i.timeSkew != nil {
		s.TimeSkew = utils.Ptr(*i.timeSkew)
	}
	if i.tokenParsed != nil {
		if i.tokenParsed.ExpiresAt != nil {
			s.ExpiresAt = *i.tokenParsed.ExpiresAt
		}
		s.Subject = i.tokenParsed.Subject
		s.RealmAccess = i.tokenParsed.RealmAccess
		s.ResourceAccess = i.tokenParsed.ResourceAccess
	}
	return s
}

// HasRealmRole reports whether the access token grants role in the realm
func (i *Instance) HasRealmRole(role string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokenParsed == nil {
		return false
	}
	return slices.Contains(i.tokenParsed.RealmRoles(), role)
}

// HasResourceRole reports whether the access token grants role for resource,
// the client itself when resource is empty
func (i *Instance) HasResourceRole(role, resource string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokenParsed == nil {
		return false
	}
	if resource == "" {
		resource = i.cfg.ClientID
	}
	return slices.Contains(i.tokenParsed.ResourceRoles(resource), role)
}

// Profile builds a user profile from the ID token, false without one
func (i *Instance) Profile() (sessions.UserProfile, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.idTokenParsed == nil {
		return sessions.UserProfile{}, false
	}
	claims := i.idTokenParsed.Claims
	p := sessions.UserProfile{Subject: i.idTokenParsed.Subject}
	p.Email, _ = claims["email"].(string)
	p.Name, _ = claims["name"].(string)
	p.PreferredUsername, _ = claims["preferred_username"].(string)
	p.Picture, _ = claims["picture"].(string)
	return p, true
}

func (i *Instance) realmURL() string {
	base := strings.TrimRight(i.cfg.URL, "/")
	if i.cfg.Realm == "" {
		return base
	}
	return base + "/realms/" + url.PathEscape(i.cfg.Realm)
}

func (i *Instance) endpoint(name string) string {
	return i.realmURL() + "/protocol/openid-connect/" + name
}

// CreateLoginURL builds an implicit flow authorization URL and returns it with
// its state. Non-silent states are remembered for ConsumeState.
func (i *Instance) CreateLoginURL(opts LoginOptions) (string, string) {
	state := uuid.NewString()
	nonce := uuid.NewString()

	scope := "openid"
	if i.cfg.Scope != "" {
		scope += " " + i.cfg.Scope
	}

	q := url.Values{}
	q.Set("client_id", i.cfg.ClientID)
	q.Set("redirect_uri", opts.RedirectURI)
	q.Set("state", state)
	q.Set("response_mode", "fragment")
	q.Set("response_type", "id_token token")
	q.Set("scope", scope)
	q.Set("nonce", nonce)
	if opts.Prompt != "" {
		q.Set("prompt", opts.Prompt)
	}
	if opts.LoginHint != "" {
		q.Set("login_hint", opts.LoginHint)
	}
	if opts.Action != "" {
		q.Set("kc_action", opts.Action)
	}

	endpoint := i.endpoint("auth")
	if opts.Action == "register" {
		endpoint = i.endpoint("registrations")
	}

	if opts.Prompt != "none" {
		i.mu.Lock()
		i.pendingStates[state] = struct{}{}
		i.mu.Unlock()
	}
	return endpoint + "?" + q.Encode(), state
}

// ConsumeState reports whether state belongs to a login started here and forgets it
func (i *Instance) ConsumeState(state string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.pendingStates[state]
	delete(i.pendingStates, state)
	return ok
}

// ClearPendingStates forgets every outstanding login
func (i *Instance) ClearPendingStates() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pendingStates = make(map[string]struct{})
}

func (i *Instance) CreateLogoutURL(redirectURI string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	return i.endpoint("logout") + "?" + q.Encode()
}

func (i *Instance) CreateRegisterURL(opts LoginOptions) string {
	opts.Action = "register"
	u, _ := i.CreateLoginURL(opts)
	return u
}

// CreateAccountURL returns the account console URL, false when the server has none
func (i *Instance) CreateAccountURL(referrerURI string) (string, bool) {
	if i.cfg.Realm == "" {
		return "", false
	}
	q := url.Values{}
	q.Set("referrer", i.cfg.ClientID)
	q.Set("referrer_uri", referrerURI)
	return i.realmURL() + "/account?" + q.Encode(), true
}
