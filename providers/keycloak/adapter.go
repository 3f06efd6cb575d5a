package keycloak

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	"github.com/jrsteele09/go-auth-session/internal/clock"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
)

// AdapterConfig holds the application side routes used by the adapter
type AdapterConfig struct {
	Keycloak        Config
	BaseURL         string        // application origin, e.g. "https://app.example.com"
	CallbackPath    string        // login redirect target
	LoginPath       string        // post-logout target
	SilentLoginPath string        // static page that performs no navigation
	CacheBreaker    string        // appended to the silent page URL
	RenewalOffset   time.Duration // lead time applied when checking token expiry
}

// Adapter connects a keycloak server to the session lifecycle. Renewal runs
// the silent protocol in a hidden frame because the provider state can only be
// updated through SetToken after a non-redirect refresh.
type Adapter struct {
	cfg    AdapterConfig
	frames FrameHost
	clock  clock.Clock
	host   authsession.Host

	mu          sync.Mutex
	instance    *Instance
	redirecting bool

	// epoch is incremented by every logout; renewals started in an earlier
	// epoch leave the provider state alone
	epoch atomic.Uint64
}

var _ authsession.Provider = (*Adapter)(nil)

func New(cfg AdapterConfig, frames FrameHost, c clock.Clock) *Adapter {
	if c == nil {
		c = clock.Real{}
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/callback"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.SilentLoginPath == "" {
		cfg.SilentLoginPath = "/silentLogin.html"
	}
	if cfg.RenewalOffset == 0 {
		cfg.RenewalOffset = time.Minute
	}
	return &Adapter{
		cfg:    cfg,
		frames: frames,
		clock:  c,
	}
}

func (a *Adapter) Attach(h authsession.Host) {
	a.host = h
}

// Instance returns the provider state, creating it on first use
func (a *Adapter) Instance() *Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.instance == nil {
		a.instance = NewInstance(a.cfg.Keycloak, a.clock)
	}
	return a.instance
}

// Init completes a login from the callback fragment. Without a fragment the
// persisted session is installed into the provider state, assuming no clock skew.
func (a *Adapter) Init(fragment string) {
	inst := a.Instance()

	a.mu.Lock()
	a.redirecting = false
	a.mu.Unlock()

	if fragment == "" {
		a.restore(inst)
		return
	}

	params, err := url.ParseQuery(fragment)
	if err != nil {
		a.failInit(inst, fmt.Errorf("%w: malformed callback: %w", autherrors.ErrAuthentication, err))
		return
	}
	if e := params.Get("error"); e != "" {
		a.failInit(inst, fmt.Errorf("%w: %s - %s", autherrors.ErrAuthentication, e, params.Get("error_description")))
		return
	}
	if !inst.ConsumeState(params.Get("state")) {
		a.failInit(inst, fmt.Errorf("%w: invalid state parameter", autherrors.ErrAuthentication))
		return
	}
	if err := inst.SetToken(params.Get("access_token"), "", params.Get("id_token"), a.host.Now()); err != nil {
		a.failInit(inst, fmt.Errorf("%w: %w", autherrors.ErrAuthentication, err))
		return
	}
	a.handleAuthenticated(inst)
}

func (a *Adapter) restore(inst *Instance) {
	s := a.host.Session()
	if s.AccessToken == "" {
		return
	}
	if err := inst.SetToken(s.AccessToken, "", s.IDToken, time.Time{}); err != nil {
		log.Warn().Err(err).Msg("Failed to restore stored keycloak tokens")
		return
	}
	inst.SetTimeSkew(0)
}

func (a *Adapter) failInit(inst *Instance, err error) {
	inst.ClearPendingStates()
	inst.ClearToken()
	a.host.HandleError(err)
}

func (a *Adapter) handleAuthenticated(inst *Instance) {
	if inst.Token() == "" || inst.IDToken() == "" {
		return
	}
	a.host.StartSession(sessionTokens(inst))
	if profile, ok := inst.Profile(); ok {
		a.host.SetUserData(profile)
	}
}

func (a *Adapter) Login(string) error {
	loginURL, _ := a.Instance().CreateLoginURL(LoginOptions{RedirectURI: a.RedirectURI()})
	return a.goToURL(loginURL)
}

// Register sends the user to the registration page
func (a *Adapter) Register() error {
	return a.goToURL(a.Instance().CreateRegisterURL(LoginOptions{RedirectURI: a.RedirectURI()}))
}

// AccountManagement sends the user to the account console
func (a *Adapter) AccountManagement() error {
	accountURL, ok := a.Instance().CreateAccountURL(a.cfg.BaseURL + "/")
	if !ok {
		return fmt.Errorf("%w: not supported by the OIDC server", autherrors.ErrUnsupported)
	}
	return a.goToURL(accountURL)
}

// Logout clears the provider state and ends the provider session. The
// instance is created here if logout happens before initialisation.
func (a *Adapter) Logout() {
	inst := a.Instance()
	a.epoch.Add(1)
	inst.ClearToken()
	if err := a.goToURL(inst.CreateLogoutURL(a.cfg.BaseURL + a.cfg.LoginPath)); err != nil {
		log.Debug().Err(err).Msg("Skipping provider logout redirect")
	}
}

// Authenticated fails closed: any error determining expiry counts as not authenticated
func (a *Adapter) Authenticated(sessions.Session) bool {
	expired, err := a.Instance().IsTokenExpired(a.cfg.RenewalOffset)
	if err != nil {
		return false
	}
	return !expired
}

// RedirectURI is where the provider returns after an interactive login
func (a *Adapter) RedirectURI() string {
	return a.cfg.BaseURL + a.cfg.CallbackPath
}

// RenewalRedirectURI points at the static page loaded by the silent renewal frame
func (a *Adapter) RenewalRedirectURI() string {
	u := a.cfg.BaseURL + a.cfg.SilentLoginPath
	if a.cfg.CacheBreaker != "" {
		u += "?_=" + url.QueryEscape(a.cfg.CacheBreaker)
	}
	return u
}

// goToURL navigates away for a login, logout or registration. Only one such
// redirect may be in progress.
func (a *Adapter) goToURL(target string) error {
	a.mu.Lock()
	if a.redirecting {
		a.mu.Unlock()
		return autherrors.ErrRedirectInProgress
	}
	a.redirecting = true
	a.mu.Unlock()

	a.host.Navigator().Replace(target)
	return nil
}

func sessionTokens(inst *Instance) authsession.Tokens {
	s := inst.Session()
	return authsession.Tokens{
		AccessToken: s.AccessToken,
		IDToken:     s.IDToken,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Renew runs the silent renewal protocol
func (a *Adapter) Renew(ctx context.Context) (*authsession.Tokens, error) {
	return a.silentRenew(ctx)
}
