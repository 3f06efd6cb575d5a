package auth0

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
)

const profileFetchTimeout = 30 * time.Second

// AuthResult is reported by the widget after authentication or a silent session check
type AuthResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string // empty when the provider did not issue or rotate one
	ExpiresIn    time.Duration
}

// Widget is a hosted authentication widget together with the provider's REST API
type Widget interface {
	// Show displays the login widget
	Show() error

	// OnAuthenticated registers the handler for successful interactive logins
	OnAuthenticated(fn func(AuthResult))

	// OnAuthorizationError registers the handler for widget reported errors
	OnAuthorizationError(fn func(error))

	// CheckSession silently obtains fresh tokens for the current provider session
	CheckSession(ctx context.Context) (*AuthResult, error)

	// UserInfo fetches the profile belonging to accessToken
	UserInfo(ctx context.Context, accessToken string) (*sessions.UserProfile, error)
}

// Adapter connects a hosted login widget to the session lifecycle
type Adapter struct {
	widget    Widget
	loginPath string
	host      authsession.Host
}

var _ authsession.Provider = (*Adapter)(nil)

func New(widget Widget, loginPath string) *Adapter {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Adapter{
		widget:    widget,
		loginPath: loginPath,
	}
}

// Widget returns the login widget the adapter drives
func (a *Adapter) Widget() Widget {
	return a.widget
}

func (a *Adapter) Attach(h authsession.Host) {
	a.host = h
	a.widget.OnAuthenticated(a.handleAuthenticated)
	a.widget.OnAuthorizationError(func(err error) {
		h.HandleError(fmt.Errorf("%w: %w", autherrors.ErrAuthentication, err))
	})
}

func (a *Adapter) Login(string) error {
	return a.widget.Show()
}

// Logout sends the user to the login route
func (a *Adapter) Logout() {
	a.host.Navigator().Push(a.loginPath)
}

func (a *Adapter) Renew(ctx context.Context) (*authsession.Tokens, error) {
	result, err := a.widget.CheckSession(ctx)
	if err != nil {
		return nil, err
	}
	return a.tokens(*result), nil
}

// Authenticated adds nothing to the stored session's validity
func (a *Adapter) Authenticated(sessions.Session) bool {
	return true
}

func (a *Adapter) handleAuthenticated(result AuthResult) {
	if result.AccessToken == "" || result.IDToken == "" {
		return
	}
	a.host.StartSession(*a.tokens(result))
	go a.fetchProfile(result.AccessToken)
}

func (a *Adapter) fetchProfile(accessToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), profileFetchTimeout)
	defer cancel()

	profile, err := a.widget.UserInfo(ctx, accessToken)
	if err != nil {
		// tokens stay installed, only the profile is missing
		a.host.HandleError(fmt.Errorf("%w: %w", autherrors.ErrProfileFetch, err))
		return
	}
	a.host.SetUserData(*profile)
}

// tokens converts the widget's relative expiry into an absolute one
func (a *Adapter) tokens(result AuthResult) *authsession.Tokens {
	return &authsession.Tokens{
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    a.host.Now().Add(result.ExpiresIn),
	}
}
