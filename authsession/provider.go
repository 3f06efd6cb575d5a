package authsession

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session/sessions"
)

// Tokens is the result of a successful authentication or renewal
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string // persisted with the session when set
	ExpiresAt    time.Time
}

// Provider supplies the identity provider specific mechanics the Controller
// calls into. Implementations must not call Host.Logout on renewal failure, the
// Controller does that once for every failed renewal.
type Provider interface {
	// Attach hands the provider the Host it reports provider initiated events to.
	// It is called once by New.
	Attach(h Host)

	// Login starts the provider's authentication flow. The starting URL is
	// already persisted when it is called.
	Login(startingURL string) error

	// Logout runs provider specific logout after the Controller cleared the session
	Logout()

	// Renew obtains fresh tokens without user interaction
	Renew(ctx context.Context) (*Tokens, error)

	// Authenticated is an additional provider check applied on top of the
	// stored session's validity
	Authenticated(s sessions.Session) bool
}

// Host is the part of the Controller a Provider may call
type Host interface {
	// StartSession runs the shared "authenticated" path: visibility hook,
	// activity tracking and SetSession.
	StartSession(t Tokens)
	SetSession(expiresAt time.Time, accessToken, idToken string)
	SetUserData(profile sessions.UserProfile)
	HandleError(err error)
	Logout()
	Session() sessions.Session
	Navigator() Navigator
	Now() time.Time
}

// Navigator receives the navigation intents of the session lifecycle
type Navigator interface {
	// Replace swaps the current route (or location) for target
	Replace(target string)

	// Push navigates to target keeping history
	Push(target string)
}

// NavigatorFuncs adapts two functions to a Navigator
type NavigatorFuncs struct {
	ReplaceFunc func(target string)
	PushFunc    func(target string)
}

func (n NavigatorFuncs) Replace(target string) {
	if n.ReplaceFunc != nil {
		n.ReplaceFunc(target)
	}
}

func (n NavigatorFuncs) Push(target string) {
	if n.PushFunc != nil {
		n.PushFunc(target)
	}
}
