package authsession

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/clock"
	"github.com/jrsteele09/go-auth-session/internal/listeners"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const userAuthErrorMessage = "An issue happened during authentication"

// Controller tracks token validity, schedules renewal, detects inactivity and
// fans out session events. Provider specific mechanics are delegated to a Provider.
type Controller struct {
	provider   Provider
	user       *sessions.UserContext
	clock      clock.Clock
	navigator  Navigator
	activity   ActivitySource
	visibility VisibilitySource
	timings    Timings
	renewals   singleflight.Group

	mu                 sync.Mutex
	generation         uint64 // incremented by every logout
	pendingChanges     []sessions.TokenChange
	deliveringChanges  bool
	renewalTimer       clock.Timer
	activityCheckTimer clock.Timer
	inactivityTimer    clock.Timer
	stopActivity       func()
	stopVisibility     func()

	tokenListeners      listeners.Registry[sessions.TokenChange]
	logoutListeners     listeners.Registry[struct{}]
	inactivityListeners listeners.Registry[time.Duration]
}

var _ Host = (*Controller)(nil)

// Option configures a Controller
type Option func(*Controller)

// WithClock sets the clock (primarily for testing)
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

func WithNavigator(n Navigator) Option {
	return func(ctrl *Controller) {
		ctrl.navigator = n
	}
}

func WithActivitySource(a ActivitySource) Option {
	return func(ctrl *Controller) {
		ctrl.activity = a
	}
}

func WithVisibilitySource(v VisibilitySource) Option {
	return func(ctrl *Controller) {
		ctrl.visibility = v
	}
}

func WithTimings(t Timings) Option {
	return func(ctrl *Controller) {
		ctrl.timings = t
	}
}

// New creates a Controller for provider backed by store and attaches the provider to it.
// Call Resume to pick up a session persisted by an earlier run.
func New(provider Provider, store sessions.Store, opts ...Option) *Controller {
	c := &Controller{
		provider:   provider,
		user:       sessions.NewUserContext(store),
		clock:      clock.Real{},
		navigator:  NavigatorFuncs{},
		activity:   NewActivityHooks(),
		visibility: NewVisibilityHooks(),
		timings:    DefaultTimings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	provider.Attach(c)
	return c
}

// Resume continues a persisted session: an active user gets activity tracking,
// a renewal timer and the visibility check, an inactive one is logged out.
func (c *Controller) Resume() {
	if !c.IsAuthenticated() {
		return
	}
	if !c.IsActive() {
		log.Info().Msg("Stored session belongs to an inactive user, logging out")
		c.Logout()
		return
	}

	c.OnActivity()
	c.mu.Lock()
	if expiresAt, ok := c.user.ExpiresAt(); ok {
		c.scheduleRenewalLocked(expiresAt)
	}
	c.addVisibilityCheckLocked()
	c.mu.Unlock()
}

func (c *Controller) Navigator() Navigator {
	return c.navigator
}

func (c *Controller) Now() time.Time {
	return c.clock.Now()
}

// UserContext exposes read access to the persisted user state
func (c *Controller) UserContext() *sessions.UserContext {
	return c.user
}

// Session returns the persisted session snapshot
func (c *Controller) Session() sessions.Session {
	return c.user.Session()
}

// IsAuthenticated reports whether the stored session stays valid beyond the
// renewal offset and the provider agrees.
func (c *Controller) IsAuthenticated() bool {
	s := c.user.Session()
	if !s.Valid(c.clock.Now(), c.timings.RenewalOffset) {
		return false
	}
	return c.provider.Authenticated(s)
}

// IsActive reports whether the user interacted within the inactivity window.
// It is always true when inactivity tracking is disabled.
func (c *Controller) IsActive() bool {
	if c.timings.InactivityWindow <= 0 {
		return true
	}
	last, ok := c.user.LastActivity()
	if !ok {
		return false
	}
	return c.clock.Now().Sub(last) <= c.timings.InactivityWindow
}

// Login persists startingURL for the post-login redirect and starts the provider's login
func (c *Controller) Login(startingURL string) error {
	if err := c.user.SetStartingURL(startingURL); err != nil {
		log.Warn().Err(err).Msg("Failed to store starting URL")
	}
	return c.provider.Login(startingURL)
}

// Logout clears the session, cancels every timer and hook, notifies the logout
// listeners and then runs the provider's logout. It is safe to call repeatedly.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.generation++
	if err := c.user.Clear(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear session store")
	}
	c.removeVisibilityCheckLocked()
	c.stopListeningForActivityLocked()
	stopTimer(&c.activityCheckTimer)
	stopTimer(&c.inactivityTimer)
	stopTimer(&c.renewalTimer)
	c.mu.Unlock()

	c.logoutListeners.Notify(struct{}{})
	c.provider.Logout()
}

// StartSession runs the shared authenticated path for providers
func (c *Controller) StartSession(t Tokens) {
	c.mu.Lock()
	c.addVisibilityCheckLocked()
	c.mu.Unlock()
	c.OnActivity()
	c.SetSession(t.ExpiresAt, t.AccessToken, t.IDToken)
}

// SetSession persists the tokens, replaces the renewal timer and notifies the
// token-change listeners. Listeners observe updates in call order. A
// SetSession made from inside a listener is delivered once that listener
// returns.
func (c *Controller) SetSession(expiresAt time.Time, accessToken, idToken string) {
	c.setSession(Tokens{AccessToken: accessToken, IDToken: idToken, ExpiresAt: expiresAt}, nil)
}

// setSession applies t. When generation is set and a logout happened since, t is
// discarded and false is returned.
func (c *Controller) setSession(t Tokens, generation *uint64) bool {
	c.mu.Lock()
	if generation != nil && *generation != c.generation {
		c.mu.Unlock()
		return false
	}
	err := c.user.SaveSession(sessions.Session{
		AccessToken:  t.AccessToken,
		IDToken:      t.IDToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist session")
	}
	c.scheduleRenewalLocked(t.ExpiresAt)

	c.pendingChanges = append(c.pendingChanges, sessions.TokenChange{Token: t.AccessToken, ExpiresAt: t.ExpiresAt})
	if c.deliveringChanges {
		c.mu.Unlock()
		return true
	}
	c.deliveringChanges = true
	c.mu.Unlock()

	c.deliverTokenChanges()
	return true
}

// deliverTokenChanges notifies the token-change listeners of queued changes
// until the queue is empty. Only one goroutine delivers at a time.
func (c *Controller) deliverTokenChanges() {
	delivered := false
	defer func() {
		if !delivered {
			// a listener panicked, let the next SetSession deliver the rest
			c.mu.Lock()
			c.deliveringChanges = false
			c.mu.Unlock()
		}
	}()

	for {
		c.mu.Lock()
		if len(c.pendingChanges) == 0 {
			c.deliveringChanges = false
			c.mu.Unlock()
			delivered = true
			return
		}
		change := c.pendingChanges[0]
		c.pendingChanges = c.pendingChanges[1:]
		c.mu.Unlock()

		c.tokenListeners.Notify(change)
	}
}

// SetUserData stores the profile, user id and default theme, then sends the
// user to the URL they started from.
func (c *Controller) SetUserData(profile sessions.UserProfile) {
	profile = profile.WithDefaults()

	redirect := c.user.StartingURL()
	if redirect == "" {
		redirect = "/"
	}
	if err := c.user.SetStartingURL("/"); err != nil {
		log.Warn().Err(err).Msg("Failed to reset starting URL")
	}
	if err := c.user.SetProfile(profile); err != nil {
		log.Warn().Err(err).Msg("Failed to store user profile")
	}
	if err := c.user.SetUserID(profile.UserID()); err != nil {
		log.Warn().Err(err).Msg("Failed to store user id")
	}
	if err := c.user.SetTheme(sessions.ThemeDefault); err != nil {
		log.Warn().Err(err).Msg("Failed to store theme")
	}
	c.navigator.Replace(redirect)
}

// HandleError logs an authentication error and returns the user to the home route
func (c *Controller) HandleError(err error) {
	log.Err(err).Msg(userAuthErrorMessage)
	c.navigator.Replace("/")
}

// stopTimer stops and forgets the timer held in slot
func stopTimer(slot *clock.Timer) {
	if *slot != nil {
		(*slot).Stop()
		*slot = nil
	}
}
