package authsession_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	"github.com/jrsteele09/go-auth-session/internal/clock/fakeclock"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/sessions/memstore"
)

var epoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// fakeProvider records calls and lets tests decide renewal outcomes
type fakeProvider struct {
	mu               sync.Mutex
	host             authsession.Host
	renewFn          func(ctx context.Context) (*authsession.Tokens, error)
	renewCalls       int
	logoutCalls      int
	logins           []string
	notAuthenticated bool
}

func (p *fakeProvider) Attach(h authsession.Host) {
	p.host = h
}

func (p *fakeProvider) Login(startingURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, startingURL)
	return nil
}

func (p *fakeProvider) Logout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logoutCalls++
}

func (p *fakeProvider) Renew(ctx context.Context) (*authsession.Tokens, error) {
	p.mu.Lock()
	p.renewCalls++
	fn := p.renewFn
	p.mu.Unlock()
	if fn == nil {
		return &authsession.Tokens{
			AccessToken: "renewed-token",
			IDToken:     "renewed-id-token",
			ExpiresAt:   p.host.Now().Add(2 * time.Minute),
		}, nil
	}
	return fn(ctx)
}

func (p *fakeProvider) Authenticated(sessions.Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.notAuthenticated
}

func (p *fakeProvider) RenewCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renewCalls
}

func (p *fakeProvider) LogoutCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logoutCalls
}

// recordingNavigator keeps every navigation intent
type recordingNavigator struct {
	mu       sync.Mutex
	replaced []string
	pushed   []string
}

func (n *recordingNavigator) Replace(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaced = append(n.replaced, target)
}

func (n *recordingNavigator) Push(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushed = append(n.pushed, target)
}

func (n *recordingNavigator) Replaced() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...)
}

type testFixture struct {
	clock      *fakeclock.FakeClock
	store      *memstore.InMemoryStore
	user       *sessions.UserContext
	provider   *fakeProvider
	navigator  *recordingNavigator
	activity   *authsession.ActivityHooks
	visibility *authsession.VisibilityHooks
	controller *authsession.Controller
}

func setupTestFixture(t *testing.T, timings authsession.Timings) *testFixture {
	t.Helper()

	f := &testFixture{
		clock:      fakeclock.New(epoch),
		store:      memstore.New(),
		provider:   &fakeProvider{},
		navigator:  &recordingNavigator{},
		activity:   authsession.NewActivityHooks(),
		visibility: authsession.NewVisibilityHooks(),
	}
	f.user = sessions.NewUserContext(f.store)
	f.controller = authsession.New(f.provider, f.store,
		authsession.WithClock(f.clock),
		authsession.WithNavigator(f.navigator),
		authsession.WithActivitySource(f.activity),
		authsession.WithVisibilitySource(f.visibility),
		authsession.WithTimings(timings),
	)
	return f
}

// withoutInactivity returns the default timings with inactivity tracking disabled
func withoutInactivity() authsession.Timings {
	timings := authsession.DefaultTimings()
	timings.InactivityWindow = 0
	return timings
}

// tokenChanges collects token-change notifications
type tokenChanges struct {
	mu      sync.Mutex
	changes []sessions.TokenChange
}

func (tc *tokenChanges) listener() *authsession.TokenChangeListener {
	return authsession.OnTokenChange(func(c sessions.TokenChange) {
		tc.mu.Lock()
		defer tc.mu.Unlock()
		tc.changes = append(tc.changes, c)
	})
}

func (tc *tokenChanges) All() []sessions.TokenChange {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]sessions.TokenChange(nil), tc.changes...)
}

// counter is a concurrency safe call counter
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
