package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// WidgetConfig describes the hosted login the OIDCWidget talks to
type WidgetConfig struct {
	Domain       string // issuer host or URL, e.g. "tenant.eu.auth0.com"
	ClientID     string
	ClientSecret string
	Audience     string
	RedirectURL  string
}

// Issuer returns the issuer URL for the configured domain
func (c WidgetConfig) Issuer() string {
	issuer := c.Domain
	if !strings.Contains(issuer, "://") {
		issuer = "https://" + issuer
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer
}

// OIDCWidget is a Widget backed by an OpenID Connect provider. Show hands the
// authorization URL to a presenter (a browser opener, a terminal prompt), the
// host delivers the redirect to HandleCallback, and silent session checks use
// the refresh token obtained at login (see WithTokenStore).
type OIDCWidget struct {
	provider *oidc.Provider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	audience string
	present  func(authURL string)
	store    sessions.Store // nil keeps the refresh token in memory

	mu              sync.Mutex
	pending         map[string]string // state -> PKCE verifier
	refreshToken    string
	idToken         string
	onAuthenticated func(AuthResult)
	onError         func(error)
}

var _ Widget = (*OIDCWidget)(nil)

// WidgetOption configures an OIDCWidget
type WidgetOption func(*OIDCWidget)

// WithTokenStore makes silent session checks read the refresh token and the
// last ID token from the session store, where the controller persists them
// with the session. A widget created by a later process can then renew a
// session it did not log in, and a logout revokes its refresh token.
func WithTokenStore(store sessions.Store) WidgetOption {
	return func(w *OIDCWidget) {
		w.store = store
	}
}

// NewOIDCWidget discovers the provider configuration. present receives the
// authorization URL every time Show is called.
func NewOIDCWidget(ctx context.Context, cfg WidgetConfig, present func(authURL string), opts ...WidgetOption) (*OIDCWidget, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	w := &OIDCWidget{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
			Now:      NowTimeFunc,
		}),
		audience: cfg.Audience,
		present:  present,
		pending:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *OIDCWidget) OnAuthenticated(fn func(AuthResult)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onAuthenticated = fn
}

func (w *OIDCWidget) OnAuthorizationError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Show starts an authorization code flow with PKCE
func (w *OIDCWidget) Show() error {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	w.mu.Lock()
	w.pending[state] = verifier
	w.mu.Unlock()

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if w.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", w.audience))
	}
	if w.present == nil {
		return errors.New("no presenter configured for the login widget")
	}
	w.present(w.oauth.AuthCodeURL(state, opts...))
	return nil
}

// HandleCallback completes the flow from the redirect's query parameters and
// raises the authenticated or authorization-error event.
func (w *OIDCWidget) HandleCallback(ctx context.Context, params url.Values) {
	result, err := w.exchange(ctx, params)

	w.mu.Lock()
	onAuthenticated, onError := w.onAuthenticated, w.onError
	w.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onAuthenticated != nil {
		onAuthenticated(*result)
	}
}

func (w *OIDCWidget) exchange(ctx context.Context, params url.Values) (*AuthResult, error) {
	if errorParam := params.Get("error"); errorParam != "" {
		return nil, fmt.Errorf("%s - %s", errorParam, params.Get("error_description"))
	}

	state, code := params.Get("state"), params.Get("code")
	if code == "" || state == "" {
		return nil, errors.New("missing code or state parameter")
	}

	w.mu.Lock()
	verifier, ok := w.pending[state]
	delete(w.pending, state)
	w.mu.Unlock()
	if !ok {
		return nil, errors.New("invalid state parameter")
	}

	token, err := w.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return w.accept(ctx, token, true)
}

// CheckSession refreshes the tokens with the refresh token from the last login
func (w *OIDCWidget) CheckSession(ctx context.Context) (*AuthResult, error) {
	refreshToken := w.storedRefreshToken()
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no provider session to check", autherrors.ErrNotAuthenticated)
	}

	token, err := w.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("silent session check failed: %w", err)
	}
	return w.accept(ctx, token, false)
}

// accept verifies the ID token (required on login, optional on refresh). A
// refresh response without an ID token reuses the last one. Without a store
// the refresh token is remembered here for the next silent check.
func (w *OIDCWidget) accept(ctx context.Context, token *oauth2.Token, requireIDToken bool) (*AuthResult, error) {
	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" && requireIDToken {
		return nil, errors.New("no ID token in response")
	}

	expiry := token.Expiry
	if rawIDToken != "" {
		idToken, err := w.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("failed to verify ID token: %w", err)
		}
		if expiry.IsZero() {
			expiry = idToken.Expiry
		}
	}

	if w.store != nil {
		if rawIDToken == "" {
			rawIDToken, _ = w.store.Get(sessions.KeyIDToken)
		}
	} else {
		w.mu.Lock()
		if token.RefreshToken != "" {
			w.refreshToken = token.RefreshToken
		}
		if rawIDToken != "" {
			w.idToken = rawIDToken
		} else {
			rawIDToken = w.idToken
		}
		w.mu.Unlock()
	}

	return &AuthResult{
		AccessToken:  token.AccessToken,
		IDToken:      rawIDToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiry.Sub(NowTimeFunc()),
	}, nil
}

func (w *OIDCWidget) storedRefreshToken() string {
	if w.store != nil {
		refreshToken, _ := w.store.Get(sessions.KeyRefreshToken)
		return refreshToken
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshToken
}

// UserInfo fetches the user's claims from the userinfo endpoint
func (w *OIDCWidget) UserInfo(ctx context.Context, accessToken string) (*sessions.UserProfile, error) {
	info, err := w.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	var profile sessions.UserProfile
	if err := info.Claims(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	profile.Subject = info.Subject
	if info.Email != "" {
		profile.Email = info.Email
	}
	return &profile, nil
}

// CallbackHandler serves the redirect target of the authorization flow
func (w *OIDCWidget) CallbackHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		// form values cover both query parameters and form_post responses
		if err := r.ParseForm(); err != nil {
			http.Error(rw, "Invalid callback request", http.StatusBadRequest)
			return
		}
		if r.Form.Get("error") != "" {
			log.Warn().Str("error", r.Form.Get("error")).Msg("Authorization failed")
		}
		w.HandleCallback(r.Context(), r.Form)
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = rw.Write([]byte("Authentication complete, you can close this window.\n"))
	}
}
