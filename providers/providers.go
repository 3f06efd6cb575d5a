package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/authsession"
	"github.com/jrsteele09/go-auth-session/internal/clock"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/providers/auth0"
	"github.com/jrsteele09/go-auth-session/providers/keycloak"
	"github.com/jrsteele09/go-auth-session/providers/keycloak/httpframe"
	"github.com/jrsteele09/go-auth-session/sessions"
)

// Deps are the host capabilities a provider adapter may need
type Deps struct {
	Clock      clock.Clock
	HTTPClient *http.Client         // nil uses a client with a cookie jar
	Present    func(authURL string) // shows the auth0 login page

	// Store, when set, keeps the renewal state (auth0 refresh token, keycloak
	// frame cookies) next to the session so another process can renew it.
	// It should be the store the controller uses.
	Store sessions.Store
}

// New builds the adapter selected by cfg: auth0 by default, or keycloak
func New(ctx context.Context, cfg config.Config, deps Deps) (authsession.Provider, error) {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	switch cfg.GetAuthProvider() {
	case config.ProviderKeycloak:
		return NewKeycloak(cfg, deps)
	default:
		return NewAuth0(ctx, cfg, deps)
	}
}

func NewAuth0(ctx context.Context, cfg config.Config, deps Deps) (*auth0.Adapter, error) {
	widgetConfig := auth0.WidgetConfig{
		Domain:       cfg.GetAuthDomain(),
		ClientID:     cfg.GetAuthClientID(),
		ClientSecret: cfg.GetAuthClientSecret(),
		Audience:     cfg.GetAuthAudience(),
		RedirectURL:  cfg.GetBaseURL() + cfg.GetCallbackPath(),
	}
	if deps.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, deps.HTTPClient)
	}
	var opts []auth0.WidgetOption
	if deps.Store != nil {
		opts = append(opts, auth0.WithTokenStore(deps.Store))
	}
	widget, err := auth0.NewOIDCWidget(ctx, widgetConfig, deps.Present, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth0 widget: %w", err)
	}
	return auth0.New(widget, cfg.GetLoginPath()), nil
}

func NewKeycloak(cfg config.Config, deps Deps) (*keycloak.Adapter, error) {
	var frames *httpframe.Host
	var err error
	if deps.HTTPClient == nil && deps.Store != nil {
		frames, err = httpframe.NewWithStore(cfg.GetBaseURL(), deps.Store)
	} else {
		frames, err = httpframe.New(cfg.GetBaseURL(), deps.HTTPClient)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create renewal frame host: %w", err)
	}
	return keycloak.New(keycloak.AdapterConfig{
		Keycloak: keycloak.Config{
			URL:      cfg.GetAuthDomain() + "/auth",
			Realm:    cfg.GetAuthRealm(),
			ClientID: cfg.GetAuthClientID(),
			Scope:    cfg.GetAuthAudience(),
		},
		BaseURL:         cfg.GetBaseURL(),
		CallbackPath:    cfg.GetCallbackPath(),
		LoginPath:       cfg.GetLoginPath(),
		SilentLoginPath: cfg.GetSilentLoginPath(),
		CacheBreaker:    cfg.GetSilentLoginCacheBreaker(),
		RenewalOffset:   cfg.GetRenewalOffset(),
	}, frames, deps.Clock), nil
}
