package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	"github.com/jrsteele09/go-auth-session/providers/auth0"
	"github.com/jrsteele09/go-auth-session/providers/keycloak"
	"github.com/jrsteele09/go-auth-session/providers/keycloak/httpframe"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFiles []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sessiond",
		Short:         "Keeps an identity provider session alive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "optional .env files to load")

	root.AddCommand(
		newStatusCommand(opts),
		newLoginCommand(opts),
		newCallbackCommand(opts),
		newRenewCommand(opts),
		newLogoutCommand(opts),
		newWatchCommand(opts),
		newGetCommand(opts),
	)
	return root
}

// withApp builds the composition root for the duration of one command
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.envFiles)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				if k, ok := a.provider.(*keycloak.Adapter); ok {
					k.Init("")
				}
				printStatus(a)
				return nil
			})
		},
	}
}

func printStatus(a *app) {
	c := a.controller
	s := c.Session()
	fmt.Printf("provider:      %s\n", a.cfg.GetAuthProvider())
	fmt.Printf("authenticated: %t\n", c.IsAuthenticated())
	fmt.Printf("active:        %t\n", c.IsActive())
	if !s.ExpiresAt.IsZero() {
		fmt.Printf("expires at:    %s\n", s.ExpiresAt.Format(time.RFC3339))
	}
	if p, ok := c.UserContext().Profile(); ok {
		fmt.Printf("user:          %s (%s)\n", p.Name, p.Email)
	}
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var startingURL string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with the configured identity provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			displayAppname("sessiond")
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				widget, ok := a.provider.(*auth0.Adapter)
				if !ok {
					// keycloak returns the tokens in a fragment, finish with `sessiond callback`
					return a.controller.Login(startingURL)
				}
				return loginWithCallbackServer(ctx, a, widget, startingURL)
			})
		},
	}
	cmd.Flags().StringVar(&startingURL, "starting-url", "/", "route to return to after login")
	return cmd
}

// loginWithCallbackServer serves the redirect target until the login completed or failed
func loginWithCallbackServer(ctx context.Context, a *app, adapter *auth0.Adapter, startingURL string) error {
	widget, ok := adapter.Widget().(*auth0.OIDCWidget)
	if !ok {
		return errors.New("login widget does not accept callbacks")
	}

	base, err := url.Parse(a.cfg.GetBaseURL())
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.GetCallbackPath(), widget.CallbackHandler())
	server := &http.Server{Addr: base.Host, Handler: mux}
	go listenAndServe(server)
	defer shutdown(server)

	if err := a.controller.Login(startingURL); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case target := <-a.navigated:
		if !a.controller.IsAuthenticated() {
			return fmt.Errorf("login did not complete, redirected to %s", target)
		}
		// the profile arrives after the session, wait for its redirect
		if _, ok := a.controller.UserContext().Profile(); !ok {
			select {
			case <-a.navigated:
			case <-time.After(30 * time.Second):
			}
		}
		printStatus(a)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Callback server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("Callback server failed")
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Err(err).Msg("Callback server shutdown failed")
	}
}

func newCallbackCommand(opts *rootOptions) *cobra.Command {
	var ssoCookies []string
	cmd := &cobra.Command{
		Use:   "callback <redirect-url-or-fragment>",
		Short: "Complete a keycloak login from the redirect URL",
		Long: "Complete a keycloak login from the redirect URL.\n\n" +
			"Silent renewal needs the provider's session cookies. Copy them from the\n" +
			"browser that logged in with --sso-cookie so that renew and watch can use them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				adapter, ok := a.provider.(*keycloak.Adapter)
				if !ok {
					return errors.New("callback is only used by the keycloak provider")
				}
				if err := seedProviderCookies(a, ssoCookies); err != nil {
					return err
				}
				fragment := args[0]
				if u, err := url.Parse(args[0]); err == nil && u.Fragment != "" {
					fragment = u.EscapedFragment()
				}
				adapter.Init(fragment)
				printStatus(a)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&ssoCookies, "sso-cookie", nil, "provider session cookie as NAME=VALUE, may be repeated")
	return cmd
}

// seedProviderCookies stores NAME=VALUE cookies for the keycloak realm, where
// the renewal frames will send them
func seedProviderCookies(a *app, cookies []string) error {
	if len(cookies) == 0 {
		return nil
	}
	realmURL, err := url.Parse(a.cfg.GetAuthDomain() + "/auth/realms/" + a.cfg.GetAuthRealm() + "/")
	if err != nil {
		return fmt.Errorf("invalid provider URL: %w", err)
	}

	parsed := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid cookie %q, expected NAME=VALUE", c)
		}
		parsed = append(parsed, &http.Cookie{Name: name, Value: value, Path: realmURL.Path})
	}
	httpframe.NewStoreJar(a.store).SetCookies(realmURL, parsed)
	return nil
}

func newRenewCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Renew the access token now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if k, ok := a.provider.(*keycloak.Adapter); ok {
					k.Init("")
				}
				if err := a.controller.RenewToken(ctx); err != nil {
					return err
				}
				printStatus(a)
				return nil
			})
		},
	}
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				a.controller.Logout()
				return nil
			})
		},
	}
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session renewed, each line on stdin counts as activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return watch(ctx, a)
			})
		},
	}
}

func watch(ctx context.Context, a *app) error {
	c := a.controller
	if k, ok := a.provider.(*keycloak.Adapter); ok {
		k.Instance().OnTokenExpired(func() {
			log.Debug().Msg("Keycloak access token expired")
		})
		k.Init("")
	}

	loggedOut := make(chan struct{}, 1)
	c.AddTokenChangeListener(authsession.OnTokenChange(func(tc sessions.TokenChange) {
		log.Info().Time("expires_at", tc.ExpiresAt).Msg("Token changed")
	}))
	c.AddInactivityListener(authsession.OnInactivity(func(remaining time.Duration) {
		log.Warn().Dur("remaining", remaining).Msg("No activity, session ends soon")
	}))
	c.AddLogoutListener(authsession.OnLogout(func() {
		select {
		case loggedOut <- struct{}{}:
		default:
		}
	}))

	c.Resume()
	if !c.IsAuthenticated() {
		return errors.New("no active session, run `sessiond login` first")
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			a.activity.Touch()
		}
	}()

	// a resumed (SIGCONT) process is treated like a tab becoming visible
	resumed := make(chan os.Signal, 1)
	signal.Notify(resumed, syscall.SIGCONT)
	defer signal.Stop(resumed)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-resumed:
			a.visibility.SetVisible(true)
		case <-loggedOut:
			return errors.New("session ended")
		case <-ctx.Done():
			return nil
		}
	}
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a URL with the session's bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if k, ok := a.provider.(*keycloak.Adapter); ok {
					k.Init("")
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, args[0], nil)
				if err != nil {
					return err
				}
				resp, err := a.controller.HTTPClient().Do(req)
				if err != nil {
					return err
				}
				defer resp.Body.Close()
				if resp.StatusCode >= http.StatusBadRequest {
					return fmt.Errorf("request failed: %s", resp.Status)
				}
				_, err = io.Copy(os.Stdout, resp.Body)
				return err
			})
		},
	}
}
