package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/providers"
	"github.com/jrsteele09/go-auth-session/sessions/sqlitestore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is the composition root: one store, one provider adapter and the controller driving it
type app struct {
	cfg        config.Config
	store      *sqlitestore.SQLiteStore
	provider   authsession.Provider
	controller *authsession.Controller
	activity   *authsession.ActivityHooks
	visibility *authsession.VisibilityHooks
	navigated  chan string
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func newApp(ctx context.Context, envFiles []string) (*app, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.GetLogLevel())

	store, err := sqlitestore.Open(cfg.GetStorePath())
	if err != nil {
		return nil, err
	}

	provider, err := providers.New(ctx, cfg, providers.Deps{Present: presentLoginURL, Store: store})
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		store:      store,
		provider:   provider,
		activity:   authsession.NewActivityHooks(),
		visibility: authsession.NewVisibilityHooks(),
		navigated:  make(chan string, 8),
	}
	a.controller = authsession.New(provider, store,
		authsession.WithNavigator(authsession.NavigatorFuncs{
			ReplaceFunc: a.navigate,
			PushFunc:    a.navigate,
		}),
		authsession.WithActivitySource(a.activity),
		authsession.WithVisibilitySource(a.visibility),
		authsession.WithTimings(authsession.TimingsFromConfig(cfg)),
	)
	return a, nil
}

func (a *app) navigate(target string) {
	log.Info().Str("target", target).Msg("Navigate")
	select {
	case a.navigated <- target:
	default:
	}
}

func (a *app) Close() error {
	return a.store.Close()
}

func presentLoginURL(authURL string) {
	fmt.Printf("Open the following URL to sign in:\n\n  %s\n\n", authURL)
}
