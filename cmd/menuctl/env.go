package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/menu_layer/internal/app"
	"github.com/R3E-Network/menu_layer/internal/auth"
	"github.com/R3E-Network/menu_layer/internal/cart"
	"github.com/R3E-Network/menu_layer/internal/cli"
	"github.com/R3E-Network/menu_layer/internal/config"
	menusupabase "github.com/R3E-Network/menu_layer/internal/menu/supabase"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

type rootOptions struct {
	envFile        string
	configFile     string
	sessionBackend string
	sessionDir     string
	verbose        bool
}

// env is built once per invocation by the root command.
type env struct {
	opts *rootOptions

	cfg  *config.Config
	log  *logger.Logger
	out  *cli.Printer
	app  *app.Application
	auth *auth.Manager
	cart *cart.Manager

	closeStore func() error
}

func (e *env) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := config.Load(config.Options{EnvFile: e.opts.envFile, File: e.opts.configFile})
	if err != nil {
		return err
	}
	switch {
	case e.opts.sessionBackend != "":
		cfg.Session.Backend = e.opts.sessionBackend
	case os.Getenv("MENU_SESSION_BACKEND") == "":
		cfg.Session.Backend = "file"
	}
	e.cfg = cfg

	level := "warn"
	if e.opts.verbose {
		level = "debug"
	}
	e.log = logger.New(logger.LoggingConfig{Level: level, Format: "text", Output: "stderr"}).Named("menuctl")
	e.out = cli.NewPrinter(cmd.OutOrStdout())

	e.app, err = app.New(ctx, cfg, e.log, nil)
	if err != nil {
		return err
	}

	dir := e.opts.sessionDir
	if dir == "" {
		dir = app.DefaultSessionDir()
	}
	store, closeStore, err := app.NewSessionStore(cfg.Session, dir)
	if err != nil {
		return err
	}
	e.closeStore = closeStore

	var provider auth.IdentityProvider
	switch cfg.Server.Auth {
	case "supabase":
		provider = auth.NewSupabaseProvider(e.app.Supabase, store, e.log.Named("auth.supabase"))
	default:
		mp, ok := e.app.Identity.(*auth.MemoryProvider)
		if !ok {
			return errors.New("memory auth backend is not available")
		}
		e.log.Warn("in-memory auth does not survive between invocations")
		provider = mp
	}

	e.auth = auth.NewManager(provider, store,
		auth.WithNotifier(e.out),
		auth.WithNavigator(e.out),
		auth.WithLogger(e.log.Named("auth")),
		auth.WithResetRedirect(cfg.Supabase.ResetRedirectURL),
	)
	e.auth.Start(ctx)

	e.cart = cart.NewManager(store, cart.WithNotifier(e.out), cart.WithLogger(e.log.Named("cart")))
	return nil
}

func (e *env) teardown() error {
	if e.auth != nil {
		e.auth.Close()
	}
	var errs []error
	if e.app != nil {
		errs = append(errs, e.app.Close())
	}
	if e.closeStore != nil {
		errs = append(errs, e.closeStore())
	}
	return errors.Join(errs...)
}

// menuContext carries the signed-in owner's token to the data access layer.
func (e *env) menuContext(ctx context.Context) context.Context {
	if token := e.auth.AccessToken(); token != "" {
		return menusupabase.WithAccessToken(ctx, token)
	}
	return ctx
}

// requireUser fails unless an owner is signed in.
func (e *env) requireUser() (*auth.User, error) {
	u := e.auth.User()
	if u == nil || e.auth.State() != auth.StateAuthenticated {
		e.out.Navigate(auth.LoginPath)
		return nil, errors.New("not signed in, run menuctl login")
	}
	return u, nil
}
