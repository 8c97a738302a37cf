// Package app composes the menu layer from configuration: the Supabase
// client and its resilience transport, the menu data access adapter, the
// identity backend and the HTTP router. cmd/menu-api and cmd/menuctl share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"

	"github.com/R3E-Network/menu_layer/internal/auth"
	"github.com/R3E-Network/menu_layer/internal/config"
	"github.com/R3E-Network/menu_layer/internal/httpapi"
	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/menu/memory"
	"github.com/R3E-Network/menu_layer/internal/menu/postgres"
	menusupabase "github.com/R3E-Network/menu_layer/internal/menu/supabase"
	"github.com/R3E-Network/menu_layer/internal/metrics"
	"github.com/R3E-Network/menu_layer/internal/middleware"
	"github.com/R3E-Network/menu_layer/internal/platform/migrations"
	"github.com/R3E-Network/menu_layer/internal/session"
	"github.com/R3E-Network/menu_layer/pkg/logger"
	"github.com/R3E-Network/menu_layer/supabase/client"
)

// ServiceName labels HTTP metrics and logs.
const ServiceName = "menu-api"

// Application holds the wired server side of the menu layer.
type Application struct {
	Config   *config.Config
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	Supabase *client.Client // nil unless a Supabase project is configured
	Menu     *menu.Service
	Identity httpapi.Identity
	Verifier middleware.TokenVerifier
	Limiter  *middleware.RateLimiter

	closers []func() error
}

// New builds an Application. m may be nil, in which case a registry without
// runtime collectors is created.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if m == nil {
		m = metrics.New(false)
	}
	a := &Application{Config: cfg, Log: log, Metrics: m}

	if cfg.Supabase.Enabled() {
		c, err := NewSupabaseClient(cfg.Supabase, m)
		if err != nil {
			return nil, err
		}
		a.Supabase = c
	}

	store, images, err := a.menuBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Menu = menu.NewService(store, images, menu.WithLogger(log.Named("menu")), menu.WithObserver(m))

	if err := a.identityBackend(); err != nil {
		a.Close()
		return nil, err
	}

	a.Limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log.Named("ratelimit"))
	return a, nil
}

// NewSupabaseClient creates a client whose transport retries idempotent
// requests, trips a circuit breaker on upstream failures and reports both to m.
func NewSupabaseClient(cfg config.SupabaseConfig, m *metrics.Metrics) (*client.Client, error) {
	breaker := client.DefaultCircuitBreakerConfig()
	if m != nil {
		breaker.OnStateChange = func(_, to client.CircuitState) {
			m.SetBreakerState(int(to))
		}
	}
	transport := client.NewTransport(nil, client.DefaultRetryConfig(), breaker)
	if m != nil {
		transport.Observe = m.ObserveUpstream
	}

	c, err := client.New(client.Config{
		URL:        cfg.URL,
		APIKey:     cfg.AnonKey,
		HTTPClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return c, nil
}

func (a *Application) menuBackend(ctx context.Context) (menu.Store, menu.ImageStore, error) {
	cfg := a.Config
	switch cfg.Database.Driver {
	case "memory":
		a.Log.Warn("using in-memory menu store; data is lost on restart")
		base := "/images"
		if cfg.Supabase.URL != "" {
			base = cfg.Supabase.URL + "/storage/v1/object/public/" + cfg.Supabase.ImageBucket
		}
		return memory.New(), memory.NewImageStore(base), nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		var images menu.ImageStore
		if a.Supabase != nil {
			images = menusupabase.NewImageStore(a.Supabase, cfg.Supabase.ImageBucket)
		} else {
			images = memory.NewImageStore("/images")
		}
		return postgres.New(db), images, nil

	case "supabase":
		if a.Supabase == nil {
			return nil, nil, errors.New("supabase driver requires a configured project")
		}
		return menusupabase.NewStore(a.Supabase), menusupabase.NewImageStore(a.Supabase, cfg.Supabase.ImageBucket), nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func (a *Application) identityBackend() error {
	switch a.Config.Server.Auth {
	case "memory":
		p := auth.NewMemoryProvider()
		a.Identity = p
		a.Verifier = middleware.TokenVerifierFunc(func(ctx context.Context, token string) (string, error) {
			u, err := p.VerifyToken(ctx, token)
			return u.ID, err
		})
		return nil
	case "supabase":
		if a.Supabase == nil {
			return errors.New("supabase auth requires a configured project")
		}
		gw := auth.NewGateway(a.Supabase)
		a.Identity = gw
		a.Verifier = middleware.TokenVerifierFunc(func(ctx context.Context, token string) (string, error) {
			u, err := gw.VerifyToken(ctx, token)
			return u.ID, err
		})
		return nil
	}
	return fmt.Errorf("unknown auth backend %q", a.Config.Server.Auth)
}

// Router builds the HTTP handler.
func (a *Application) Router() http.Handler {
	cfg := a.Config
	var requestCtx func(r *http.Request) context.Context
	if cfg.Database.Driver == "supabase" {
		// Row level security needs the caller's token on every REST call.
		requestCtx = func(r *http.Request) context.Context {
			return menusupabase.WithAccessToken(r.Context(), middleware.AccessToken(r.Context()))
		}
	}

	return httpapi.NewRouter(httpapi.Config{
		ServiceName:      ServiceName,
		Menu:             a.Menu,
		Identity:         a.Identity,
		Auth:             middleware.NewAuthMiddleware(cfg.Supabase.JWTSecret, a.Verifier, a.Log.Named("auth"), nil),
		Metrics:          a.Metrics,
		CORS:             middleware.NewCORSMiddleware(cfg.CORS.Origins()),
		RateLimiter:      a.Limiter,
		Logger:           a.Log,
		ResetRedirectURL: cfg.Supabase.ResetRedirectURL,
		RequestContext:   requestCtx,
	})
}

// Close releases database handles and other resources.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewSessionStore opens the client-side session store selected by cfg.
// defaultDir is used by the file backend when cfg.Dir is empty.
func NewSessionStore(cfg config.SessionConfig, defaultDir string) (session.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryStore(), noop, nil
	case "file":
		dir := cfg.Dir
		if dir == "" {
			dir = defaultDir
		}
		fs, err := session.NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	case "redis":
		rs, err := session.NewRedisStore(session.RedisConfig{
			URL:       cfg.RedisURL,
			Namespace: cfg.Namespace,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

// DefaultSessionDir is $XDG_CONFIG_HOME/menuctl (or the platform equivalent).
func DefaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "menuctl")
}
