// Package httpapi is the REST surface of the menu layer: the public menu,
// owner CRUD for categories and menu items, dashboard statistics and thin
// proxies for the identity provider's auth flows.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/menu_layer/internal/auth"
	"github.com/R3E-Network/menu_layer/internal/httputil"
	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/metrics"
	"github.com/R3E-Network/menu_layer/internal/middleware"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// Identity is the stateless identity-provider surface the auth endpoints
// proxy to. auth.Gateway and auth.MemoryProvider implement it.
type Identity interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	RevokeToken(ctx context.Context, accessToken string) error
}

// Config wires the router.
type Config struct {
	ServiceName string
	Menu        *menu.Service
	Identity    Identity
	Auth        *middleware.AuthMiddleware
	Metrics     *metrics.Metrics
	CORS        *middleware.CORSMiddleware
	RateLimiter *middleware.RateLimiter
	Logger      *logger.Logger

	// ResetRedirectURL is where password reset links land.
	ResetRedirectURL string
	// RequestContext derives the context handed to the menu service, for
	// example to attach the caller's Supabase token. Nil means r.Context().
	RequestContext func(r *http.Request) context.Context
}

type handler struct {
	menu          *menu.Service
	identity      Identity
	log           *logger.Logger
	resetRedirect string
	requestCtx    func(r *http.Request) context.Context
}

// NewRouter builds the API router.
func NewRouter(cfg Config) *mux.Router {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		menu:          cfg.Menu,
		identity:      cfg.Identity,
		log:           log,
		resetRedirect: cfg.ResetRedirectURL,
		requestCtx:    cfg.RequestContext,
	}
	if h.requestCtx == nil {
		h.requestCtx = func(r *http.Request) context.Context { return r.Context() }
	}

	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.LoggingMiddleware(log))
	if cfg.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(cfg.ServiceName, cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(cfg.CORS.Handler)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	public := r.PathPrefix("/v1/public").Subrouter()
	if cfg.RateLimiter != nil {
		public.Use(cfg.RateLimiter.Handler)
	}
	public.HandleFunc("/restaurants/{restaurantID}/menu", h.publicMenu).Methods(http.MethodGet)
	public.HandleFunc("/menu-items/{id}", h.publicMenuItem).Methods(http.MethodGet)

	authRoutes := r.PathPrefix("/v1/auth").Subrouter()
	if cfg.RateLimiter != nil {
		authRoutes.Use(cfg.RateLimiter.Handler)
	}
	authRoutes.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/register", h.register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	authRoutes.HandleFunc("/forgot-password", h.forgotPassword).Methods(http.MethodPost)

	owner := r.PathPrefix("/v1").Subrouter()
	if cfg.Auth != nil {
		owner.Use(cfg.Auth.Handler)
	}
	owner.Use(middleware.RequireUserID)
	// Runs after auth so owners are limited per user, not per shared IP.
	if cfg.RateLimiter != nil {
		owner.Use(cfg.RateLimiter.Handler)
	}
	owner.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)
	owner.HandleFunc("/categories", h.createCategory).Methods(http.MethodPost)
	owner.HandleFunc("/categories/{id}", h.getCategory).Methods(http.MethodGet)
	owner.HandleFunc("/categories/{id}", h.updateCategory).Methods(http.MethodPut)
	owner.HandleFunc("/categories/{id}", h.deleteCategory).Methods(http.MethodDelete)
	owner.HandleFunc("/menu-items", h.listMenuItems).Methods(http.MethodGet)
	owner.HandleFunc("/menu-items", h.createMenuItem).Methods(http.MethodPost)
	owner.HandleFunc("/menu-items/{id}", h.updateMenuItem).Methods(http.MethodPut)
	owner.HandleFunc("/menu-items/{id}", h.deleteMenuItem).Methods(http.MethodDelete)
	owner.HandleFunc("/stats", h.stats).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
