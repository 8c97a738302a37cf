package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/menu_layer/internal/session"
	"github.com/R3E-Network/menu_layer/pkg/logger"
	"github.com/R3E-Network/menu_layer/supabase/client"
)

// refreshMargin is how long before expiry GetSession refreshes a token.
const refreshMargin = 60 * time.Second

// Gateway is a stateless view of the Supabase auth endpoints. Servers use it
// to proxy auth flows and verify bearer tokens.
type Gateway struct {
	auth *client.AuthClient
}

func NewGateway(c *client.Client) *Gateway {
	return &Gateway{auth: c.Auth()}
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	resp, err := g.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, mapClientError(err)
	}
	return sessionFromResponse(resp), nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	resp, err := g.auth.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, mapClientError(err)
	}
	return sessionFromResponse(resp), nil
}

func (g *Gateway) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return mapClientError(g.auth.Recover(ctx, email, redirectTo))
}

func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := g.auth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, mapClientError(err)
	}
	return sessionFromResponse(resp), nil
}

// RevokeToken signs out the session owning accessToken.
func (g *Gateway) RevokeToken(ctx context.Context, accessToken string) error {
	return mapClientError(g.auth.SignOut(ctx, accessToken))
}

// VerifyToken returns the user owning accessToken.
func (g *Gateway) VerifyToken(ctx context.Context, accessToken string) (User, error) {
	u, err := g.auth.GetUser(ctx, accessToken)
	if err != nil {
		return User{}, mapClientError(err)
	}
	return userFromClient(u), nil
}

func mapClientError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		return &ProviderError{Status: apiErr.StatusCode, Message: apiErr.Message}
	}
	return fmt.Errorf("supabase auth: %w", err)
}

func userFromClient(u *client.User) User {
	if u == nil {
		return User{}
	}
	out := User{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["name"].(string); ok {
		out.Name = name
	}
	return out
}

func sessionFromResponse(resp *client.AuthResponse) *Session {
	s := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.Expiry(),
		User:         userFromClient(resp.User),
	}
	return s
}

// =============================================================================
// SupabaseProvider
// =============================================================================

// SupabaseProvider is the IdentityProvider for one client. It keeps the
// session in the session store slot "session" so it survives restarts and
// pushes SIGNED_IN, SIGNED_OUT and TOKEN_REFRESHED events.
type SupabaseProvider struct {
	gw    *Gateway
	store session.Store
	log   *logger.Logger
	now   func() time.Time

	mu       sync.Mutex
	current  *Session
	loaded   bool
	handlers map[int]func(SessionChange)
	nextID   int
}

func NewSupabaseProvider(c *client.Client, store session.Store, log *logger.Logger) *SupabaseProvider {
	if log == nil {
		log = logger.NewDefault("auth.supabase")
	}
	return &SupabaseProvider{
		gw:       NewGateway(c),
		store:    store,
		log:      log,
		now:      time.Now,
		handlers: make(map[int]func(SessionChange)),
	}
}

// GetSession returns the cached session, refreshing it when it is about to
// expire. A refresh the provider rejects signs the client out.
func (p *SupabaseProvider) GetSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if !p.loaded {
		p.current = p.loadSession()
		p.loaded = true
	}
	sess := p.current
	p.mu.Unlock()

	if !sess.Active() {
		return nil, nil
	}
	if !sess.Expired(p.now().Add(refreshMargin)) {
		cp := *sess
		return &cp, nil
	}
	if sess.RefreshToken == "" {
		p.adopt(nil, EventSignedOut)
		return nil, nil
	}

	refreshed, err := p.RefreshSession(ctx)
	if IsRejection(err) {
		p.log.WithContext(ctx).WithError(err).Info("refresh token rejected")
		p.adopt(nil, EventSignedOut)
		return nil, nil
	}
	return refreshed, err
}

// RefreshSession exchanges the refresh token for a new access token.
func (p *SupabaseProvider) RefreshSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess == nil || sess.RefreshToken == "" {
		return nil, &ProviderError{Message: "no refresh token"}
	}

	refreshed, err := p.gw.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	if refreshed.User.ID == "" {
		refreshed.User = sess.User
	}
	p.adopt(refreshed, EventTokenRefreshed)
	return refreshed, nil
}

func (p *SupabaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := p.gw.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if sess.Active() {
		p.adopt(sess, EventSignedIn)
	}
	return sess, nil
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	sess, err := p.gw.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	if sess.Active() {
		p.adopt(sess, EventSignedIn)
	}
	return sess, nil
}

// SignOut drops the local session and revokes it remotely. The local session
// is gone even when the revoke fails.
func (p *SupabaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	p.adopt(nil, EventSignedOut)
	if !sess.Active() {
		return nil
	}
	return p.gw.RevokeToken(ctx, sess.AccessToken)
}

func (p *SupabaseProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return p.gw.ResetPasswordForEmail(ctx, email, redirectTo)
}

func (p *SupabaseProvider) OnSessionChange(handler func(SessionChange)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.handlers[id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.handlers, id)
			p.mu.Unlock()
		})
	}
}

// adopt replaces the session, persists it and notifies handlers.
func (p *SupabaseProvider) adopt(sess *Session, event SessionEvent) {
	p.mu.Lock()
	p.current = sess
	p.loaded = true
	if sess == nil {
		if err := p.store.Remove(session.SlotSession); err != nil {
			p.log.WithError(err).Warn("clear session failed")
		}
	} else if err := session.SetJSON(p.store, session.SlotSession, sess); err != nil {
		p.log.WithError(err).Warn("persist session failed")
	}
	handlers := make([]func(SessionChange), 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	var change SessionChange
	change.Event = event
	if sess != nil {
		cp := *sess
		change.Session = &cp
	}
	for _, h := range handlers {
		h(change)
	}
}

func (p *SupabaseProvider) loadSession() *Session {
	var sess Session
	err := session.GetJSON(p.store, session.SlotSession, &sess)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			p.log.WithError(err).Warn("stored session unreadable")
		}
		return nil
	}
	return &sess
}
