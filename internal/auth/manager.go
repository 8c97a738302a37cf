// Package auth manages the signed-in owner for one client: session lookup,
// login, registration, logout and password reset, with the cached user kept
// in the session store. Operations never return errors; outcomes are a
// boolean plus a user-visible notification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/R3E-Network/menu_layer/internal/notify"
	"github.com/R3E-Network/menu_layer/internal/session"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// State is the authentication state.
type State int

const (
	StateUnauthenticated State = iota
	StateChecking
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// LoginPath is where Logout navigates.
const LoginPath = "/login"

// Operation results reported to the Observer.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Snapshot is the manager state delivered to subscribers.
type Snapshot struct {
	State   State
	User    *User
	Loading bool
}

// Observer is told the result of every operation.
type Observer interface {
	ObserveAuthOperation(op, result string)
}

// Manager is the auth session manager.
type Manager struct {
	provider IdentityProvider
	store    session.Store

	mu      sync.Mutex
	state   State
	user    *User
	token   string
	loading int
	subs    map[int]func(Snapshot)
	nextSub int
	release func()

	notifier      notify.Notifier
	navigator     notify.Navigator
	observer      Observer
	resetRedirect string
	log           *logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithNotifier(n notify.Notifier) Option   { return func(m *Manager) { m.notifier = n } }
func WithNavigator(n notify.Navigator) Option { return func(m *Manager) { m.navigator = n } }
func WithObserver(o Observer) Option          { return func(m *Manager) { m.observer = o } }
func WithLogger(l *logger.Logger) Option      { return func(m *Manager) { m.log = l } }

// WithResetRedirect sets the URL password reset links land on.
func WithResetRedirect(url string) Option { return func(m *Manager) { m.resetRedirect = url } }

// NewManager returns an Unauthenticated manager. Call Start to resolve the
// existing session.
func NewManager(provider IdentityProvider, store session.Store, opts ...Option) *Manager {
	m := &Manager{
		provider:  provider,
		store:     store,
		state:     StateUnauthenticated,
		subs:      make(map[int]func(Snapshot)),
		notifier:  notify.Discard,
		navigator: notify.Discard,
		log:       logger.NewDefault("auth"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves to Checking, rehydrates the cached user, asks the provider for
// the current session and subscribes to session events. A provider failure
// keeps the cached user, if any.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.state = StateChecking
	if cached := m.loadUser(); cached != nil {
		m.user = cached
	}
	m.mu.Unlock()
	m.publish()

	sess, err := m.provider.GetSession(ctx)

	m.mu.Lock()
	switch {
	case err != nil:
		m.log.WithContext(ctx).WithError(err).Warn("session lookup failed")
		if m.user != nil {
			m.state = StateAuthenticated
		} else {
			m.state = StateUnauthenticated
		}
	case sess.Active():
		m.authenticate(sess)
	default:
		m.signOutLocked()
	}
	subscribed := m.release != nil
	m.mu.Unlock()
	m.publish()

	if !subscribed {
		release := m.provider.OnSessionChange(m.handleSessionChange)
		m.mu.Lock()
		m.release = release
		m.mu.Unlock()
	}
}

// Close releases the provider subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	release := m.release
	m.release = nil
	m.mu.Unlock()
	if release != nil {
		release()
	}
}

func (m *Manager) handleSessionChange(change SessionChange) {
	m.mu.Lock()
	switch {
	case change.Event == EventSignedOut || !change.Session.Active():
		m.signOutLocked()
	default:
		m.authenticate(change.Session)
	}
	m.mu.Unlock()

	m.log.WithField("event", string(change.Event)).Debug("session changed")
	m.publish()
}

// Login signs in with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) bool {
	m.begin()
	defer m.end()

	sess, err := m.provider.SignInWithPassword(ctx, email, password)
	switch {
	case IsRejection(err):
		m.fail(ctx, "login", ResultRejected, err, "Login failed", RejectionMessage(err, "Invalid email or password."))
		return false
	case err != nil:
		m.fail(ctx, "login", ResultError, err, "Login error", "An unexpected error occurred. Please try again.")
		return false
	case !sess.Active():
		m.fail(ctx, "login", ResultRejected, nil, "Login failed", "Invalid email or password.")
		return false
	}

	m.mu.Lock()
	m.authenticate(sess)
	name := m.user.DisplayName()
	m.mu.Unlock()

	m.succeed("login", "Login successful", fmt.Sprintf("Welcome back, %s!", name))
	return true
}

// Register signs up with name attached as profile metadata. The manager
// becomes Authenticated only when the provider returned an active session;
// an identity pending email confirmation still counts as success.
func (m *Manager) Register(ctx context.Context, name, email, password string) bool {
	m.begin()
	defer m.end()

	sess, err := m.provider.SignUp(ctx, email, password, map[string]any{"name": name})
	switch {
	case IsRejection(err):
		m.fail(ctx, "register", ResultRejected, err, "Registration failed", RejectionMessage(err, "Could not register. Please try again."))
		return false
	case err != nil:
		m.fail(ctx, "register", ResultError, err, "Registration error", "An unexpected error occurred. Please try again.")
		return false
	case sess == nil || sess.User.ID == "":
		m.fail(ctx, "register", ResultRejected, nil, "Registration failed", "Could not register. Please try again.")
		return false
	}

	if sess.User.Name == "" {
		sess.User.Name = name
	}
	if !sess.Active() {
		m.succeed("register", "Registration successful", fmt.Sprintf("Check %s to confirm your account.", email))
		return true
	}

	m.mu.Lock()
	m.authenticate(sess)
	display := m.user.DisplayName()
	m.mu.Unlock()

	m.succeed("register", "Registration successful", fmt.Sprintf("Welcome, %s!", display))
	return true
}

// Logout ends the session. The manager is Unauthenticated afterwards whatever
// the provider answered.
func (m *Manager) Logout(ctx context.Context) {
	m.begin()
	defer m.end()

	if err := m.provider.SignOut(ctx); err != nil {
		m.log.WithContext(ctx).WithError(err).Warn("provider sign out failed")
		m.observe("logout", ResultError)
	} else {
		m.observe("logout", ResultSuccess)
	}

	m.mu.Lock()
	m.signOutLocked()
	m.mu.Unlock()

	m.navigator.Navigate(LoginPath)
	m.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Title: "Logged out", Message: "You have been logged out successfully."})
}

// ForgotPassword asks the provider to email a reset link. State is unchanged.
func (m *Manager) ForgotPassword(ctx context.Context, email string) bool {
	m.begin()
	defer m.end()

	err := m.provider.ResetPasswordForEmail(ctx, email, m.resetRedirect)
	switch {
	case IsRejection(err):
		m.fail(ctx, "forgot_password", ResultRejected, err, "Request failed", RejectionMessage(err, "Could not process your request. Please try again."))
		return false
	case err != nil:
		m.fail(ctx, "forgot_password", ResultError, err, "Request error", "An unexpected error occurred. Please try again.")
		return false
	}
	m.succeed("forgot_password", "Password reset link sent", fmt.Sprintf("A password reset link has been sent to %s.", email))
	return true
}

// =============================================================================
// Reads
// =============================================================================

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loading reports whether an operation is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0
}

// AccessToken is the bearer token of the current session, or "".
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Subscribe registers fn for state changes. The returned func unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// =============================================================================
// Internals
// =============================================================================

func (m *Manager) snapshot() Snapshot {
	s := Snapshot{State: m.state, Loading: m.loading > 0}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

func (m *Manager) publish() {
	m.mu.Lock()
	snap := m.snapshot()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// loading is a counter so overlapping operations keep the flag up until the
// last one finishes.
func (m *Manager) begin() {
	m.mu.Lock()
	m.loading++
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) end() {
	m.mu.Lock()
	if m.loading > 0 {
		m.loading--
	}
	m.mu.Unlock()
	m.publish()
}

// authenticate must be called with mu held.
func (m *Manager) authenticate(sess *Session) {
	u := sess.User
	if u.Name == "" && m.user != nil && m.user.ID == u.ID {
		u.Name = m.user.Name
	}
	m.user = &u
	m.token = sess.AccessToken
	m.state = StateAuthenticated
	if err := session.SetJSON(m.store, session.SlotUser, u); err != nil {
		m.log.WithError(err).Warn("cache user failed")
	}
}

// signOutLocked must be called with mu held.
func (m *Manager) signOutLocked() {
	m.user = nil
	m.token = ""
	m.state = StateUnauthenticated
	if err := m.store.Remove(session.SlotUser); err != nil {
		m.log.WithError(err).Warn("clear cached user failed")
	}
}

// loadUser must be called with mu held.
func (m *Manager) loadUser() *User {
	var u User
	err := session.GetJSON(m.store, session.SlotUser, &u)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil
	case err != nil:
		m.log.WithError(err).Warn("cached user unreadable")
		return nil
	case u.ID == "":
		return nil
	}
	return &u
}

func (m *Manager) observe(op, result string) {
	if m.observer != nil {
		m.observer.ObserveAuthOperation(op, result)
	}
}

func (m *Manager) succeed(op, title, message string) {
	m.observe(op, ResultSuccess)
	m.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Title: title, Message: message})
}

func (m *Manager) fail(ctx context.Context, op, result string, err error, title, message string) {
	m.observe(op, result)
	entry := m.log.WithContext(ctx).WithField("op", op)
	if err != nil {
		entry = entry.WithError(err)
	}
	if result == ResultError {
		entry.Error("auth operation failed")
	} else {
		entry.Info("auth operation rejected")
	}
	m.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: title, Message: message})
}
