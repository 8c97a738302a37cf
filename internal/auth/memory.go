package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryProvider is an in-process identity provider for local runs and tests.
// Passwords are bcrypt hashed; tokens are random and never expire unless TTL
// is set.
type MemoryProvider struct {
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
	// TTL bounds issued tokens. Zero means no expiry.
	TTL time.Duration

	mu       sync.Mutex
	accounts map[string]memoryAccount
	tokens   map[string]Session
	current  *Session
	handlers map[int]func(SessionChange)
	nextID   int
	resets   []PasswordReset
	failNext error
}

type memoryAccount struct {
	user User
	hash []byte
}

// PasswordReset records a reset link request.
type PasswordReset struct {
	Email      string
	RedirectTo string
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]memoryAccount),
		tokens:   make(map[string]Session),
		handlers: make(map[int]func(SessionChange)),
	}
}

// AddUser registers an account directly.
func (p *MemoryProvider) AddUser(name, email, password string) (User, error) {
	sess, err := p.createAccount(email, password, name)
	if err != nil {
		return User{}, err
	}
	return sess.User, nil
}

// FailNext makes the next provider call return err, simulating an outage.
func (p *MemoryProvider) FailNext(err error) {
	p.mu.Lock()
	p.failNext = err
	p.mu.Unlock()
}

// Resets returns every password reset requested so far.
func (p *MemoryProvider) Resets() []PasswordReset {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PasswordReset, len(p.resets))
	copy(out, p.resets)
	return out
}

func (p *MemoryProvider) takeFailure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.failNext
	p.failNext = nil
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *MemoryProvider) createAccount(email, password, name string) (*Session, error) {
	key := normalizeEmail(email)
	if key == "" || !strings.Contains(key, "@") {
		return nil, &ProviderError{Status: 400, Message: "Unable to validate email address: invalid format"}
	}
	if len(password) < 6 {
		return nil, &ProviderError{Status: 422, Message: "Password should be at least 6 characters"}
	}

	cost := p.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[key]; exists {
		return nil, &ProviderError{Status: 422, Message: "User already registered"}
	}
	user := User{ID: uuid.NewString(), Name: name, Email: key}
	p.accounts[key] = memoryAccount{user: user, hash: hash}
	return &Session{User: user}, nil
}

// issue must be called with mu held.
func (p *MemoryProvider) issue(user User) *Session {
	sess := &Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		User:         user,
	}
	if p.TTL > 0 {
		sess.ExpiresAt = time.Now().Add(p.TTL)
	}
	p.tokens[sess.AccessToken] = *sess
	p.current = sess
	return sess
}

func (p *MemoryProvider) GetSession(ctx context.Context) (*Session, error) {
	if err := p.takeFailure(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.Expired(time.Now()) {
		return nil, nil
	}
	cp := *p.current
	return &cp, nil
}

func (p *MemoryProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if err := p.takeFailure(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	acct, ok := p.accounts[normalizeEmail(email)]
	p.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, &ProviderError{Status: 400, Message: "Invalid login credentials"}
	}

	p.mu.Lock()
	sess := p.issue(acct.user)
	cp := *sess
	p.mu.Unlock()

	p.emit(EventSignedIn, &cp)
	return &cp, nil
}

// SignUp creates the account and signs it in immediately; there is no email
// confirmation step.
func (p *MemoryProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	if err := p.takeFailure(); err != nil {
		return nil, err
	}
	name, _ := metadata["name"].(string)
	created, err := p.createAccount(email, password, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	sess := p.issue(created.User)
	cp := *sess
	p.mu.Unlock()

	p.emit(EventSignedIn, &cp)
	return &cp, nil
}

func (p *MemoryProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	if p.current != nil {
		delete(p.tokens, p.current.AccessToken)
		p.current = nil
	}
	p.mu.Unlock()

	p.emit(EventSignedOut, nil)
	return p.takeFailure()
}

func (p *MemoryProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.mu.Lock()
	p.resets = append(p.resets, PasswordReset{Email: normalizeEmail(email), RedirectTo: redirectTo})
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) OnSessionChange(handler func(SessionChange)) func() {
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

// RevokeToken invalidates accessToken.
func (p *MemoryProvider) RevokeToken(ctx context.Context, accessToken string) error {
	p.mu.Lock()
	delete(p.tokens, accessToken)
	if p.current != nil && p.current.AccessToken == accessToken {
		p.current = nil
	}
	p.mu.Unlock()
	return nil
}

// VerifyToken returns the user owning accessToken.
func (p *MemoryProvider) VerifyToken(ctx context.Context, accessToken string) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.tokens[accessToken]
	if !ok || sess.Expired(time.Now()) {
		return User{}, &ProviderError{Status: 401, Message: "invalid JWT"}
	}
	return sess.User, nil
}

func (p *MemoryProvider) emit(event SessionEvent, sess *Session) {
	p.mu.Lock()
	handlers := make([]func(SessionChange), 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(SessionChange{Event: event, Session: sess})
	}
}
