package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is the signed-in restaurant owner as the rest of the app sees it.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// DisplayName is the user's name, or the local part of the email when no name
// was ever set.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Session is an identity-provider session. A session without an access token
// is an identity that has not been confirmed yet.
type Session struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Active reports whether the session can authenticate requests.
func (s *Session) Active() bool {
	return s != nil && s.AccessToken != ""
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionEvent names a provider-pushed session change.
type SessionEvent string

const (
	EventSignedIn       SessionEvent = "SIGNED_IN"
	EventSignedOut      SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// SessionChange is delivered to OnSessionChange handlers. Session is nil for
// EventSignedOut.
type SessionChange struct {
	Event   SessionEvent
	Session *Session
}

// IdentityProvider is the remote identity service the Manager delegates to.
//
// Rejections (bad credentials, duplicate account, weak password) are returned
// as *ProviderError. Any other error is a transport or unexpected failure.
type IdentityProvider interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp creates an identity carrying metadata as profile data. The
	// returned session is inactive when the provider requires confirmation.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	// OnSessionChange registers handler for pushed session events. The
	// returned func releases the registration.
	OnSessionChange(handler func(SessionChange)) func()
}

// ProviderError is a request the identity provider understood and refused.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return "auth: " + e.Message
	}
	return fmt.Sprintf("auth: %s (status %d)", e.Message, e.Status)
}

// IsRejection reports whether err is, or wraps, a *ProviderError.
func IsRejection(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// RejectionMessage returns the provider's message when err is a rejection
// with a message, else fallback.
func RejectionMessage(err error, fallback string) string {
	var pe *ProviderError
	if errors.As(err, &pe) && strings.TrimSpace(pe.Message) != "" {
		return pe.Message
	}
	return fallback
}
