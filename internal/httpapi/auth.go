package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/menu_layer/internal/auth"
	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/httputil"
	"github.com/R3E-Network/menu_layer/internal/middleware"
	"github.com/R3E-Network/menu_layer/internal/validation"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type sessionResponse struct {
	AccessToken          string     `json:"access_token,omitempty"`
	RefreshToken         string     `json:"refresh_token,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	User                 auth.User  `json:"user"`
	ConfirmationRequired bool       `json:"confirmation_required,omitempty"`
}

func newSessionResponse(s *auth.Session) sessionResponse {
	resp := sessionResponse{
		AccessToken:          s.AccessToken,
		RefreshToken:         s.RefreshToken,
		User:                 s.User,
		ConfirmationRequired: !s.Active(),
	}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp
}

// identityError maps provider outcomes onto the error taxonomy: rejections
// keep the provider's message, anything else is an upstream failure.
func identityError(err error, status int) error {
	var pe *auth.ProviderError
	if errors.As(err, &pe) {
		se := &svcerrors.ServiceError{Code: svcerrors.CodeUnauthorized, HTTPStatus: status, Message: pe.Message, Err: err}
		if status != http.StatusUnauthorized {
			se.Code = svcerrors.CodeValidation
		}
		return se
	}
	return svcerrors.Upstream("identity provider unavailable", err)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}

	sess, err := h.identity.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Info("login refused")
		httputil.WriteErrorResponse(w, r, identityError(err, http.StatusUnauthorized))
		return
	}
	if !sess.Active() {
		httputil.WriteErrorResponse(w, r, svcerrors.Unauthorized("Invalid email or password."))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}

	sess, err := h.identity.SignUp(r.Context(), req.Email, req.Password, map[string]any{"name": req.Name})
	if err != nil {
		httputil.WriteErrorResponse(w, r, identityError(err, http.StatusUnprocessableEntity))
		return
	}
	if sess.User.Name == "" {
		sess.User.Name = req.Name
	}
	httputil.WriteJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	if err := h.identity.RevokeToken(r.Context(), token); err != nil {
		// the client drops its token either way
		h.log.WithContext(r.Context()).WithError(err).Warn("token revoke failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}

	if err := h.identity.ResetPasswordForEmail(r.Context(), req.Email, h.resetRedirect); err != nil {
		httputil.WriteErrorResponse(w, r, identityError(err, http.StatusBadRequest))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "A password reset link has been sent to " + req.Email + ".",
	})
}
