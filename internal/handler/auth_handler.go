package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go-auth-gateway/internal/middleware"
	"go-auth-gateway/internal/model"
	"go-auth-gateway/internal/ratelimit"
	"go-auth-gateway/pkg/apierror"
)

// AuthService is the slice of the auth state machine the HTTP layer
// consumes.
type AuthService interface {
	Login(ctx context.Context, req model.LoginRequest, clientIP string) (model.AuthResult, error)
	Register(ctx context.Context, req model.RegisterRequest, clientIP string) (model.AuthResult, error)
	VerifyIdentity(ctx context.Context, raw string) (model.PublicUser, error)
	Logout(ctx context.Context, raw string, clientIP string)
}

type AuthHandler struct {
	service AuthService
}

func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.Validation(apierror.FieldViolation{
			Field: "body", Message: "request body must be valid JSON",
		}))
		return
	}

	result, err := h.service.Login(r.Context(), payload, ratelimit.RequestIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.Validation(apierror.FieldViolation{
			Field: "body", Message: "request body must be valid JSON",
		}))
		return
	}

	result, err := h.service.Register(r.Context(), payload, ratelimit.RequestIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result)
}

// Verify returns the identity resolved by the auth middleware. The
// middleware already re-checked the subject against the store.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Authentication("invalid or expired token"))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// Logout always succeeds: tokens are stateless and expire on their own.
// A bearer token is optional and only feeds the audit trail.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, _ := middleware.BearerToken(r)
	h.service.Logout(r.Context(), raw, ratelimit.RequestIP(r))

	writeSuccess(w, http.StatusOK, model.LogoutResponse{LoggedOut: true})
}
