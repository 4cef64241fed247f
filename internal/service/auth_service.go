package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go-auth-gateway/internal/audit"
	"go-auth-gateway/internal/clock"
	"go-auth-gateway/internal/model"
	"go-auth-gateway/internal/validate"
	"go-auth-gateway/pkg/apierror"
)

// User-facing failure messages. Login failures share one generic message
// so responses never reveal which factor was wrong; the audit trail keeps
// the distinction.
const (
	msgInvalidCredentials = "invalid credentials"
	msgAccountInactive    = "account is inactive"
	msgInvalidToken       = "invalid or expired token"
	msgAuthFailed         = "authentication failed"
)

// CredentialStore is the persistence contract the state machine depends
// on. Lockout bookkeeping (threshold crossing, lock timestamps) lives
// behind it; the service only sequences the calls.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByUsernameOrEmail(ctx context.Context, username string, email string) ([]model.User, error)
	Create(ctx context.Context, input model.NewUser) (model.User, error)
	IncrementFailedAttempts(ctx context.Context, userID string) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	VerifyPassword(hash string, candidate string) bool
}

// TokenEngine issues and verifies the stateless session credential.
type TokenEngine interface {
	Issue(subjectID string, username string) (string, error)
	Verify(raw string) (model.TokenClaims, error)
}

// AuditRecorder receives security-audit events.
type AuditRecorder interface {
	Record(event audit.Event)
}

// AuthService orchestrates login, registration, and token-based identity
// verification. Each invocation is a strictly sequential pipeline:
// validate, check lock, check active, verify password, then account or
// issue.
type AuthService struct {
	store   CredentialStore
	tokens  TokenEngine
	auditor AuditRecorder
	clock   clock.Clock
}

func NewAuthService(store CredentialStore, tokens TokenEngine, auditor AuditRecorder, clk clock.Clock) *AuthService {
	if clk == nil {
		clk = clock.System()
	}
	return &AuthService{store: store, tokens: tokens, auditor: auditor, clock: clk}
}

// Login authenticates a username/password pair and issues a token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, clientIP string) (model.AuthResult, error) {
	username := validate.Sanitize(req.Username)
	pass := validate.Sanitize(req.Password)

	// Validation is pure: nothing below runs, and no store call happens,
	// until the inputs pass.
	if violations := validate.Login(username, pass); len(violations) > 0 {
		return model.AuthResult{}, apierror.Validation(violations...)
	}

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		s.auditor.Record(audit.Event{
			Action: audit.ActionLogin, Outcome: audit.OutcomeFailure,
			Username: username, ClientIP: clientIP, Reason: audit.ReasonUnknownUser,
		})
		return model.AuthResult{}, apierror.Authentication(msgInvalidCredentials)
	}
	if err != nil {
		return model.AuthResult{}, s.storeFailure("login lookup", username, clientIP, err)
	}

	now := s.clock.Now()
	if user.Locked(now) {
		s.auditor.Record(audit.Event{
			Action: audit.ActionLogin, Outcome: audit.OutcomeFailure,
			Username: user.Username, UserID: user.ID, ClientIP: clientIP,
			Reason: audit.ReasonLocked,
		})
		return model.AuthResult{}, apierror.Locked(user.LockRemaining(now))
	}

	if !user.IsActive {
		s.auditor.Record(audit.Event{
			Action: audit.ActionLogin, Outcome: audit.OutcomeFailure,
			Username: user.Username, UserID: user.ID, ClientIP: clientIP,
			Reason: audit.ReasonInactive,
		})
		return model.AuthResult{}, apierror.Authentication(msgAccountInactive)
	}

	if !s.store.VerifyPassword(user.PasswordHash, pass) {
		// The increment is a committed side effect on a failure response,
		// deliberately: re-submitting does not avoid being counted.
		attempts, incErr := s.store.IncrementFailedAttempts(ctx, user.ID)
		if incErr != nil {
			slog.Error("increment failed attempts", "username", user.Username, "error", incErr)
			attempts = user.FailedLoginAttempts + 1
		}
		s.auditor.Record(audit.Event{
			Action: audit.ActionLogin, Outcome: audit.OutcomeFailure,
			Username: user.Username, UserID: user.ID, ClientIP: clientIP,
			Reason: audit.ReasonBadPassword, Attempts: attempts,
		})
		return model.AuthResult{}, apierror.Authentication(msgInvalidCredentials)
	}

	if err := s.store.ResetFailedAttempts(ctx, user.ID); err != nil {
		return model.AuthResult{}, s.storeFailure("reset failed attempts", user.Username, clientIP, err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		slog.Error("issue token", "username", user.Username, "error", err)
		return model.AuthResult{}, apierror.Internal(err)
	}

	s.auditor.Record(audit.Event{
		Action: audit.ActionLogin, Outcome: audit.OutcomeSuccess,
		Username: user.Username, UserID: user.ID, ClientIP: clientIP,
	})

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now
	return model.AuthResult{Token: token, User: user.Public()}, nil
}

// Register creates an identity and logs it in atop the same token path as
// Login.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, clientIP string) (model.AuthResult, error) {
	username := validate.Sanitize(req.Username)
	pass := validate.Sanitize(req.Password)
	email := validate.Sanitize(req.Email)

	if violations := validate.Register(username, pass, email); len(violations) > 0 {
		return model.AuthResult{}, apierror.Validation(violations...)
	}

	existing, err := s.store.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		slog.Error("uniqueness check", "username", username, "error", err)
		return model.AuthResult{}, apierror.Internal(err)
	}
	if violations := duplicateViolations(existing, username, email); len(violations) > 0 {
		return model.AuthResult{}, apierror.Validation(violations...)
	}

	user, err := s.store.Create(ctx, model.NewUser{Username: username, Email: email, Password: pass})
	if err != nil {
		// A concurrent insert between the uniqueness check and the create
		// surfaces as a duplicate sentinel; it maps to the same
		// field-naming validation error as the pre-check.
		switch {
		case errors.Is(err, model.ErrDuplicateUsername):
			return model.AuthResult{}, apierror.Validation(duplicateUsernameViolation())
		case errors.Is(err, model.ErrDuplicateEmail):
			return model.AuthResult{}, apierror.Validation(duplicateEmailViolation())
		}
		slog.Error("create user", "username", username, "error", err)
		return model.AuthResult{}, apierror.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		slog.Error("issue token", "username", user.Username, "error", err)
		return model.AuthResult{}, apierror.Internal(err)
	}

	s.auditor.Record(audit.Event{
		Action: audit.ActionRegister, Outcome: audit.OutcomeSuccess,
		Username: user.Username, UserID: user.ID, ClientIP: clientIP,
	})

	return model.AuthResult{Token: token, User: user.Public()}, nil
}

// VerifyIdentity resolves a bearer token to its current identity. The
// subject is re-read from the store: a token alone proves nothing about
// the account still existing or being active.
func (s *AuthService) VerifyIdentity(ctx context.Context, raw string) (model.PublicUser, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return model.PublicUser{}, apierror.Authentication(msgInvalidToken)
	}

	user, err := s.store.FindByID(ctx, claims.SubjectID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.Authentication(msgInvalidToken)
	}
	if err != nil {
		slog.Error("verify identity lookup", "subject", claims.SubjectID, "error", err)
		return model.PublicUser{}, apierror.Authentication(msgAuthFailed)
	}

	if !user.IsActive {
		return model.PublicUser{}, apierror.Authentication(msgInvalidToken)
	}

	return user.Public(), nil
}

// Logout never fails: tokens are stateless, so there is nothing to
// invalidate server-side. A resolvable token still produces an audit
// event.
func (s *AuthService) Logout(ctx context.Context, raw string, clientIP string) {
	if strings.TrimSpace(raw) == "" {
		return
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return
	}

	s.auditor.Record(audit.Event{
		Action: audit.ActionLogout, Outcome: audit.OutcomeSuccess,
		Username: claims.Username, UserID: claims.SubjectID, ClientIP: clientIP,
	})
}

// storeFailure logs the underlying store error in full and returns the
// generic authentication failure the caller is allowed to see.
func (s *AuthService) storeFailure(op string, username string, clientIP string, err error) error {
	slog.Error("credential store failure", "op", op, "username", username, "error", err)
	s.auditor.Record(audit.Event{
		Action: audit.ActionLogin, Outcome: audit.OutcomeFailure,
		Username: username, ClientIP: clientIP, Reason: audit.ReasonStoreError,
	})
	return apierror.Authentication(msgAuthFailed)
}

func duplicateViolations(existing []model.User, username string, email string) []apierror.FieldViolation {
	var violations []apierror.FieldViolation
	for _, u := range existing {
		if strings.EqualFold(u.Username, username) {
			violations = append(violations, duplicateUsernameViolation())
		}
		if email != "" && u.Email != "" && strings.EqualFold(u.Email, email) {
			violations = append(violations, duplicateEmailViolation())
		}
	}
	return violations
}

func duplicateUsernameViolation() apierror.FieldViolation {
	return apierror.FieldViolation{Field: "username", Message: "username is already taken"}
}

func duplicateEmailViolation() apierror.FieldViolation {
	return apierror.FieldViolation{Field: "email", Message: "email is already registered"}
}
