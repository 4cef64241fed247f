package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-gateway/internal/model"
	"go-auth-gateway/pkg/apierror"
)

type fakeVerifier struct {
	user model.PublicUser
	err  error
}

func (v fakeVerifier) VerifyIdentity(_ context.Context, raw string) (model.PublicUser, error) {
	if v.err != nil {
		return model.PublicUser{}, v.err
	}
	return v.user, nil
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"well-formed", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"case-insensitive scheme", "bearer abc", "abc", true},
		{"surrounding whitespace", "  Bearer abc  ", "abc", true},
		{"missing header", "", "", false},
		{"wrong scheme", "Basic abc", "", false},
		{"scheme without token", "Bearer ", "", false},
		{"scheme only", "Bearer", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, ok := BearerToken(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	identity := model.PublicUser{ID: "u-1", Username: "alice01"}

	t.Run("valid token reaches the handler with the identity attached", func(t *testing.T) {
		t.Parallel()

		mw := NewAuthMiddleware(fakeVerifier{user: identity})

		var seen model.PublicUser
		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := IdentityFromContext(r.Context())
			require.True(t, ok)
			seen = user
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, identity, seen)
	})

	t.Run("missing header is rejected before the verifier runs", func(t *testing.T) {
		t.Parallel()

		mw := NewAuthMiddleware(fakeVerifier{user: identity})
		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing or invalid authorization header")
	})

	t.Run("rejected token gets the generic message", func(t *testing.T) {
		t.Parallel()

		mw := NewAuthMiddleware(fakeVerifier{err: apierror.Authentication("invalid or expired token")})
		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer expired")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid or expired token")
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})
}
