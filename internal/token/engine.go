package token

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-auth-gateway/internal/clock"
	"go-auth-gateway/internal/model"
)

// Engine issues and verifies compact signed identity tokens. Tokens are
// stateless: there is no server-side revocation path.
type Engine struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

func NewEngine(secret string, issuer string, ttl time.Duration, clk clock.Clock) (*Engine, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.System()
	}

	return &Engine{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  clk,
	}, nil
}

// TTL is the configured token lifetime.
func (e *Engine) TTL() time.Duration { return e.ttl }

// Issue signs a token carrying the subject identity claims.
func (e *Engine) Issue(subjectID string, username string) (string, error) {
	now := e.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      subjectID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(e.ttl).Unix(),
		"iss":      e.issuer,
	})

	signed, err := token.SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns its identity claims.
// Every failure (bad signature, expired, issuer mismatch, malformed
// payload) surfaces as model.ErrInvalidToken; the distinction is logged at
// debug level only so the response never acts as an oracle on token
// structure.
func (e *Engine) Verify(raw string) (model.TokenClaims, error) {
	parsed, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return e.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(e.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(e.clock.Now),
	)
	if err != nil || !parsed.Valid {
		slog.Debug("token verification failed", "error", err)
		return model.TokenClaims{}, model.ErrInvalidToken
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		slog.Debug("token verification failed", "error", "claims are not a map")
		return model.TokenClaims{}, model.ErrInvalidToken
	}

	subject, _ := claimsMap["sub"].(string)
	username, _ := claimsMap["username"].(string)
	if subject == "" {
		slog.Debug("token verification failed", "error", "missing subject claim")
		return model.TokenClaims{}, model.ErrInvalidToken
	}

	claims := model.TokenClaims{SubjectID: subject, Username: username}
	if iat, iatErr := claimsMap.GetIssuedAt(); iatErr == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}
