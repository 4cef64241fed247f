package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-gateway/internal/clock"
	"go-auth-gateway/internal/model"
)

func newTestEngine(t *testing.T, clk clock.Clock) *Engine {
	t.Helper()

	engine, err := NewEngine("test-secret", "auth-gateway", time.Hour, clk)
	require.NoError(t, err)
	return engine
}

func TestEngine_IssueAndVerify(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(t, clk)

	raw, err := engine.Issue("user-1", "alice01")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := engine.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, "alice01", claims.Username)
	assert.Equal(t, clk.Now().Unix(), claims.IssuedAt.Unix())
}

func TestEngine_VerifyIsIdempotent(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(t, clk)

	raw, err := engine.Issue("user-1", "alice01")
	require.NoError(t, err)

	first, err := engine.Verify(raw)
	require.NoError(t, err)
	second, err := engine.Verify(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_VerifyFailures(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(t, clk)

	t.Run("expired token", func(t *testing.T) {
		raw, err := engine.Issue("user-1", "alice01")
		require.NoError(t, err)

		expiredClk := clock.NewFake(clk.Now().Add(2 * time.Hour))
		late := newTestEngine(t, expiredClk)

		_, err = late.Verify(raw)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewEngine("other-secret", "auth-gateway", time.Hour, clk)
		require.NoError(t, err)

		raw, err := other.Issue("user-1", "alice01")
		require.NoError(t, err)

		_, err = engine.Verify(raw)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		other, err := NewEngine("test-secret", "someone-else", time.Hour, clk)
		require.NoError(t, err)

		raw, err := other.Issue("user-1", "alice01")
		require.NoError(t, err)

		_, err = engine.Verify(raw)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := engine.Verify("not.a.token")
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		raw, err := engine.Issue("user-1", "alice01")
		require.NoError(t, err)

		tampered := raw[:len(raw)-4] + "AAAA"
		_, err = engine.Verify(tampered)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})
}

func TestNewEngine_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewEngine("  ", "auth-gateway", time.Hour, nil)
	assert.Error(t, err)
}
