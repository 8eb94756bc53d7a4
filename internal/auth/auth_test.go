package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotodrive/internal/domain"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestResolveSession(t *testing.T) {
	Init("test-secret")

	t.Run("valid token", func(t *testing.T) {
		signed := signToken(t, "test-secret", jwt.MapClaims{
			"sub":  "u1",
			"role": "ADMIN",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest("GET", "/v1/folders/1", nil)
		r.Header.Set("Authorization", "Bearer "+signed)

		actor := ResolveSession(r)
		assert.True(t, actor.IsAuthenticated())
		assert.Equal(t, "u1", actor.UserID)
		assert.Equal(t, domain.RoleAdmin, actor.Role)
	})

	t.Run("role defaults to USER", func(t *testing.T) {
		signed := signToken(t, "test-secret", jwt.MapClaims{
			"sub": "u2",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signed)

		actor := ResolveSession(r)
		assert.Equal(t, domain.RoleUser, actor.Role)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		assert.Equal(t, domain.Anonymous, ResolveSession(r))
	})

	t.Run("expired token", func(t *testing.T) {
		signed := signToken(t, "test-secret", jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		assert.Equal(t, domain.Anonymous, ResolveSession(r))
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed := signToken(t, "other-secret", jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		assert.Equal(t, domain.Anonymous, ResolveSession(r))
	})

	t.Run("missing sub claim", func(t *testing.T) {
		signed := signToken(t, "test-secret", jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		assert.Equal(t, domain.Anonymous, ResolveSession(r))
	})
}

func TestRequireUser(t *testing.T) {
	Init("test-secret")

	t.Run("anonymous rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		_, err := RequireUser(r)
		assert.Error(t, err)
	})

	t.Run("authenticated", func(t *testing.T) {
		signed := signToken(t, "test-secret", jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signed)

		userID, err := RequireUser(r)
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)
	})
}
