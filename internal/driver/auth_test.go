package driver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/driver"
)

func TestPasswordService(t *testing.T) {
	passwords := driver.NewPasswordService()

	t.Run("hash and verify round-trip", func(t *testing.T) {
		hash, err := passwords.HashPassword("correct horse battery staple")
		require.NoError(t, err)
		assert.Contains(t, hash, "$argon2id$")

		ok, err := passwords.VerifyPassword("correct horse battery staple", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password fails", func(t *testing.T) {
		hash, err := passwords.HashPassword("secret")
		require.NoError(t, err)

		ok, err := passwords.VerifyPassword("not-secret", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		h1, err := passwords.HashPassword("secret")
		require.NoError(t, err)
		h2, err := passwords.HashPassword("secret")
		require.NoError(t, err)

		assert.NotEqual(t, h1, h2)
	})

	t.Run("malformed hash is an error", func(t *testing.T) {
		_, err := passwords.VerifyPassword("secret", "not-a-hash")
		assert.Error(t, err)
	})
}

func TestJWTService(t *testing.T) {
	jwtService := driver.NewJWTService("test-secret", "ember", 1)

	t.Run("generate and validate", func(t *testing.T) {
		token, err := jwtService.GenerateToken()
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := jwtService.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Subject)
		assert.Equal(t, "ember", claims.Issuer)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		other := driver.NewJWTService("other-secret", "ember", 1)
		token, err := other.GenerateToken()
		require.NoError(t, err)

		_, err = jwtService.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := jwtService.ValidateToken("not.a.jwt")
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	jwtService := driver.NewJWTService("test-secret", "ember", 1)

	handler := jwtService.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Basic abc")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := jwtService.GenerateToken()
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
