package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/invictusops/invictus/pkg/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := auth.GenerateToken("u1", "sess-1")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestValidateToken_RejectsTampered(t *testing.T) {
	tok, err := auth.GenerateToken("u1", "sess-1")
	require.NoError(t, err)

	_, err = auth.ValidateToken(tok + "x")
	assert.Error(t, err)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{UserID: "u1", SessionID: "s"})
	forged, err := other.SignedString([]byte("not-the-secret"))
	require.NoError(t, err)
	_, err = auth.ValidateToken(forged)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, err := auth.BearerToken(r)
	assert.ErrorIs(t, err, auth.ErrNoToken)

	r.Header.Set("Authorization", "Bearer abc")
	tok, err := auth.BearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestBcrypt(t *testing.T) {
	h := auth.Bcrypt{Cost: bcrypt.MinCost}
	hash, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.True(t, h.Verify(hash, "password123"))
	assert.False(t, h.Verify(hash, "password124"))
	assert.False(t, h.Verify("", ""))
}

func TestSessionResolver(t *testing.T) {
	tok, err := auth.GenerateToken("u1", "sess-9")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/views/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	sid, ok := auth.SessionResolver(req)
	assert.True(t, ok)
	assert.Equal(t, "sess-9", sid)

	req.Header.Set("Authorization", "Bearer junk")
	_, ok = auth.SessionResolver(req)
	assert.False(t, ok)
}

func TestUserContext(t *testing.T) {
	_, ok := auth.UserFromCtx(context.Background())
	assert.False(t, ok)

	id, ok := auth.UserFromCtx(auth.WithUser(context.Background(), "u7"))
	assert.True(t, ok)
	assert.Equal(t, "u7", id)
}
