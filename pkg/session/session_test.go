package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/pkg/cache"
	"github.com/invictusops/invictus/pkg/session"
)

func TestSaveAndReload(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(cache.NewMemory(), session.DefaultOptions())

	s := m.New()
	s.Set(session.KeyLastReminderDate, "2024-03-12")
	rec := httptest.NewRecorder()
	require.NoError(t, s.Save(ctx, rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "invictus_session", cookies[0].Name)
	assert.Equal(t, s.ID(), cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	again, err := m.Load(ctx, s.ID())
	require.NoError(t, err)
	v, ok := again.GetString(session.KeyLastReminderDate)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-12", v)
}

func TestSaveUnchangedWritesNothing(t *testing.T) {
	m := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	s, err := m.Load(context.Background(), "unknown")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, s.Save(context.Background(), rec))
	assert.Empty(t, rec.Result().Cookies())
}

func TestRegenerateDropsOldID(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	m := session.NewManager(store, session.DefaultOptions())

	s := m.New()
	s.Set(session.KeyAuthenticatedUser, "u1")
	require.NoError(t, s.Save(ctx, nil))
	old := s.ID()

	require.NoError(t, s.Regenerate(ctx))
	require.NoError(t, s.Save(ctx, nil))
	assert.NotEqual(t, old, s.ID())

	stale, err := m.Load(ctx, old)
	require.NoError(t, err)
	_, ok := stale.Get(session.KeyAuthenticatedUser)
	assert.False(t, ok)

	fresh, err := m.Load(ctx, s.ID())
	require.NoError(t, err)
	uid, _ := fresh.GetString(session.KeyAuthenticatedUser)
	assert.Equal(t, "u1", uid)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(cache.NewMemory(), session.DefaultOptions()).
		WithResolver(func(r *http.Request) (string, bool) {
			id := r.Header.Get("X-Session")
			return id, id != ""
		})

	stored := m.New()
	stored.Set(session.KeyAuthenticatedUser, "u7")
	require.NoError(t, stored.Save(ctx, nil))

	var seen *session.Session
	h := m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = session.FromCtx(r.Context())
	}))

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "invictus_session", Value: stored.ID()})
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, seen)
		assert.Equal(t, stored.ID(), seen.ID())
	})

	t.Run("resolver", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session", stored.ID())
		h.ServeHTTP(httptest.NewRecorder(), req)
		uid, _ := seen.GetString(session.KeyAuthenticatedUser)
		assert.Equal(t, "u7", uid)
	})

	t.Run("anonymous", func(t *testing.T) {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotNil(t, seen)
		assert.NotEqual(t, stored.ID(), seen.ID())
		_, ok := seen.Get(session.KeyAuthenticatedUser)
		assert.False(t, ok)
	})
}
