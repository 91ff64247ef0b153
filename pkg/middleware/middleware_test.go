package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/cache"
	"github.com/invictusops/invictus/pkg/middleware"
	"github.com/invictusops/invictus/pkg/session"
)

type fixedAuth struct {
	uid string
	ok  bool
}

func (f fixedAuth) CurrentUser(*session.Session) (string, bool) { return f.uid, f.ok }

func protected(a middleware.Authenticator) http.Handler {
	return middleware.RequireAuth(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := auth.UserFromCtx(r.Context())
		w.Write([]byte(uid))
	}))
}

func TestRequireAuth(t *testing.T) {
	mgr := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	sess := mgr.New()
	withSession := func(req *http.Request) *http.Request {
		return req.WithContext(session.WithSession(req.Context(), sess))
	}

	t.Run("anonymous session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected(fixedAuth{}).ServeHTTP(rec, withSession(httptest.NewRequest("GET", "/", nil)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logged in", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected(fixedAuth{uid: "u1", ok: true}).ServeHTTP(rec, withSession(httptest.NewRequest("GET", "/", nil)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("token for another session", func(t *testing.T) {
		tok, _ := auth.GenerateToken("u1", "other")
		req := withSession(httptest.NewRequest("GET", "/", nil))
		req.Header.Set("Authorization", "Bearer "+tok)

		rec := httptest.NewRecorder()
		protected(fixedAuth{uid: "u1", ok: true}).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("matching token", func(t *testing.T) {
		tok, _ := auth.GenerateToken("u1", sess.ID())
		req := withSession(httptest.NewRequest("GET", "/", nil))
		req.Header.Set("Authorization", "Bearer "+tok)

		rec := httptest.NewRecorder()
		protected(fixedAuth{uid: "u1", ok: true}).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLimiter(t *testing.T) {
	l := middleware.NewLimiter(2, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.5:5123"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{204, 204, 429}, codes)
	assert.True(t, l.Allow("10.0.0.6"))
	assert.Zero(t, l.Sweep())
}

func TestLimiterSweep(t *testing.T) {
	l := middleware.NewLimiter(1, time.Millisecond)
	l.Allow("a")
	l.Allow("b")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, l.Sweep())
	assert.True(t, l.Allow("a"))
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: []string{"https://ops.example.com"},
		AllowedMethods: []string{"GET", "POST"},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/inventory", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
