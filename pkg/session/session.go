// Package session keeps per-browser state in the cache: the login state
// machine, the authenticated user and the reminder dismissal date.
//
// The session id travels in a cookie for browsers. API clients holding a
// bearer token are mapped to the session named in the token instead.
//
//	mgr := session.NewManager(store, session.DefaultOptions())
//	r.Use(mgr.Middleware)
//
//	sess := session.FromCtx(r.Context())
//	sess.Set(session.KeyLastReminderDate, "2024-03-10")
//	_ = sess.Save(r.Context(), w)
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/invictusops/invictus/pkg/cache"
	"github.com/invictusops/invictus/pkg/logger"
)

// Keys stored in every session.
const (
	KeyGate              = "gate"
	KeyAuthenticatedUser = "authenticatedUser"
	KeyLastReminderDate  = "lastReminderDate"
)

// Options configures the cookie and lifetime.
type Options struct {
	CookieName string
	TTL        time.Duration
	HTTPOnly   bool
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

func DefaultOptions() Options {
	return Options{
		CookieName: "invictus_session",
		TTL:        30 * 24 * time.Hour,
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

// Resolver maps a request without a cookie to a session id.
type Resolver func(r *http.Request) (string, bool)

// Manager loads and saves sessions.
type Manager struct {
	store    cache.Store
	opts     Options
	resolver Resolver
}

func NewManager(store cache.Store, opts Options) *Manager {
	return &Manager{store: store, opts: opts}
}

// WithResolver installs a fallback lookup, typically the bearer token.
func (m *Manager) WithResolver(fn Resolver) *Manager {
	m.resolver = fn
	return m
}

// Session is the in-request handle.
type Session struct {
	id      string
	data    map[string]any
	mgr     *Manager
	changed bool
}

func newID() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func cacheKey(id string) string { return "invictus:session:" + id }

// Load fetches id, returning an empty session with that id on a miss.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	s := &Session{id: id, data: map[string]any{}, mgr: m}
	err := m.store.Get(ctx, cacheKey(id), &s.data)
	if errors.Is(err, cache.ErrMiss) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if s.data == nil {
		s.data = map[string]any{}
	}
	return s, nil
}

// New starts an empty session with a fresh id.
func (m *Manager) New() *Session {
	return &Session{id: newID(), data: map[string]any{}, mgr: m, changed: true}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.changed = true
}

func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.data[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.changed = true
	}
}

// Regenerate moves the data to a new id and drops the old one. Called when
// the session becomes authenticated.
func (s *Session) Regenerate(ctx context.Context) error {
	old := s.id
	s.id = newID()
	s.changed = true
	return s.mgr.store.Del(ctx, cacheKey(old))
}

// Save persists the session and, when w is non-nil, refreshes the cookie.
func (s *Session) Save(ctx context.Context, w http.ResponseWriter) error {
	if !s.changed {
		return nil
	}
	if err := s.mgr.store.Set(ctx, cacheKey(s.id), s.data, s.mgr.opts.TTL); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     s.mgr.opts.CookieName,
			Value:    s.id,
			Path:     s.mgr.opts.Path,
			MaxAge:   int(s.mgr.opts.TTL.Seconds()),
			HttpOnly: s.mgr.opts.HTTPOnly,
			Secure:   s.mgr.opts.Secure,
			SameSite: s.mgr.opts.SameSite,
		})
	}
	s.changed = false
	return nil
}

type ctxKey struct{}

// Middleware loads the session for every request. Sessions that cannot be
// loaded are replaced by a fresh one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := ""
		if c, err := r.Cookie(m.opts.CookieName); err == nil && c.Value != "" {
			id = c.Value
		} else if m.resolver != nil {
			if rid, ok := m.resolver(r); ok {
				id = rid
			}
		}

		var sess *Session
		if id != "" {
			loaded, err := m.Load(ctx, id)
			if err != nil {
				logger.WithCtx(ctx).Warn("session load failed", "error", err)
			} else {
				sess = loaded
			}
		}
		if sess == nil {
			sess = m.New()
			sess.changed = false
		}

		next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
	})
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromCtx returns the request session, or nil outside the middleware.
func FromCtx(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
