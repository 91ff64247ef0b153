package middleware

import (
	"net/http"

	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/response"
	"github.com/invictusops/invictus/pkg/session"
)

// Authenticator reports the logged-in user of a session.
type Authenticator interface {
	CurrentUser(sess *session.Session) (string, bool)
}

// RequireAuth admits requests whose session is logged in. When a bearer
// token is present it must be valid and name the same user and session.
// The user id is placed in the request context for auth.UserFromCtx.
//
// Wire it after the session middleware.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromCtx(r.Context())
			uid, ok := a.CurrentUser(sess)
			if !ok {
				response.Unauthorized(w)
				return
			}

			if raw, err := auth.BearerToken(r); err == nil {
				claims, err := auth.ValidateToken(raw)
				if err != nil || claims.UserID != uid || claims.SessionID != sess.ID() {
					logger.WithCtx(r.Context()).Info("rejected bearer token", "user_id", uid)
					response.Error(w, http.StatusUnauthorized, "Invalid token")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), uid)))
		})
	}
}
