package session

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// NewContext attaches a session to the context. Handlers normally receive it
// via Middleware; tests use it directly.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session, or nil when the middleware did
// not run.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok {
		return s
	}
	return nil
}

// Middleware loads the visitor's session from the cookie, injects it into the
// request context and persists it after the handler when it was mutated. The
// cookie is issued up front for fresh sessions so the id is stable before the
// handler writes the response.
func Middleware(store *Store, cookieName string, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = "session_id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookieName); err == nil {
				id = c.Value
			}
			sess, err := store.Load(r.Context(), id)
			if err != nil {
				logger.Error().Err(err).Msg("session load failed")
				sess = newSession(id, true)
			}
			if sess.Fresh() {
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sess.ID,
					Path:     "/",
					MaxAge:   int(ttl / time.Second),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))

			if sess.Dirty() {
				if err := store.Save(r.Context(), sess); err != nil {
					logger.Error().Err(err).Str("session_id", sess.ID).Msg("session save failed")
				}
			}
		})
	}
}
