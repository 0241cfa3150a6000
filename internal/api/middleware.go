package api

import (
	"context"
	"net"
	"net/http"

	"github.com/amirk1998/daybook/internal/session"
	"github.com/amirk1998/daybook/pkg/errors"
)

type ctxKeySession struct{}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxKeySession{}, s)
}

// sessionFrom returns the session attached by requireAuth.
func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxKeySession{}).(*session.Session)
	return s
}

func userIDFrom(ctx context.Context) int {
	if s := sessionFrom(ctx); s != nil {
		return s.UserID
	}
	return 0
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(r)
		if err != nil {
			fail(w, r, errors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// requireDiaryUnlocked must run inside requireAuth.
func (s *Server) requireDiaryUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil {
			fail(w, r, errors.ErrUnauthorized)
			return
		}
		if !s.diary.IsUnlocked(sess) {
			fail(w, r, errors.ErrDiaryLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the per-client request budget, keyed by address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow("ip:" + host) {
			fail(w, r, errors.ErrRateLimitExceeded)
			return
		}
		next.ServeHTTP(w, r)
	})
}
