package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/playperu/pubconquest/internal/conquest"
)

type ctxKey int

const (
	ctxKeyPlayer ctxKey = iota
	ctxKeyAdmin
)

const adminCookieName = "admin_session"

func bearerToken(r *http.Request) string {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// playerAuthMiddleware resolves the Bearer token to a player. Stream
// endpoints cannot set headers from a browser, so ?token= is accepted too.
func playerAuthMiddleware(d *deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
				return
			}

			player, err := d.store.PlayerByToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyPlayer, player)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminAuthMiddleware(d *deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(adminCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
				return
			}

			if err := d.store.AdminSession(r.Context(), cookie.Value); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, cookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func playerFrom(r *http.Request) conquest.Player {
	return r.Context().Value(ctxKeyPlayer).(conquest.Player)
}

func adminSessionFrom(r *http.Request) string {
	return r.Context().Value(ctxKeyAdmin).(string)
}

// submitLimiter throttles capture and challenge submissions per player.
type submitLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newSubmitLimiter(perMinute int) *submitLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &submitLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(1, perMinute/6),
		limiters: make(map[string]*limiterEntry),
	}
}

func (s *submitLimiter) allow(playerID string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.limiters[playerID]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[playerID] = e
	}
	e.seen = now

	// Forget players that have been idle for a while.
	if len(s.limiters) > 1024 {
		for id, old := range s.limiters {
			if now.Sub(old.seen) > 10*time.Minute {
				delete(s.limiters, id)
			}
		}
	}
	return e.lim.AllowN(now, 1)
}

// rateLimitMiddleware must run after playerAuthMiddleware.
func rateLimitMiddleware(l *submitLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(playerFrom(r).ID) {
				w.Header().Set("Retry-After", "10")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many submissions, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
