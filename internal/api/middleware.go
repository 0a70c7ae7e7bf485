package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-notepad/internal/auth"
	"github.com/npezzotti/go-notepad/internal/stats"
)

func (s *NotepadApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Errorf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *NotepadApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(tokenCookieKey)
		if err != nil {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		identity, err := s.tokens.Parse(tokenCookie.Value)
		if err != nil {
			s.log.Debugf("failed to parse session token: %v", err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := auth.WithIdentity(r.Context(), identity)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

// notepadAccess rejects sessions bound to a notepad other than {id}.
func (s *NotepadApp) notepadAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFrom(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if identity.NotepadId != r.PathValue("id") {
			errResp := NewForbiddenError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r)
	}
}

// trustedProxyHeaders takes the client address from X-Forwarded-For or
// X-Real-IP only when the connecting peer is a trusted proxy. Other requests
// keep the peer address.
func (s *NotepadApp) trustedProxyHeaders(next http.Handler) http.Handler {
	proxied := handlers.ProxyHeaders(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.fromTrustedProxy(r) {
			proxied.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *NotepadApp) fromTrustedProxy(r *http.Request) bool {
	addr, err := netip.ParseAddr(clientIP(r))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// rateLimit throttles requests per client address.
func (s *NotepadApp) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)

		allowed, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.log.Errorf("rate limit check for %s: %v", key, err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if !allowed {
			s.stats.Incr(stats.LoginRejected)
			w.Header().Set("Retry-After", "1")
			errResp := NewTooManyRequestsError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.stats.Incr(stats.LoginAllowed)

		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
