// Package api implements the Brain Reset HTTP API using chi.
package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/starford/brainreset/internal/apperr"
)

// Headers a browser client may send with a brain reset request.
const corsAllowHeaders = "authorization, x-client-info, apikey, content-type, x-request-id"

// AuthMiddleware returns middleware that validates the internal API key.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry the key in the "apikey" header or
// as "Authorization: Bearer <key>". Preflight requests are never checked.
func AuthMiddleware(enabled bool, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !keyMatches(presentedKey(r), key) {
				writeJSON(w, http.StatusUnauthorized, errorBody(apperr.MsgUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request) string {
	if k := r.Header.Get("apikey"); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func keyMatches(got, want string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// CORSPolicy decides Access-Control-Allow-Origin per request. It is safe
// for concurrent use and can be replaced at runtime with Update.
type CORSPolicy struct {
	rules atomic.Pointer[corsRules]
}

type corsRules struct {
	primary  string
	exact    map[string]struct{}
	suffixes []string
}

// NewCORSPolicy creates a policy from exact origins and host suffixes such
// as ".lovable.app". The first origin answers unrecognized requests.
func NewCORSPolicy(origins, suffixes []string) *CORSPolicy {
	p := &CORSPolicy{}
	p.Update(origins, suffixes)
	return p
}

// Update atomically replaces the allow-list.
func (p *CORSPolicy) Update(origins, suffixes []string) {
	rules := &corsRules{
		exact:    make(map[string]struct{}, len(origins)),
		suffixes: append([]string(nil), suffixes...),
	}
	for i, o := range origins {
		o = strings.TrimRight(o, "/")
		if i == 0 {
			rules.primary = o
		}
		rules.exact[o] = struct{}{}
	}
	p.rules.Store(rules)
}

// AllowOrigin returns the value for Access-Control-Allow-Origin.
func (p *CORSPolicy) AllowOrigin(origin string) string {
	rules := p.rules.Load()
	if origin == "" {
		return rules.primary
	}
	if _, ok := rules.exact[origin]; ok {
		return origin
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return rules.primary
	}
	host := u.Hostname()
	for _, s := range rules.suffixes {
		if strings.HasSuffix(host, s) && len(host) > len(s) {
			return origin
		}
	}
	return rules.primary
}

// Middleware sets the CORS headers and answers preflight requests with 204.
func (p *CORSPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", p.AllowOrigin(r.Header.Get("Origin")))
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP identifies the caller for rate limiting. Forwarding headers are
// consulted only when trustProxy is set; otherwise the key is the host of
// the connection's remote address.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
