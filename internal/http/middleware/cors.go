package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// OriginPolicy decides which browser origins may call the dashboard API
// and open the live socket. The dashboard's own host is always accepted.
type OriginPolicy struct {
	any     bool
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from CORS_ALLOWED_ORIGINS entries.
// A "*" entry accepts every origin.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return p
}

// Configured reports whether any cross-origin entry was given.
func (p OriginPolicy) Configured() bool {
	return p.any || len(p.allowed) > 0
}

// Allows reports whether origin may talk to a server reached as host.
// An empty origin is a non-browser client and is accepted.
func (p OriginPolicy) Allows(origin, host string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" || p.any {
		return true
	}
	if _, ok := p.allowed[strings.ToLower(origin)]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// CheckRequest adapts the policy to websocket.Upgrader.CheckOrigin.
func (p OriginPolicy) CheckRequest(r *http.Request) bool {
	return p.Allows(r.Header.Get("Origin"), r.Host)
}

const (
	corsMethods = "GET, POST, PUT, OPTIONS"
	corsHeaders = "Content-Type, X-Request-ID"
	corsMaxAge  = 600
)

// CORS echoes accepted origins back and answers their preflights.
// Preflights from rejected origins get 403 without reaching the router.
func CORS(policy OriginPolicy) func(http.Handler) http.Handler {
	maxAge := strconv.Itoa(corsMaxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")

			allowed := policy.Allows(origin, r.Host)
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
