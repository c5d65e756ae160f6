package security

import (
	"net"
	"net/http"
	"sync/atomic"
)

// LoopbackGuard rejects requests that do not originate on this machine.
// The register API is local only.
type LoopbackGuard struct {
	rejected atomic.Int64
}

func NewLoopbackGuard() *LoopbackGuard {
	return &LoopbackGuard{}
}

// ClientIP returns the direct peer address. Forwarding headers are ignored
// because no proxy sits in front of a loopback listener.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsLoopback reports whether ip is a loopback address.
func IsLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

func (g *LoopbackGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsLoopback(ClientIP(r)) {
			g.rejected.Add(1)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Rejected returns how many requests were refused.
func (g *LoopbackGuard) Rejected() int64 {
	return g.rejected.Load()
}
