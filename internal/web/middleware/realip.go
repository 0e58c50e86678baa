package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// TrustedRealIP rewrites r.RemoteAddr from X-Real-IP or the first
// X-Forwarded-For entry, but only for connections from a trusted proxy.
// Other clients keep their connection address, so forwarded headers cannot
// be spoofed to hide who ran a validation.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trusted := parseTrustedNets(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 && contains(trusted, hostIP(r.RemoteAddr)) {
				if ip := forwardedIP(r.Header); ip != nil {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseTrustedNets accepts CIDRs and bare IPs; invalid entries are logged and skipped.
func parseTrustedNets(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil && ip.To4() != nil {
				e += "/32"
			} else {
				e += "/128"
			}
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "entry", e, "error", err)
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

// forwardedIP returns the client IP announced by a proxy, or nil.
func forwardedIP(h http.Header) net.IP {
	if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
		return net.ParseIP(rip)
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return net.ParseIP(strings.TrimSpace(first))
	}
	return nil
}

func hostIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
