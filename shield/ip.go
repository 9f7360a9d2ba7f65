package shield

import (
	"net"
	"net/http"
	"strings"

	"github.com/hazyhaar/baas/kit"
)

// ExtractIP returns the address of the peer that opened the connection.
func ExtractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIP returns the first address in X-Forwarded-For, or ExtractIP
// when the header is absent or unparsable. Only trust it behind a proxy
// that overwrites the header.
func ForwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return ExtractIP(r)
}

// ClientIP stores the client address under kit.ClientIPKey. With
// trustForwarded the address comes from X-Forwarded-For.
func ClientIP(trustForwarded bool) func(http.Handler) http.Handler {
	extract := ExtractIP
	if trustForwarded {
		extract = ForwardedIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := kit.WithClientIP(r.Context(), extract(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
