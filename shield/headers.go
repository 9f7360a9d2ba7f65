package shield

import (
	"net/http"
	"time"
)

// HeaderConfig defines the headers applied to every response.
type HeaderConfig struct {
	PoweredBy           string
	XContentTypeOptions string
	XSSProtection       string
	DNSPrefetchControl  string
	ReferrerPolicy      string
	CacheControl        string
	Expires             time.Duration // Expires is set to now + this; zero skips it
}

// Version is the API version announced in X-Powered-By and rejection
// details.
const Version = "1.0"

// DefaultHeaders returns the BaaS header set. Debug servers say so in
// X-Powered-By.
func DefaultHeaders(debug bool) HeaderConfig {
	powered := "BaaS/" + Version
	if debug {
		powered += " (Debugmode)"
	}
	return HeaderConfig{
		PoweredBy:           powered,
		XContentTypeOptions: "nosniff",
		XSSProtection:       "1; mode=block",
		DNSPrefetchControl:  "off",
		ReferrerPolicy:      "no-referrer",
		CacheControl:        "no-cache",
		Expires:             10 * time.Second,
	}
}

// SecurityHeaders returns middleware that sets the configured headers on
// every response.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.PoweredBy != "" {
				h.Set("X-Powered-By", cfg.PoweredBy)
			}
			if cfg.XContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", cfg.XContentTypeOptions)
			}
			if cfg.XSSProtection != "" {
				h.Set("X-XSS-Protection", cfg.XSSProtection)
			}
			if cfg.DNSPrefetchControl != "" {
				h.Set("X-DNS-Prefetch-Control", cfg.DNSPrefetchControl)
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.CacheControl != "" {
				h.Set("Cache-Control", cfg.CacheControl)
			}
			if cfg.Expires > 0 {
				h.Set("Expires", time.Now().Add(cfg.Expires).UTC().Format(http.TimeFormat))
			}
			next.ServeHTTP(w, r)
		})
	}
}
