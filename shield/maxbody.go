package shield

import (
	"mime"
	"net/http"
)

// MaxFormBody returns middleware that limits the request body size for
// form-encoded requests. Other content types are passed through. A
// non-positive limit disables the check.
func MaxFormBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if maxBytes > 0 && mt == "application/x-www-form-urlencoded" {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
