package shield

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(DefaultHeaders(false))(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/row.get/users", nil))

	want := map[string]string{
		"X-Powered-By":           "BaaS/1.0",
		"X-Content-Type-Options": "nosniff",
		"X-XSS-Protection":       "1; mode=block",
		"X-DNS-Prefetch-Control": "off",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-cache",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}

	exp, err := http.ParseTime(w.Header().Get("Expires"))
	if err != nil {
		t.Fatalf("Expires: %v", err)
	}
	if d := time.Until(exp); d < 0 || d > 11*time.Second {
		t.Errorf("Expires %v is not about 10s ahead", exp)
	}
}

func TestSecurityHeaders_Debug(t *testing.T) {
	handler := SecurityHeaders(DefaultHeaders(true))(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", nil))
	if got := w.Header().Get("X-Powered-By"); got != "BaaS/1.0 (Debugmode)" {
		t.Fatalf("X-Powered-By: %q", got)
	}
}

func TestMaxFormBody(t *testing.T) {
	handler := MaxFormBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range []struct {
		ctype string
		body  string
		want  int
	}{
		{"application/x-www-form-urlencoded", "a=1", http.StatusOK},
		{"application/x-www-form-urlencoded", "JSON=" + strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
		{"application/x-www-form-urlencoded; charset=UTF-8", "JSON=" + strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
		{"text/plain", strings.Repeat("x", 64), http.StatusOK},
	} {
		req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", tt.ctype)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s (%d bytes): got %d, want %d", tt.ctype, len(tt.body), w.Code, tt.want)
		}
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	handler := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("HEAD", "/healthz", nil))
	if method != http.MethodGet {
		t.Fatalf("method: %s", method)
	}
}

func TestTraceID(t *testing.T) {
	var traceID string
	var logger bool
	handler := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		_, logger = r.Context().Value(LoggerKey).(*slog.Logger)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", nil))

	if len(traceID) != 8 {
		t.Fatalf("trace id %q", traceID)
	}
	if w.Header().Get("X-Trace-ID") != traceID {
		t.Fatal("header and context disagree")
	}
	if !logger {
		t.Fatal("no logger")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		trust  bool
		remote string
		xff    string
		want   string
	}{
		{false, "192.0.2.1:5555", "", "192.0.2.1"},
		{false, "192.0.2.1:5555", "203.0.113.9", "192.0.2.1"},
		{true, "192.0.2.1:5555", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{true, "192.0.2.1:5555", "garbage", "192.0.2.1"},
		{true, "[2001:db8::1]:443", "", "2001:db8::1"},
		{false, "pipe", "", "pipe"},
	}
	for _, tt := range tests {
		var got string
		handler := ClientIP(tt.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = kit.GetClientIP(r.Context())
		}))
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = tt.remote
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("trust=%v remote=%q xff=%q: got %q, want %q", tt.trust, tt.remote, tt.xff, got, tt.want)
		}
	}
}

func TestFallback_Off(t *testing.T) {
	fb := NewFallback(false)
	w := httptest.NewRecorder()
	fb.Middleware(okHandler()).ServeHTTP(w, httptest.NewRequest("POST", "/row.get/users", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestFallback_On(t *testing.T) {
	fb := NewFallback(false, "/healthz")
	fb.Set(fault.Configf("No database type is selected").WithFix("Please select a database type!"))

	handler := fb.Middleware(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/row.get/users", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["Status"] != "Failed" || body["Error"] != "No database type is selected" || body["Fix"] != "Please select a database type!" {
		t.Fatalf("body: %v", body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type: %q", ct)
	}

	// Excluded prefixes are served.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
}

func TestFallback_Toggle(t *testing.T) {
	fb := NewFallback(false)
	fb.Set(errors.New("boom"))
	if !fb.Active() || fb.Err().Kind != fault.Driver {
		t.Fatalf("plain error not wrapped: %v", fb.Err())
	}
	fb.Set(nil)
	if fb.Active() {
		t.Fatal("still active after clear")
	}
}

func TestFallback_Reloader(t *testing.T) {
	fb := NewFallback(false)
	fb.Set(fault.Configf("broken"))

	done := make(chan struct{})
	defer close(done)
	fb.StartReloader(done, 5*time.Millisecond, func() error { return nil })

	deadline := time.Now().Add(2 * time.Second)
	for fb.Active() {
		if time.Now().After(deadline) {
			t.Fatal("reloader did not clear the fallback")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStack(t *testing.T) {
	fb := NewFallback(false)
	var h http.Handler = okHandler()
	stack := Stack(false, false, 1024, fb)
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/", nil))
	if w.Code != http.StatusOK || w.Header().Get("X-Powered-By") == "" || w.Header().Get("X-Trace-ID") == "" {
		t.Fatalf("stack not applied: %d %v", w.Code, w.Header())
	}
	if len(Stack(false, false, 0, nil)) != 5 {
		t.Fatal("nil fallback should be skipped")
	}
}
