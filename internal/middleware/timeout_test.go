package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestTimeout_SetsDeadline(t *testing.T) {
	var (
		hasDeadline bool
		remaining   time.Duration
	)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dl time.Time
		dl, hasDeadline = r.Context().Deadline()
		remaining = time.Until(dl)
	}), RequestTimeout(5*time.Second))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/games", nil))
	if !hasDeadline {
		t.Fatalf("expected a deadline on the request context")
	}
	if remaining <= 0 || remaining > 5*time.Second {
		t.Fatalf("unexpected remaining time %v", remaining)
	}
}

func TestRequestTimeout_ZeroDisables(t *testing.T) {
	var hasDeadline bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}), RequestTimeout(0))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/games", nil))
	if hasDeadline {
		t.Fatalf("expected no deadline when timeout is zero")
	}
}
