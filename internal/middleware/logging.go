package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yitongOE/LessonData/internal/auth"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if fl, ok := w.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}

// result 优先使用底层 writer 自己记录的状态（gin 的 handler 直接写 c.Writer）。
func (w *statusWriter) result() (int, int64) {
	status, size := w.status, w.bytes
	if gw, ok := w.ResponseWriter.(interface {
		Status() int
		Size() int
	}); ok {
		if status == 0 {
			status = gw.Status()
		}
		if size == 0 && gw.Size() > 0 {
			size = int64(gw.Size())
		}
	}
	return status, size
}

type logActorKey struct{}

type logActor struct {
	mu sync.Mutex
	p  auth.Principal
	ok bool
}

// AnnotatePrincipal 让外层 AccessLog 记录鉴权后得到的操作人。
func AnnotatePrincipal(ctx context.Context, p auth.Principal) {
	la, _ := ctx.Value(logActorKey{}).(*logActor)
	if la == nil {
		return
	}
	la.mu.Lock()
	la.p, la.ok = p, true
	la.mu.Unlock()
}

// AccessLog 记录访问日志，不记录请求体与 Cookie。
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		la := &logActor{}
		r = r.WithContext(context.WithValue(r.Context(), logActorKey{}, la))
		start := time.Now()
		next.ServeHTTP(sw, r)
		lat := time.Since(start)

		var actor, role any
		la.mu.Lock()
		if la.ok {
			actor, role = la.p.Actor(), string(la.p.Role)
		}
		la.mu.Unlock()
		if actor == nil {
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				actor, role = p.Actor(), string(p.Role)
			}
		}
		status, size := sw.result()
		slog.Info("access",
			"request_id", GetRequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", size,
			"latency_ms", lat.Milliseconds(),
			"actor", actor,
			"role", role,
		)
	})
}
