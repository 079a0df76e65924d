package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/editor"
	"github.com/yitongOE/LessonData/internal/middleware"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/store"
)

func wrapHTTP(h http.Handler) gin.HandlerFunc {
	if h == nil {
		return func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		}
	}

	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "", "data": data})
}

// respondErr 把错误翻译为统一信封；资源不存在时返回 404。
func respondErr(c *gin.Context, err error) {
	status := http.StatusOK
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrNoSnapshot) || errors.Is(err, editor.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

func respondBadRequest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": "无效的参数"})
}

// recordChange 写审计并向变更订阅方广播；审计失败只记日志，不影响响应。
func recordChange(c *gin.Context, opts Options, action string, evType notify.EventType, target string, opErr error) {
	ctx := c.Request.Context()
	p := principal(c)
	in := store.AuditEventInput{
		RequestID: middleware.GetRequestID(ctx),
		ActorType: string(p.ActorType),
		Actor:     p.Actor(),
		Role:      string(p.Role),
		Action:    action,
		Target:    target,
		Status:    store.AuditStatusOK,
	}
	if opErr != nil {
		msg := opErr.Error()
		in.Status = store.AuditStatusFailed
		in.Detail = &msg
	}
	if opts.Store != nil {
		if err := opts.Store.InsertAuditEvent(context.WithoutCancel(ctx), in); err != nil {
			slog.Warn("写入审计事件失败", "action", action, "target", target, "err", err)
		}
	}
	if opErr == nil && opts.Feed != nil {
		opts.Feed.Publish(notify.Event{Type: evType, Target: target, Actor: p.Actor(), At: opts.now()})
	}
}
