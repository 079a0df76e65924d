package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func setFeedRoutes(r gin.IRoutes, opts Options) {
	r.GET("/ws", feedUserHeader(), requireUserSession(opts), feedHandler(opts))
}

// feedUserHeader 浏览器的 WebSocket 握手无法携带自定义 header，前端以 ?user=<id> 传递。
func feedUserHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(UserHeader) == "" {
			if v := strings.TrimSpace(c.Query("user")); v != "" {
				c.Request.Header.Set(UserHeader, v)
			}
		}
		c.Next()
	}
}

func feedHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Feed == nil {
			c.Status(http.StatusNotFound)
			return
		}
		actor := principal(c).Actor()
		release, ok := opts.FeedLimits.Acquire(actor)
		if !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "推送连接数已达上限"})
			return
		}
		if err := opts.Feed.ServeWS(c.Writer, c.Request, actor, release); err != nil {
			slog.Debug("推送连接升级失败", "err", err)
		}
	}
}
