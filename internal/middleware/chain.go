// Package middleware 提供 net/http 中间件链，以及把链挂到 gin 上的适配。
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Gin 把中间件链转换为 gin 中间件：链放行时继续执行后续 handler，链拦截时中止。
func Gin(mws ...Middleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		Chain(next, mws...).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
