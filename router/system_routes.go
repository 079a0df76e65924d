package router

import (
	"expvar"

	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/middleware"
)

func setSystemRoutes(r *gin.Engine, opts Options) {
	if opts.Healthz != nil {
		r.GET("/healthz", wrapHTTP(opts.Healthz))
	}
	r.GET("/debug/vars",
		requireUserSession(opts),
		wrapHTTP(middleware.Chain(expvar.Handler(), middleware.RequirePermission(auth.PermAdminPanel))),
	)
}
