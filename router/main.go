package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/middleware"
)

func SetRouter(r *gin.Engine, opts Options) {
	setSystemRoutes(r, opts)

	api := r.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ws"})))
	api.Use(middleware.Gin(
		middleware.RequestID,
		middleware.AccessLog,
		middleware.MaxBytes(opts.MaxBodyBytes),
		middleware.RequestTimeout(opts.RequestTimeout),
	))
	setUserAPIRoutes(api, opts)
	setMarketplaceAPIRoutes(api, opts)
	setEditorAPIRoutes(api, opts)
	setGamesAPIRoutes(api, opts)
	setAdminsAPIRoutes(api, opts)
	setSafetyAPIRoutes(api, opts)
	setAuditAPIRoutes(api, opts)
	setFeedRoutes(api, opts)

	setWebSPARoutes(r, opts)
}
