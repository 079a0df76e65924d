package router

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/auth"
)

func setAuditAPIRoutes(r gin.IRoutes, opts Options) {
	r.GET("/audit", requireUserSession(opts), requirePermission(auth.PermAdminPanel), auditListHandler(opts))
}

func auditListHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		events, err := opts.Store.ListAuditEvents(c.Request.Context(), limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, events)
	}
}
