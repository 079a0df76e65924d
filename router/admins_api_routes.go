package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/paging"
	"github.com/yitongOE/LessonData/internal/store"
)

func setAdminsAPIRoutes(r gin.IRoutes, opts Options) {
	adminPanel := requirePermission(auth.PermAdminPanel)
	r.GET("/admins", requireUserSession(opts), adminPanel, adminsListHandler(opts))
	r.PUT("/admins", requireUserSession(opts), adminPanel, adminsSaveHandler(opts))
}

func adminsListHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := opts.Admins.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		if list == nil {
			list = []admins.Account{}
		}
		page, size := paging.ParseParams(c.Query("page"), c.Query("page_size"))
		respondOK(c, paging.Paginate(list, page, size))
	}
}

// adminsSaveHandler 整表覆盖 AdminData.csv。
func adminsSaveHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var accounts []admins.Account
		if err := c.ShouldBindJSON(&accounts); err != nil {
			respondBadRequest(c)
			return
		}
		err := opts.Admins.Save(c.Request.Context(), accounts)
		obs.RecordSave("admins", err)
		recordChange(c, opts, store.AuditActionAdminsSet, notify.EventAdminsSet, admins.Path, err)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, accounts)
	}
}
