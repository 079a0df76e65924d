package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/games"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/paging"
	"github.com/yitongOE/LessonData/internal/store"
)

type gameView struct {
	games.Game
	Display []games.LevelText `json:"display"`
}

func setGamesAPIRoutes(r gin.IRoutes, opts Options) {
	r.GET("/games", requireUserSession(opts), gamesListHandler(opts))
	r.PUT("/games/:key", requireUserSession(opts), requirePermission(auth.PermEdit), gamesSaveHandler(opts))
}

func gamesListHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := opts.Games.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		views := make([]gameView, 0, len(list))
		for _, g := range list {
			views = append(views, gameView{Game: g, Display: g.DisplayContent()})
		}
		page, size := paging.ParseParams(c.Query("page"), c.Query("page_size"))
		respondOK(c, paging.Paginate(views, page, size))
	}
}

// gamesSaveHandler 以路径中的 key 为准，忽略请求体里的 key。
func gamesSaveHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var g games.Game
		if err := c.ShouldBindJSON(&g); err != nil {
			respondBadRequest(c)
			return
		}
		g.Key = c.Param("key")

		saved, err := opts.Games.Save(c.Request.Context(), g, opts.now(), principal(c).Actor())
		obs.RecordSave("games", err)
		recordChange(c, opts, store.AuditActionSave, notify.EventSaved, "games/"+g.Key, err)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, saved)
	}
}
