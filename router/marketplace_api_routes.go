package router

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/paging"
	"github.com/yitongOE/LessonData/internal/store"
)

func setMarketplaceAPIRoutes(r gin.IRoutes, opts Options) {
	r.GET("/marketplace/games", requireUserSession(opts), marketplaceGamesHandler(opts))
	r.GET("/marketplace/games/:key", requireUserSession(opts), marketplaceGameHandler(opts))
	r.POST("/marketplace/csv", requireUserSession(opts), requirePermission(auth.PermEdit), marketplacePersistHandler(opts))
}

// panelRow 只输出规则表里 inPanel 的列，列随 MarketplaceElementRule.csv 变化。
func panelRow(g marketplace.Game, keys []string) (json.RawMessage, error) {
	row := `{}`
	row, err := sjson.Set(row, "key", g.Key)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		v, ok := g.Field(k)
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if row, err = sjson.SetRaw(row, escapePath(k), string(raw)); err != nil {
			return nil, err
		}
	}
	return json.RawMessage(row), nil
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapePath(k string) string {
	return pathEscaper.Replace(k)
}

func marketplaceGamesHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rules, err := opts.Marketplace.LoadRules(ctx)
		if err != nil {
			respondErr(c, err)
			return
		}
		list, err := opts.Marketplace.ListGames(ctx)
		if err != nil {
			respondErr(c, err)
			return
		}
		keys := rules.PanelKeys()
		rows := make([]json.RawMessage, 0, len(list))
		for _, g := range list {
			row, err := panelRow(g, keys)
			if err != nil {
				respondErr(c, err)
				return
			}
			rows = append(rows, row)
		}

		page, size := paging.ParseParams(c.Query("page"), c.Query("page_size"))
		pg := paging.Paginate(rows, page, size)
		respondOK(c, gin.H{
			"columns":     keys,
			"page":        pg.Page,
			"page_size":   pg.PageSize,
			"total_pages": pg.TotalPages,
			"total":       pg.Total,
			"row_range":   pg.RowRange,
			"items":       pg.Items,
		})
	}
}

func marketplaceGameHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rules, err := opts.Marketplace.LoadRules(ctx)
		if err != nil {
			respondErr(c, err)
			return
		}
		g, err := opts.Marketplace.LoadGame(ctx, c.Param("key"))
		if err != nil {
			respondErr(c, err)
			return
		}
		row, err := panelRow(g, rules.PanelKeys())
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, row)
	}
}

// marketplacePersistHandler 是原始持久化调用：{gameKey, configCSV, selectedCSV} 两个文件整体覆盖。
func marketplacePersistHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil || !gjson.ValidBytes(body) {
			respondBadRequest(c)
			return
		}
		fields := gjson.GetManyBytes(body, "gameKey", "configCSV", "selectedCSV")
		key, configCSV, selectedCSV := fields[0], fields[1], fields[2]
		if key.Type != gjson.String || configCSV.Type != gjson.String || selectedCSV.Type != gjson.String {
			respondBadRequest(c)
			return
		}

		err = opts.Marketplace.Persist(c.Request.Context(), key.Str, []byte(configCSV.Str), []byte(selectedCSV.Str))
		obs.RecordSave("marketplace", err)
		recordChange(c, opts, store.AuditActionSave, notify.EventSaved, "marketplace/"+key.Str, err)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, nil)
	}
}
