package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/editor"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/store"
)

type openSessionRequest struct {
	Mode string `json:"mode"`
}

type setFieldRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type toggleRequest struct {
	Round int    `json:"round"`
	Unit  string `json:"unit"`
}

type selectLineRequest struct {
	Round  int `json:"round"`
	Offset int `json:"offset"`
}

type keyRequest struct {
	Round     int                   `json:"round"`
	Key       marketplace.Key       `json:"key"`
	Selection marketplace.TextRange `json:"selection"`
}

type previewRequest struct {
	Round int    `json:"round"`
	Text  string `json:"text"`
}

const ctxEditorSession = "editor_session"

func setEditorAPIRoutes(r gin.IRoutes, opts Options) {
	session := requireUserSession(opts)
	owned := requireEditorSession(opts)
	edit := requirePermission(auth.PermEdit)

	r.POST("/marketplace/games/:key/sessions", session, editorOpenHandler(opts))
	r.GET("/marketplace/sessions/:id", session, owned, editorViewHandler())
	r.PUT("/marketplace/sessions/:id/fields", session, edit, owned, editorSetFieldHandler())
	r.POST("/marketplace/sessions/:id/toggle", session, edit, owned, editorToggleHandler())
	r.POST("/marketplace/sessions/:id/select-line", session, owned, editorSelectLineHandler())
	r.POST("/marketplace/sessions/:id/key", session, owned, editorKeyHandler())
	r.PUT("/marketplace/sessions/:id/preview", session, edit, owned, editorPreviewHandler())
	r.POST("/marketplace/sessions/:id/save", session, edit, owned, editorSaveHandler(opts))
	r.DELETE("/marketplace/sessions/:id", session, owned, editorCancelHandler(opts))
}

// requireEditorSession 只允许会话创建者访问；他人的会话按不存在处理。
func requireEditorSession(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := opts.Editor.Get(c.Param("id"))
		if err != nil || s.Owner() != principal(c).Actor() {
			respondErr(c, editor.ErrSessionNotFound)
			c.Abort()
			return
		}
		c.Set(ctxEditorSession, s)
		c.Next()
	}
}

func editorSession(c *gin.Context) *editor.Session {
	v, _ := c.Get(ctxEditorSession)
	s, _ := v.(*editor.Session)
	return s
}

func editorOpenHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req openSessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBadRequest(c)
				return
			}
		}
		p := principal(c)
		readOnly := true
		switch strings.ToLower(strings.TrimSpace(req.Mode)) {
		case "", "view":
		case "edit":
			if !p.Can(auth.PermEdit) {
				c.JSON(http.StatusOK, gin.H{"success": false, "message": "权限不足"})
				return
			}
			readOnly = false
		default:
			respondBadRequest(c)
			return
		}

		s, err := opts.Editor.Open(c.Request.Context(), c.Param("key"), p.Actor(), readOnly)
		obs.SetActiveEditorSessions(opts.Editor.Len())
		if err != nil {
			respondErr(c, err)
			return
		}
		obs.RecordEditorOpen()
		vm, err := s.View()
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, gin.H{"session": s.Info(), "view": vm})
	}
}

func editorViewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vm, err := editorSession(c).View()
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, vm)
	}
}

func editorSetFieldHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setFieldRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
			respondBadRequest(c)
			return
		}
		s := editorSession(c)
		if err := s.SetField(req.Key, req.Value); err != nil {
			respondErr(c, err)
			return
		}
		vm, err := s.View()
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, vm)
	}
}

func editorToggleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req toggleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c)
			return
		}
		rv, err := editorSession(c).Toggle(req.Round, req.Unit)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, rv)
	}
}

func editorSelectLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selectLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c)
			return
		}
		tr, err := editorSession(c).SelectLine(req.Round, req.Offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, tr)
	}
}

func editorKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req keyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c)
			return
		}
		canEdit := principal(c).Can(auth.PermEdit)
		res, err := editorSession(c).Key(req.Round, req.Key, req.Selection, canEdit)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, res)
	}
}

func editorPreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req previewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c)
			return
		}
		rv, err := editorSession(c).EditText(req.Round, req.Text)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, rv)
	}
}

func editorSaveHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := editorSession(c)
		target := "marketplace/" + s.Info().GameKey
		g, err := opts.Editor.Save(c.Request.Context(), s.ID(), principal(c).Actor())
		obs.SetActiveEditorSessions(opts.Editor.Len())
		obs.RecordSave("marketplace", err)
		recordChange(c, opts, store.AuditActionSave, notify.EventSaved, target, err)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, gin.H{"game_key": g.Key, "updatedAt": g.UpdatedAt, "updatedBy": g.UpdatedBy})
	}
}

func editorCancelHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := opts.Editor.Cancel(c.Param("id"))
		obs.SetActiveEditorSessions(opts.Editor.Len())
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, nil)
	}
}
