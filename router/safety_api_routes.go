package router

import (
	"errors"
	"io"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/store"
)

var errInvalidTarget = errors.New("不支持的恢复目标")

func setSafetyAPIRoutes(r gin.IRoutes, opts Options) {
	r.POST("/restore", requireUserSession(opts), requirePermission(auth.PermRestore), restoreHandler(opts))
	r.POST("/safe", requireUserSession(opts), requirePermission(auth.PermAdminPanel), markSafeHandler(opts))
}

// parseTarget 只接受 marketplace/<Game>、games/<Game> 与 AdminData.csv。
func parseTarget(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) {
		return "", errInvalidTarget
	}
	target := strings.Trim(strings.TrimSpace(gjson.GetBytes(body, "target").String()), "/")
	if target == admins.Path {
		return target, nil
	}
	dir, key := path.Split(target)
	switch dir {
	case "marketplace/", "games/":
		if marketplace.ValidateGameKey(key) == nil {
			return target, nil
		}
	}
	return "", errInvalidTarget
}

type snapshotView struct {
	Target  string   `json:"target"`
	Files   []string `json:"files"`
	Removed []string `json:"removed"`
}

func toSnapshotView(res blob.SnapshotResult) snapshotView {
	return snapshotView{Target: res.Target, Files: res.Files, Removed: res.Removed}
}

func restoreHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := parseTarget(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		res, err := opts.Blob.Restore(c.Request.Context(), target)
		obs.RecordRestore(err)
		recordChange(c, opts, store.AuditActionRestore, notify.EventRestored, target, err)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, toSnapshotView(res))
	}
}

func markSafeHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := parseTarget(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		res, err := opts.Blob.MarkSafe(c.Request.Context(), target)
		if err == nil {
			obs.RecordMarkSafe()
		}
		recordChange(c, opts, store.AuditActionMarkSafe, notify.EventMarkSafe, target, err)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, toSnapshotView(res))
	}
}
