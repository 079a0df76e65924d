package router

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/editor"
	"github.com/yitongOE/LessonData/internal/games"
	"github.com/yitongOE/LessonData/internal/limits"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/store"
)

type Options struct {
	Store       *store.Store
	Blob        *blob.Store
	Marketplace *marketplace.Repository
	Games       *games.Repository
	Admins      *admins.Repository
	Editor      *editor.Manager
	Feed        *notify.Hub
	// FeedLimits 为 nil 时不限制每人的推送连接数。
	FeedLimits *limits.ActorLimits

	MaxBodyBytes   int64
	// RequestTimeout <= 0 表示不限制。
	RequestTimeout time.Duration
	// Now 为空时使用 time.Now。
	Now func() time.Time

	// FrontendBaseURL 非空时，非 API 请求重定向到该地址。
	FrontendBaseURL string
	// FrontendDistDir 为前端构建产物目录，例如 "./web/dist"。
	FrontendDistDir string
	// FrontendIndexPage 为空时，每次请求从 dist/index.html 读取。
	FrontendIndexPage []byte
	// FrontendFS 非空时静态资源从该文件系统提供（通常来自 go:embed）。
	FrontendFS fs.FS

	Healthz http.HandlerFunc
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
