// Package server 组装 HTTP 路由、依赖与中间件，使 main 保持简单可读。
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	root "github.com/yitongOE/LessonData"
	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/config"
	"github.com/yitongOE/LessonData/internal/editor"
	"github.com/yitongOE/LessonData/internal/games"
	"github.com/yitongOE/LessonData/internal/limits"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/security"
	"github.com/yitongOE/LessonData/internal/store"
	"github.com/yitongOE/LessonData/internal/version"
	"github.com/yitongOE/LessonData/router"
)

type AppOptions struct {
	Config  config.Config
	DB      *sql.DB
	Dialect store.Dialect
	Version version.BuildInfo
}

type App struct {
	cfg     config.Config
	db      *sql.DB
	store   *store.Store
	blob    *blob.Store
	editor  *editor.Manager
	feed    *notify.Hub
	version version.BuildInfo
	engine  *gin.Engine
}

func NewApp(opts AppOptions) (*App, error) {
	st := store.New(opts.DB)
	st.SetDialect(opts.Dialect)

	blobs := blob.New(opts.Config.Blob.Dir)
	market := marketplace.NewRepository(blobs, opts.Config.Marketplace.Games)
	ttl := time.Duration(opts.Config.Marketplace.SessionTTLMinutes) * time.Minute

	policy, err := originPolicy(opts.Config)
	if err != nil {
		return nil, err
	}
	feed := notify.NewHub(policy.Check)
	feed.Track = obs.TrackFeedClient

	app := &App{
		cfg:     opts.Config,
		db:      opts.DB,
		store:   st,
		blob:    blobs,
		editor:  editor.NewManager(market, market, ttl),
		feed:    feed,
		version: opts.Version,
	}

	sessionSecret := strings.TrimSpace(opts.Config.Security.SessionSecret)
	if sessionSecret == "" {
		slog.Warn("未配置 session_secret，使用随机值，重启后登录态失效")
		sessionSecret = randomSecret(32)
	}

	if opts.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if opts.Config.Security.TrustProxyHeaders {
		if err := engine.SetTrustedProxies(opts.Config.Security.TrustedProxyCIDRs); err != nil {
			return nil, err
		}
	} else if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	sessionStore := cookie.NewStore([]byte(sessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   2592000, // 30 days
		HttpOnly: true,
		Secure:   opts.Config.Env != "dev" && !opts.Config.Security.DisableSecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	engine.Use(sessions.Sessions(SessionCookieName, sessionStore))

	var frontendFS fs.FS
	frontendIndexPage := loadEmbeddedIndexHTML()
	if len(frontendIndexPage) > 0 {
		frontendFS = root.WebDistFS
	}

	router.SetRouter(engine, router.Options{
		Store:       st,
		Blob:        blobs,
		Marketplace: market,
		Games:       games.NewRepository(blobs),
		Admins:      admins.NewRepository(blobs),
		Editor:      app.editor,
		Feed:        feed,
		FeedLimits:  limits.NewActorLimits(opts.Config.Server.MaxFeedConnsPerUser),

		MaxBodyBytes:   opts.Config.Server.MaxBodyBytes,
		RequestTimeout: time.Duration(opts.Config.Server.RequestTimeoutSeconds) * time.Second,

		FrontendBaseURL:   opts.Config.Frontend.BaseURL,
		FrontendDistDir:   opts.Config.Frontend.DistDir,
		FrontendIndexPage: frontendIndexPage,
		FrontendFS:        frontendFS,

		Healthz: app.handleHealthz,
	})
	app.engine = engine
	return app, nil
}

// Start 启动推送 Hub 与编辑会话清理，ctx 取消后两者退出。
func (a *App) Start(ctx context.Context) {
	go a.feed.Run(ctx)
	interval := time.Duration(a.cfg.Marketplace.SweepIntervalSeconds) * time.Second
	go func() {
		a.editor.Run(ctx, interval)
		obs.SetActiveEditorSessions(a.editor.Len())
	}()
}

func (a *App) Handler() http.Handler {
	return a.engine
}

func randomSecret(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func loadEmbeddedIndexHTML() []byte {
	b, err := fs.ReadFile(root.WebDistFS, "web/dist/index.html")
	if err != nil || len(b) == 0 {
		return nil
	}
	return b
}

// originPolicy 允许配置的来源与前端地址，其余按（代理感知的）同源判断。
func originPolicy(cfg config.Config) (security.OriginPolicy, error) {
	var trusted []netip.Prefix
	if cfg.Security.TrustProxyHeaders {
		var err error
		if trusted, err = security.ParsePrefixes(cfg.Security.TrustedProxyCIDRs); err != nil {
			return security.OriginPolicy{}, err
		}
	}
	allowed := append([]string(nil), cfg.Security.AllowedOrigins...)
	if cfg.Frontend.BaseURL != "" {
		allowed = append(allowed, cfg.Frontend.BaseURL)
	}
	return security.OriginPolicy{
		Allowed:           allowed,
		TrustProxyHeaders: cfg.Security.TrustProxyHeaders,
		TrustedProxies:    trusted,
	}, nil
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	type resp struct {
		OK      bool   `json:"ok"`
		Env     string `json:"env"`
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Date    string `json:"date"`

		DBOK         bool `json:"db_ok"`
		BlobOK       bool `json:"blob_ok"`
		EditSessions int  `json:"edit_sessions"`
		FeedClients  int  `json:"feed_clients"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	dbOK := a.store.Ping(ctx) == nil
	_, blobErr := a.blob.Exists(ctx, marketplace.RulesPath)

	out := resp{
		OK:           dbOK && blobErr == nil,
		Env:          a.cfg.Env,
		Version:      a.version.Version,
		Commit:       a.version.Commit,
		Date:         a.version.Date,
		DBOK:         dbOK,
		BlobOK:       blobErr == nil,
		EditSessions: a.editor.Len(),
		FeedClients:  a.feed.Clients(),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !out.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(out)
}
