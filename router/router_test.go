package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/editor"
	"github.com/yitongOE/LessonData/internal/games"
	"github.com/yitongOE/LessonData/internal/limits"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/notify"
	"github.com/yitongOE/LessonData/internal/store"
)

const testCookieName = "lessondata_session"

const testPassword = "correct horse"

var testFiles = map[string]string{
	admins.Path: `id,username,firstname,lastname,email,role,active
1,alice,Alice,Li,admin@example.com,Admin,true
2,erin,Erin,Wu,editor@example.com,Editor,true
3,quinn,Quinn,He,qa@example.com,QA,true
`,
	marketplace.RulesPath: `key,label,inPanel,inEditor,canReadOnly,isContent
title,Title,true,true,false,false
version,Version,true,false,true,false
rounds,Rounds,true,true,false,false
layout,Layout,true,false,true,false
`,
	"marketplace/WordSplash/config.csv":  "key,value\nversion,1\ntitle,Word Splash\nactive,true\nrounds,2\nlayout,lessonMerge\n",
	"marketplace/WordSplash/content.csv": "level,lesson,value\n1,1,cat; dog\n1,2,fox\n",
	"games/Review/config.csv":            "key,value\nversion,1\ntitle,Review\nactive,true\neduLevel,2\n",
	"games/Review/content.csv":           "level,value\n1,Hello there. Bye.\n",
}

type testEnv struct {
	engine *gin.Engine
	limits *limits.ActorLimits
	store  *store.Store
	blobs  *blob.Store
	users  map[string]int64
}

type client struct {
	cookie *http.Cookie
	userID int64
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	db, err := store.OpenSQLite(filepath.Join(dir, "lessondata.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.EnsureSQLiteSchema(db); err != nil {
		t.Fatalf("EnsureSQLiteSchema: %v", err)
	}
	st := store.New(db)
	st.SetDialect(store.DialectSQLite)

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	users := map[string]int64{}
	for _, email := range []string{"admin@example.com", "editor@example.com", "qa@example.com", "stranger@example.com"} {
		id, err := st.CreateUser(ctx, email, hash)
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", email, err)
		}
		users[email] = id
	}

	blobs := blob.New(filepath.Join(dir, "blob"))
	for rel, content := range testFiles {
		if err := blobs.Put(ctx, rel, []byte(content)); err != nil {
			t.Fatalf("Put(%s): %v", rel, err)
		}
	}
	market := marketplace.NewRepository(blobs, nil)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	sessionStore := cookie.NewStore([]byte("test-secret"))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   2592000,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	engine.Use(sessions.Sessions(testCookieName, sessionStore))

	feedLimits := limits.NewActorLimits(1)
	SetRouter(engine, Options{
		Store:             st,
		Blob:              blobs,
		Marketplace:       market,
		Games:             games.NewRepository(blobs),
		Admins:            admins.NewRepository(blobs),
		Editor:            editor.NewManager(market, market, time.Minute),
		Feed:              notify.NewHub(nil),
		FeedLimits:        feedLimits,
		Now:               func() time.Time { return time.Date(2026, 3, 4, 17, 5, 6, 0, time.UTC) },
		FrontendIndexPage: []byte("<!doctype html><html><body>INDEX</body></html>"),
	})
	return &testEnv{engine: engine, limits: feedLimits, store: st, blobs: blobs, users: users}
}

func (e *testEnv) do(t *testing.T, c *client, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "http://example.com"+path, nil)
	} else {
		req = httptest.NewRequest(method, "http://example.com"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if c != nil {
		if c.cookie != nil {
			req.AddCookie(c.cookie)
		}
		req.Header.Set(UserHeader, strconv.FormatInt(c.userID, 10))
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode envelope: %v (%s)", method, path, err, rr.Body.String())
		}
	}
	return rr, env
}

func (e *testEnv) login(t *testing.T, email string) *client {
	t.Helper()
	rr, env := e.do(t, nil, http.MethodPost, "/api/user/login", `{"email":"`+email+`","password":"`+testPassword+`"}`)
	if !env.Success {
		t.Fatalf("login %s failed: %s", email, env.Message)
	}
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == testCookieName {
			return &client{cookie: ck, userID: e.users[email]}
		}
	}
	t.Fatalf("login %s: no session cookie", email)
	return nil
}

func mustSucceed(t *testing.T, env envelope, what string) {
	t.Helper()
	if !env.Success {
		t.Fatalf("%s: expected success, got %q", what, env.Message)
	}
}

func mustFail(t *testing.T, env envelope, what, wantMsg string) {
	t.Helper()
	if env.Success {
		t.Fatalf("%s: expected failure", what)
	}
	if wantMsg != "" && !strings.Contains(env.Message, wantMsg) {
		t.Fatalf("%s: message = %q, want contains %q", what, env.Message, wantMsg)
	}
}

func TestLoginAndSelf(t *testing.T) {
	e := newTestEnv(t)

	_, env := e.do(t, nil, http.MethodPost, "/api/user/login", `{"email":"admin@example.com","password":"nope"}`)
	mustFail(t, env, "wrong password", "邮箱或密码错误")

	_, env = e.do(t, nil, http.MethodPost, "/api/user/login", `{"email":"stranger@example.com","password":"`+testPassword+`"}`)
	mustFail(t, env, "not in AdminData", "账号未授权")

	admin := e.login(t, "Admin@Example.com")
	_, env = e.do(t, admin, http.MethodGet, "/api/user/self", "")
	mustSucceed(t, env, "self")
	var self struct {
		Email       string           `json:"email"`
		Role        string           `json:"role"`
		Permissions auth.Permissions `json:"permissions"`
	}
	if err := json.Unmarshal(env.Data, &self); err != nil {
		t.Fatalf("decode self: %v", err)
	}
	if self.Email != "admin@example.com" || self.Role != "Admin" || !self.Permissions.AdminPanel {
		t.Fatalf("unexpected self: %+v", self)
	}

	bad := &client{cookie: admin.cookie, userID: admin.userID + 100}
	_, env = e.do(t, bad, http.MethodGet, "/api/user/self", "")
	mustFail(t, env, "header mismatch", UserHeader)

	rr, env := e.do(t, admin, http.MethodGet, "/api/user/logout", "")
	mustSucceed(t, env, "logout")
	var cleared *http.Cookie
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == testCookieName {
			cleared = ck
		}
	}
	_, env = e.do(t, &client{cookie: cleared, userID: admin.userID}, http.MethodGet, "/api/user/self", "")
	mustFail(t, env, "after logout", "未登录")
}

func TestRoleRevokedByAdminData(t *testing.T) {
	e := newTestEnv(t)
	editorClient := e.login(t, "editor@example.com")

	csv := strings.Replace(testFiles[admins.Path], "editor@example.com,Editor,true", "editor@example.com,Editor,false", 1)
	if err := e.blobs.Put(context.Background(), admins.Path, []byte(csv)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, env := e.do(t, editorClient, http.MethodGet, "/api/user/self", "")
	mustFail(t, env, "revoked", "账号未授权")
}

func TestEditorKeyAfterEditRevoked(t *testing.T) {
	e := newTestEnv(t)
	ed := e.login(t, "editor@example.com")
	id := openSession(t, e, ed, "edit")
	base := "/api/marketplace/sessions/" + id

	_, env := e.do(t, ed, http.MethodPost, base+"/toggle", `{"round":1,"unit":"1-01"}`)
	mustSucceed(t, env, "toggle 1-01")

	csv := strings.Replace(testFiles[admins.Path], "editor@example.com,Editor,true", "editor@example.com,QA,true", 1)
	if err := e.blobs.Put(context.Background(), admins.Path, []byte(csv)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, env = e.do(t, ed, http.MethodPost, base+"/key", `{"round":1,"key":{"key":"Delete"},"selection":{"start":0,"end":3}}`)
	mustSucceed(t, env, "key delete")
	var kr struct {
		Action string          `json:"action"`
		Round  json.RawMessage `json:"round"`
	}
	if err := json.Unmarshal(env.Data, &kr); err != nil || kr.Action != "suppress" || kr.Round != nil {
		t.Fatalf("key result = %+v, %v", kr, err)
	}

	_, env = e.do(t, ed, http.MethodGet, base, "")
	mustSucceed(t, env, "view")
	var vm struct {
		Rounds []struct {
			Value string `json:"value"`
		} `json:"rounds"`
	}
	if err := json.Unmarshal(env.Data, &vm); err != nil || len(vm.Rounds) == 0 || vm.Rounds[0].Value != "cat; dog;" {
		t.Fatalf("view = %+v, %v", vm, err)
	}
}

func TestMarketplaceGamesPanel(t *testing.T) {
	e := newTestEnv(t)
	qa := e.login(t, "qa@example.com")

	_, env := e.do(t, qa, http.MethodGet, "/api/marketplace/games?page=9&page_size=5", "")
	mustSucceed(t, env, "list")
	var page struct {
		Columns  []string         `json:"columns"`
		Page     int              `json:"page"`
		Total    int              `json:"total"`
		RowRange string           `json:"row_range"`
		Items    []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(page.Columns, ",") != "title,version,rounds,layout" {
		t.Fatalf("columns = %v", page.Columns)
	}
	if page.Page != 1 || page.Total != 1 || page.RowRange != "1–1 of 1" {
		t.Fatalf("unexpected paging: %+v", page)
	}
	row := page.Items[0]
	if row["key"] != "WordSplash" || row["rounds"] != float64(2) || row["layout"] != "lessonMerge" || row["title"] != "Word Splash" {
		t.Fatalf("unexpected row: %v", row)
	}
	if _, ok := row["active"]; ok {
		t.Fatalf("active is not a panel column: %v", row)
	}

	rr, env := e.do(t, qa, http.MethodGet, "/api/marketplace/games/Missing", "")
	if rr.Code != http.StatusNotFound || env.Success {
		t.Fatalf("missing game: status %d env %+v", rr.Code, env)
	}
}

func openSession(t *testing.T, e *testEnv, c *client, mode string) string {
	t.Helper()
	_, env := e.do(t, c, http.MethodPost, "/api/marketplace/games/WordSplash/sessions", `{"mode":"`+mode+`"}`)
	mustSucceed(t, env, "open "+mode)
	var out struct {
		Session struct {
			ID       string `json:"id"`
			ReadOnly bool   `json:"readonly"`
			State    string `json:"state"`
		} `json:"session"`
		View struct {
			GameKey string `json:"game_key"`
		} `json:"view"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode open: %v", err)
	}
	if out.Session.ID == "" || out.Session.State != "ready" || out.Session.ReadOnly != (mode == "view") || out.View.GameKey != "WordSplash" {
		t.Fatalf("unexpected open result: %+v", out)
	}
	return out.Session.ID
}

func TestEditorSessionFlow(t *testing.T) {
	e := newTestEnv(t)
	ed := e.login(t, "editor@example.com")
	id := openSession(t, e, ed, "edit")
	base := "/api/marketplace/sessions/" + id

	_, env := e.do(t, ed, http.MethodPost, base+"/toggle", `{"round":1,"unit":"1-02"}`)
	mustSucceed(t, env, "toggle 1-02")
	_, env = e.do(t, ed, http.MethodPost, base+"/toggle", `{"round":1,"unit":"1-01"}`)
	mustSucceed(t, env, "toggle 1-01")
	var rv marketplace.RoundView
	if err := json.Unmarshal(env.Data, &rv); err != nil {
		t.Fatalf("decode round: %v", err)
	}
	if rv.Value != "cat; dog; fox;" {
		t.Fatalf("value = %q", rv.Value)
	}

	_, env = e.do(t, ed, http.MethodPost, base+"/select-line", `{"round":1,"offset":5}`)
	mustSucceed(t, env, "select-line")
	var tr marketplace.TextRange
	if err := json.Unmarshal(env.Data, &tr); err != nil || tr != (marketplace.TextRange{Start: 4, End: 7}) {
		t.Fatalf("select-line = %+v, %v", tr, err)
	}

	_, env = e.do(t, ed, http.MethodPost, base+"/key", `{"round":1,"key":{"key":"Delete"},"selection":{"start":4,"end":7}}`)
	mustSucceed(t, env, "key delete")
	var kr struct {
		Action string                 `json:"action"`
		Round  *marketplace.RoundView `json:"round"`
	}
	if err := json.Unmarshal(env.Data, &kr); err != nil || kr.Round == nil || kr.Round.Value != "cat; fox;" {
		t.Fatalf("key result = %+v, %v", kr, err)
	}

	_, env = e.do(t, ed, http.MethodPut, base+"/fields", `{"key":"layout","value":"chapterMerge"}`)
	mustFail(t, env, "layout read-only", "只读")
	_, env = e.do(t, ed, http.MethodPut, base+"/fields", `{"key":"title","value":"Word Splash 2"}`)
	mustSucceed(t, env, "set title")
	_, env = e.do(t, ed, http.MethodPut, base+"/preview", `{"round":1,"text":"x"}`)
	mustFail(t, env, "free edit in auto mode", "")

	_, env = e.do(t, ed, http.MethodPost, base+"/save", "")
	mustSucceed(t, env, "save")

	got, err := e.blobs.Get(context.Background(), "marketplace/WordSplash/selected.csv")
	if err != nil {
		t.Fatalf("Get selected.csv: %v", err)
	}
	if string(got) != "round,selected,value\n1,1-01|1-02,\"cat; fox;\"\n2,,\"\"" {
		t.Fatalf("selected.csv = %q", got)
	}
	cfg, _ := e.blobs.Get(context.Background(), "marketplace/WordSplash/config.csv")
	if !strings.Contains(string(cfg), "updatedBy,editor@example.com") || !strings.Contains(string(cfg), "title,Word Splash 2") {
		t.Fatalf("config.csv = %q", cfg)
	}

	rr, _ := e.do(t, ed, http.MethodGet, base, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("saved session should be gone, status %d", rr.Code)
	}

	events, err := e.store.ListAuditEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if events[0].Action != store.AuditActionSave || events[0].Target != "marketplace/WordSplash" || events[0].Actor != "editor@example.com" {
		t.Fatalf("unexpected audit event: %+v", events[0])
	}
}

func TestEditorSessionPermissions(t *testing.T) {
	e := newTestEnv(t)
	qa := e.login(t, "qa@example.com")
	ed := e.login(t, "editor@example.com")

	_, env := e.do(t, qa, http.MethodPost, "/api/marketplace/games/WordSplash/sessions", `{"mode":"edit"}`)
	mustFail(t, env, "qa edit", "权限不足")

	id := openSession(t, e, qa, "view")
	base := "/api/marketplace/sessions/" + id

	_, env = e.do(t, qa, http.MethodGet, base, "")
	mustSucceed(t, env, "qa view")
	_, env = e.do(t, qa, http.MethodPost, base+"/toggle", `{"round":1,"unit":"1-01"}`)
	mustFail(t, env, "qa toggle", "权限不足")

	rr, _ := e.do(t, ed, http.MethodGet, base, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("other user's session should be hidden, status %d", rr.Code)
	}

	_, env = e.do(t, qa, http.MethodDelete, base, "")
	mustSucceed(t, env, "cancel")
	rr, _ = e.do(t, qa, http.MethodGet, base, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cancelled session should be gone, status %d", rr.Code)
	}
}

func TestRawPersist(t *testing.T) {
	e := newTestEnv(t)
	ed := e.login(t, "editor@example.com")

	_, env := e.do(t, ed, http.MethodPost, "/api/marketplace/csv", `{"gameKey":"WordSplash","configCSV":"key,value\ntitle,Raw","selectedCSV":"round,selected,value"}`)
	mustSucceed(t, env, "persist")
	got, _ := e.blobs.Get(context.Background(), "marketplace/WordSplash/config.csv")
	if string(got) != "key,value\ntitle,Raw" {
		t.Fatalf("config.csv = %q", got)
	}

	_, env = e.do(t, ed, http.MethodPost, "/api/marketplace/csv", `{"gameKey":"../x","configCSV":"","selectedCSV":""}`)
	mustFail(t, env, "bad key", "")
	_, env = e.do(t, ed, http.MethodPost, "/api/marketplace/csv", `{"gameKey":"WordSplash"}`)
	mustFail(t, env, "missing fields", "无效的参数")
}

func TestMarkSafeAndRestore(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, "admin@example.com")
	ed := e.login(t, "editor@example.com")
	qa := e.login(t, "qa@example.com")
	ctx := context.Background()

	_, env := e.do(t, ed, http.MethodPost, "/api/safe", `{"target":"marketplace/WordSplash"}`)
	mustFail(t, env, "editor mark safe", "权限不足")
	_, env = e.do(t, admin, http.MethodPost, "/api/safe", `{"target":"marketplace/WordSplash"}`)
	mustSucceed(t, env, "mark safe")

	if err := e.blobs.Put(ctx, "marketplace/WordSplash/config.csv", []byte("key,value\ntitle,Broken")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.blobs.Put(ctx, "marketplace/WordSplash/selected.csv", []byte("round,selected,value")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, env = e.do(t, qa, http.MethodPost, "/api/restore", `{"target":"marketplace/WordSplash"}`)
	mustFail(t, env, "qa restore", "权限不足")
	_, env = e.do(t, ed, http.MethodPost, "/api/restore", `{"target":"../etc"}`)
	mustFail(t, env, "bad target", "不支持的恢复目标")
	rr, env := e.do(t, ed, http.MethodPost, "/api/restore", `{"target":"games/Review"}`)
	if rr.Code != http.StatusNotFound || env.Success {
		t.Fatalf("restore without snapshot: status %d env %+v", rr.Code, env)
	}

	_, env = e.do(t, ed, http.MethodPost, "/api/restore", `{"target":"marketplace/WordSplash"}`)
	mustSucceed(t, env, "restore")
	got, _ := e.blobs.Get(ctx, "marketplace/WordSplash/config.csv")
	if string(got) != testFiles["marketplace/WordSplash/config.csv"] {
		t.Fatalf("config.csv not restored: %q", got)
	}
	if ok, _ := e.blobs.Exists(ctx, "marketplace/WordSplash/selected.csv"); ok {
		t.Fatalf("selected.csv absent from snapshot should be removed")
	}
}

func TestAdminsPanel(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, "admin@example.com")
	ed := e.login(t, "editor@example.com")

	_, env := e.do(t, ed, http.MethodGet, "/api/admins", "")
	mustFail(t, env, "editor admins", "权限不足")

	_, env = e.do(t, admin, http.MethodGet, "/api/admins", "")
	mustSucceed(t, env, "list admins")
	if !strings.Contains(string(env.Data), `"row_range":"1–3 of 3"`) {
		t.Fatalf("unexpected admins page: %s", env.Data)
	}

	_, env = e.do(t, admin, http.MethodPut, "/api/admins", `[{"id":1,"email":"admin@example.com","role":"Owner","active":true}]`)
	mustFail(t, env, "invalid role", "")

	body := `[{"id":1,"username":"alice","email":"admin@example.com","role":"Admin","active":true},{"id":4,"username":"zed","firstname":"Zed","lastname":"Ma, Jr","email":"zed@example.com","role":"QA","active":true}]`
	_, env = e.do(t, admin, http.MethodPut, "/api/admins", body)
	mustSucceed(t, env, "save admins")
	got, _ := e.blobs.Get(context.Background(), admins.Path)
	if !strings.Contains(string(got), `4,zed,Zed,"Ma, Jr",zed@example.com,QA,true`) {
		t.Fatalf("AdminData.csv = %q", got)
	}

	_, env = e.do(t, ed, http.MethodGet, "/api/user/self", "")
	mustFail(t, env, "editor removed from AdminData", "账号未授权")

	_, env = e.do(t, admin, http.MethodGet, "/api/audit?limit=5", "")
	mustSucceed(t, env, "audit")
	var events []store.AuditEvent
	if err := json.Unmarshal(env.Data, &events); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(events) == 0 || events[0].Action != store.AuditActionAdminsSet || events[0].Status != store.AuditStatusOK {
		t.Fatalf("unexpected audit: %+v", events)
	}
}

func TestGamesPanel(t *testing.T) {
	e := newTestEnv(t)
	ed := e.login(t, "editor@example.com")
	qa := e.login(t, "qa@example.com")

	_, env := e.do(t, qa, http.MethodGet, "/api/games", "")
	mustSucceed(t, env, "list games")
	if !strings.Contains(string(env.Data), `"display":[{"level":1,"value":"Hello there.\nBye."}`) {
		t.Fatalf("unexpected games page: %s", env.Data)
	}

	_, env = e.do(t, qa, http.MethodPut, "/api/games/Review", `{"title":"x"}`)
	mustFail(t, env, "qa save", "权限不足")

	_, env = e.do(t, ed, http.MethodPut, "/api/games/Review", `{"key":"Other","version":"2","title":"Review 2","active":true,"eduLevel":3,"content":[{"level":1,"value":"a"}]}`)
	mustSucceed(t, env, "save game")
	var saved games.Game
	if err := json.Unmarshal(env.Data, &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.Key != "Review" || len(saved.Content) != 3 || saved.UpdatedBy != "editor@example.com" || saved.UpdatedAt != "3/4/2026, 5:05:06 PM" {
		t.Fatalf("unexpected saved game: %+v", saved)
	}
}

func TestDebugVarsRequiresAdminPanel(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, "admin@example.com")
	ed := e.login(t, "editor@example.com")

	rr, _ := e.do(t, ed, http.MethodGet, "/debug/vars", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("editor: expected 403, got %d", rr.Code)
	}
	rr, _ = e.do(t, admin, http.MethodGet, "/debug/vars", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "saves_total") {
		t.Fatalf("admin: status %d body %.200s", rr.Code, rr.Body.String())
	}
}

func TestSPAFallback(t *testing.T) {
	e := newTestEnv(t)

	rr, _ := e.do(t, nil, http.MethodGet, "/marketplace", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "INDEX") {
		t.Fatalf("SPA fallback: status %d body %q", rr.Code, rr.Body.String())
	}
	rr, _ = e.do(t, nil, http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown api: status %d", rr.Code)
	}
}

func TestFeedConnectionLimit(t *testing.T) {
	e := newTestEnv(t)
	qa := e.login(t, "qa@example.com")

	rr, env := e.do(t, nil, http.MethodGet, "/api/ws", "")
	if env.Success || !strings.Contains(env.Message, "未登录") {
		t.Fatalf("anonymous feed: status %d env %+v", rr.Code, env)
	}

	release, ok := e.limits.Acquire("qa@example.com")
	if !ok {
		t.Fatalf("Acquire failed")
	}
	defer release()
	rr, env = e.do(t, qa, http.MethodGet, "/api/ws?user="+strconv.FormatInt(qa.userID, 10), "")
	if rr.Code != http.StatusTooManyRequests || env.Success {
		t.Fatalf("expected 429, got %d %+v", rr.Code, env)
	}
}
