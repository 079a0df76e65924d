package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/middleware"
	"github.com/yitongOE/LessonData/internal/store"
)

type userLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func setUserAPIRoutes(r gin.IRoutes, opts Options) {
	r.POST("/user/login", userLoginHandler(opts))
	r.GET("/user/logout", userLogoutHandler())
	r.GET("/user/self", requireUserSession(opts), userSelfHandler())
}

// userLoginHandler 校验密码后按 AdminData.csv 判定角色；不在账号表中的用户无法登录。
func userLoginHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Store == nil || opts.Admins == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "store 未初始化"})
			return
		}

		var req userLoginRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			respondBadRequest(c)
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || req.Password == "" {
			respondBadRequest(c)
			return
		}

		u, err := opts.Store.GetUserByEmail(c.Request.Context(), email)
		if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) || !u.Active() {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "邮箱或密码错误"})
			return
		}

		role, err := opts.Admins.RoleFor(c.Request.Context(), u.Email)
		if err != nil {
			msg := "读取账号表失败"
			if errors.Is(err, admins.ErrUnauthorized) {
				msg = "账号未授权"
			}
			c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
			return
		}

		sess := sessions.Default(c)
		sess.Set(sessionKeyID, u.ID)
		sess.Set(sessionKeyEmail, u.Email)
		sess.Set(sessionKeyRole, string(role))
		sess.Set(sessionUserUpdatedAtKey, u.UpdatedAt.UTC().Unix())
		if err := sess.Save(); err != nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "无法保存会话信息，请重试"})
			return
		}

		p := auth.Principal{ActorType: auth.ActorTypeSession, UserID: u.ID, Email: u.Email, Role: role}
		middleware.AnnotatePrincipal(c.Request.Context(), p)
		if err := opts.Store.InsertAuditEvent(c.Request.Context(), store.AuditEventInput{
			RequestID: middleware.GetRequestID(c.Request.Context()),
			ActorType: string(p.ActorType),
			Actor:     p.Actor(),
			Role:      string(role),
			Action:    store.AuditActionLogin,
		}); err != nil {
			slog.Warn("写入审计事件失败", "action", store.AuditActionLogin, "err", err)
		}

		respondOK(c, selfPayload(p))
	}
}

func userLogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clearSession(c)
		respondOK(c, nil)
	}
}

func userSelfHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondOK(c, selfPayload(principal(c)))
	}
}

func selfPayload(p auth.Principal) gin.H {
	return gin.H{
		"id":          p.UserID,
		"email":       p.Email,
		"role":        p.Role,
		"permissions": auth.PermissionsFor(p.Role),
	}
}
