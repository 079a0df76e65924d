package router

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/middleware"
	"github.com/yitongOE/LessonData/internal/store"
)

// UserHeader 必须与会话中的用户 id 一致，跨站请求难以伪造自定义 header。
const UserHeader = "LessonData-User"

// requireUserSession 校验会话并按 AdminData.csv 重新判定角色：账号被移出或停用后立即失去访问权。
func requireUserSession(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			clearSession(c)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "未登录"})
			c.Abort()
			return
		}

		headerID, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(UserHeader)), 10, 64)
		if err != nil || headerID <= 0 || headerID != userID {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "无权进行此操作，" + UserHeader + " 无效"})
			c.Abort()
			return
		}

		if opts.Store == nil || opts.Admins == nil {
			clearSession(c)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "store 未初始化"})
			c.Abort()
			return
		}

		u, err := opts.Store.GetUserByID(c.Request.Context(), userID)
		if err != nil || u.ID <= 0 || !u.Active() {
			clearSession(c)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "未登录"})
			c.Abort()
			return
		}
		if staleSession(c, u) {
			clearSession(c)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "会话已失效，请重新登录"})
			c.Abort()
			return
		}

		role, err := opts.Admins.RoleFor(c.Request.Context(), u.Email)
		if err != nil {
			if errors.Is(err, admins.ErrUnauthorized) {
				clearSession(c)
			}
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "账号未授权"})
			c.Abort()
			return
		}

		p := auth.Principal{
			ActorType: auth.ActorTypeSession,
			UserID:    u.ID,
			Email:     u.Email,
			Role:      role,
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		middleware.AnnotatePrincipal(c.Request.Context(), p)
		c.Next()
	}
}

// requirePermission 必须挂在 requireUserSession 之后。
func requirePermission(perms ...auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.PrincipalFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "未登录"})
			c.Abort()
			return
		}
		if !p.Can(perms...) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "权限不足"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request.Context())
	return p
}

func staleSession(c *gin.Context, u store.User) bool {
	if c == nil || u.ID <= 0 {
		return true
	}
	raw := sessions.Default(c).Get(sessionUserUpdatedAtKey)
	var unix int64
	switch x := raw.(type) {
	case int64:
		unix = x
	case int:
		unix = int64(x)
	case float64:
		unix = int64(x)
	}
	if unix <= 0 {
		return false
	}
	return u.UpdatedAt.UTC().Unix() > unix
}
