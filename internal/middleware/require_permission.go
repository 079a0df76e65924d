package middleware

import (
	"net/http"

	"github.com/yitongOE/LessonData/internal/auth"
)

// RequirePermission 要求已登录且角色具备任一权限。
func RequirePermission(perms ...auth.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "未登录", http.StatusUnauthorized)
				return
			}
			if !p.Can(perms...) {
				http.Error(w, "无权限", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
