// Package auth 提供统一的主体信息（session/cli）、角色权限表与密码/随机数工具，便于鉴权与审计。
package auth

import (
	"context"
)

type ActorType string

const (
	ActorTypeSession ActorType = "session"
	ActorTypeCLI     ActorType = "cli"
)

type Principal struct {
	ActorType ActorType
	UserID    int64
	// Email 用于写入 updatedBy 与审计记录。
	Email string
	Role  Role
}

// Actor 返回写入 updatedBy 的操作人标识。
func (p Principal) Actor() string {
	if p.Email != "" {
		return p.Email
	}
	return string(p.ActorType)
}

type ctxKey int

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
