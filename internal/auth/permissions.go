package auth

import "strings"

// Role 是 AdminData.csv 中的角色。
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleQA     Role = "QA"
)

// Roles 是允许写入 AdminData.csv 的角色。
var Roles = []Role{RoleAdmin, RoleEditor, RoleQA}

// ParseRole 大小写不敏感地识别角色。
func ParseRole(raw string) (Role, bool) {
	for _, r := range Roles {
		if strings.EqualFold(strings.TrimSpace(raw), string(r)) {
			return r, true
		}
	}
	return "", false
}

type Permission string

const (
	PermAdminPanel Permission = "adminPanel"
	PermEdit       Permission = "edit"
	PermRestore    Permission = "restore"
	PermDelete     Permission = "delete"
	PermView       Permission = "view"
)

// Permissions 是角色对应的能力开关。
type Permissions struct {
	AdminPanel bool `json:"adminPanel"`
	Edit       bool `json:"edit"`
	Restore    bool `json:"restore"`
	Delete     bool `json:"delete"`
	View       bool `json:"view"`
}

var permissionTable = map[Role]Permissions{
	RoleAdmin:  {AdminPanel: true, Edit: true, Restore: true, Delete: true},
	RoleEditor: {Edit: true, Restore: true},
	RoleQA:     {View: true},
}

// PermissionsFor 返回角色的能力；未知角色按 QA 处理。
func PermissionsFor(role Role) Permissions {
	if p, ok := permissionTable[role]; ok {
		return p
	}
	return permissionTable[RoleQA]
}

func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case PermAdminPanel:
		return p.AdminPanel
	case PermEdit:
		return p.Edit
	case PermRestore:
		return p.Restore
	case PermDelete:
		return p.Delete
	case PermView:
		return p.View
	default:
		return false
	}
}

// Can 判断主体是否拥有任一给定能力。
func (p Principal) Can(perms ...Permission) bool {
	granted := PermissionsFor(p.Role)
	for _, perm := range perms {
		if granted.Has(perm) {
			return true
		}
	}
	return false
}
