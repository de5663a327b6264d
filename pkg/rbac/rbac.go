package rbac

// 权限常量
const (
	// 敏感操作权限：仅项目创建者
	PermissionDeleteProject = "project:delete"

	// 普通操作权限：所有项目成员
	PermissionUpdateProject = "project:update"
	PermissionAddMember     = "member:add"
	PermissionReadTask      = "task:read"
	PermissionWriteTask     = "task:write"
)

// 角色常量（角色是相对于某个项目而言的）
const (
	RoleNone    = ""
	RoleMember  = "member"
	RoleCreator = "creator"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleMember: {
		PermissionUpdateProject,
		PermissionAddMember,
		PermissionReadTask,
		PermissionWriteTask,
	},
	RoleCreator: {
		PermissionUpdateProject,
		PermissionAddMember,
		PermissionReadTask,
		PermissionWriteTask,
		PermissionDeleteProject,
	},
}

// RoleFor 根据项目归属推导用户角色
func RoleFor(isCreator, isMember bool) string {
	switch {
	case isCreator:
		return RoleCreator
	case isMember:
		return RoleMember
	default:
		return RoleNone
	}
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
