package repository

import (
	"context"

	"chrono-core/internal/domain"
)

// RolesRepository 角色Repository接口
// 所有读写都按 group_id（租户）过滤：给定其他租户的合法 role_id 也表现为不存在
type RolesRepository interface {
	// 查询
	GetRole(ctx context.Context, groupID, roleID string) (*domain.Role, error)
	ListRoles(ctx context.Context, groupID string) ([]*domain.Role, error)

	// 创建（(group_id, name) 冲突返回 domain.ErrDuplicateRoleName）
	CreateRole(ctx context.Context, role *domain.Role) (string, error)

	// 更新/删除（找不到本租户下的角色返回 domain.ErrNotFound）
	RenameRole(ctx context.Context, groupID, roleID, name string) error
	DeleteRole(ctx context.Context, groupID, roleID string) error
}
