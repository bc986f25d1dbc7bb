package repository

import (
	"context"

	"chrono-core/internal/domain"
)

// RolePermissionsRepository 角色权限Repository接口
// 授权（grant）归属于角色；调用方（Service层）负责先验证角色属于当前租户
type RolePermissionsRepository interface {
	// 查询
	ListGrants(ctx context.Context, roleID string) ([]*domain.RolePermission, error)
	HasGrant(ctx context.Context, roleID, feature, action string) (bool, error)

	// 整体替换：单事务内清空并重写角色的全部授权（replace 语义，非增量 patch）
	// 半写状态对权限判定不可见
	ReplaceGrants(ctx context.Context, roleID string, grants []domain.RolePermission) error
}
