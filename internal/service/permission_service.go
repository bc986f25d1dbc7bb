package service

import (
	"context"
	"errors"
	"fmt"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"

	"go.uber.org/zap"
)

// PermissionService 权限判定服务接口
// 判定结果不缓存：每次都读当前授权状态
type PermissionService interface {
	// Allowed 判定用户在某 feature/action 上是否有权限
	// 业务规则:
	//   1. main 用户拥有本租户全部权限
	//   2. 未分配角色的 sub 用户无任何权限
	//   3. 角色不属于用户所在租户时视为无角色（拒绝）
	//   4. 其余情况查授权表是否存在 (role, feature, action)
	Allowed(ctx context.Context, user *domain.User, feature, action string) (bool, error)

	// Check Allowed 的便捷包装：无权限时返回 domain.ErrPermissionDenied
	Check(ctx context.Context, user *domain.User, feature, action string) error
}

// permissionService 实现
type permissionService struct {
	rolesRepo  repository.RolesRepository
	grantsRepo repository.RolePermissionsRepository
	logger     *zap.Logger
}

// NewPermissionService 创建 PermissionService 实例
func NewPermissionService(
	rolesRepo repository.RolesRepository,
	grantsRepo repository.RolePermissionsRepository,
	logger *zap.Logger,
) PermissionService {
	return &permissionService{
		rolesRepo:  rolesRepo,
		grantsRepo: grantsRepo,
		logger:     logger,
	}
}

var _ PermissionService = (*permissionService)(nil)

func (s *permissionService) Allowed(ctx context.Context, user *domain.User, feature, action string) (bool, error) {
	if user == nil {
		return false, nil
	}
	// main 用户：租户内全权限，先于枚举校验判定
	if user.IsMain() {
		return true, nil
	}
	if !domain.ValidFeature(feature) || !domain.ValidAction(action) {
		return false, domain.ErrInvalidGrant
	}

	// 未分配角色
	if !user.RoleID.Valid {
		return false, nil
	}

	// 角色必须属于用户所在租户；跨租户的 role_id 表现为不存在
	groupID := user.ResolveGroupID()
	if _, err := s.rolesRepo.GetRole(ctx, groupID, user.RoleID.String); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Permission check: role not in user tenant",
				zap.String("user_id", user.UserID),
				zap.String("role_id", user.RoleID.String),
				zap.String("reason", "cross_tenant_role"),
			)
			return false, nil
		}
		return false, fmt.Errorf("failed to load role: %w", err)
	}

	ok, err := s.grantsRepo.HasGrant(ctx, user.RoleID.String, feature, action)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return ok, nil
}

func (s *permissionService) Check(ctx context.Context, user *domain.User, feature, action string) error {
	ok, err := s.Allowed(ctx, user, feature, action)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrPermissionDenied
	}
	return nil
}
