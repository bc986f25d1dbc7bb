package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoleService 角色管理服务接口
// 所有操作以调用者所在租户为边界；跨租户的 role_id 一律表现为不存在
type RoleService interface {
	ListRoles(ctx context.Context, caller *domain.User) ([]*RoleDetail, error)
	GetRole(ctx context.Context, caller *domain.User, roleID string) (*RoleDetail, error)
	CreateRole(ctx context.Context, caller *domain.User, req CreateRoleRequest) (*RoleDetail, error)
	UpdateRole(ctx context.Context, caller *domain.User, roleID string, req UpdateRoleRequest) (*RoleDetail, error)
	DeleteRole(ctx context.Context, caller *domain.User, roleID string) error
}

// roleService 实现
type roleService struct {
	rolesRepo  repository.RolesRepository
	grantsRepo repository.RolePermissionsRepository
	logger     *zap.Logger
}

// NewRoleService 创建 RoleService 实例
func NewRoleService(
	rolesRepo repository.RolesRepository,
	grantsRepo repository.RolePermissionsRepository,
	logger *zap.Logger,
) RoleService {
	return &roleService{
		rolesRepo:  rolesRepo,
		grantsRepo: grantsRepo,
		logger:     logger,
	}
}

var _ RoleService = (*roleService)(nil)

// GrantInput (feature, action) 授权项
type GrantInput struct {
	Feature string `json:"feature"`
	Action  string `json:"action"`
}

// CreateRoleRequest 创建角色请求
type CreateRoleRequest struct {
	Name   string       `json:"name"`
	Grants []GrantInput `json:"grants"`
}

// UpdateRoleRequest 更新角色请求
// Name 为 nil 表示不改名；Grants 为 nil 表示不动授权，非 nil 时整体替换
type UpdateRoleRequest struct {
	Name   *string      `json:"name"`
	Grants []GrantInput `json:"grants"`
}

// RoleDetail 角色详情（角色 + 全部授权）
type RoleDetail struct {
	RoleID string       `json:"role_id"`
	Name   string       `json:"name"`
	Grants []GrantInput `json:"grants"`
}

func (s *roleService) ListRoles(ctx context.Context, caller *domain.User) ([]*RoleDetail, error) {
	groupID := caller.ResolveGroupID()
	roles, err := s.rolesRepo.ListRoles(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	result := make([]*RoleDetail, 0, len(roles))
	for _, role := range roles {
		detail, err := s.buildDetail(ctx, role)
		if err != nil {
			return nil, err
		}
		result = append(result, detail)
	}
	return result, nil
}

func (s *roleService) GetRole(ctx context.Context, caller *domain.User, roleID string) (*RoleDetail, error) {
	role, err := s.rolesRepo.GetRole(ctx, caller.ResolveGroupID(), roleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return s.buildDetail(ctx, role)
}

func (s *roleService) CreateRole(ctx context.Context, caller *domain.User, req CreateRoleRequest) (*RoleDetail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}

	grants := toGrantRows("", req.Grants)
	if err := domain.ValidateGrants(grants); err != nil {
		s.logger.Warn("Role creation rejected: invalid grants",
			zap.String("group_id", caller.ResolveGroupID()),
			zap.String("role_name", name),
			zap.String("reason", "invalid_grant"),
		)
		return nil, err
	}

	role := &domain.Role{
		RoleID:  uuid.NewString(),
		GroupID: caller.ResolveGroupID(),
		Name:    name,
	}
	if _, err := s.rolesRepo.CreateRole(ctx, role); err != nil {
		if errors.Is(err, domain.ErrDuplicateRoleName) {
			return nil, domain.ErrDuplicateRoleName
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	if len(grants) > 0 {
		if err := s.grantsRepo.ReplaceGrants(ctx, role.RoleID, grants); err != nil {
			return nil, fmt.Errorf("failed to store grants: %w", err)
		}
	}

	s.logger.Info("Role created",
		zap.String("role_id", role.RoleID),
		zap.String("group_id", role.GroupID),
		zap.Int("grant_count", len(grants)),
	)

	return s.buildDetail(ctx, role)
}

func (s *roleService) UpdateRole(ctx context.Context, caller *domain.User, roleID string, req UpdateRoleRequest) (*RoleDetail, error) {
	groupID := caller.ResolveGroupID()

	role, err := s.rolesRepo.GetRole(ctx, groupID, roleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	// 授权先校验再落库：改名和换授权都失败时不留半写状态
	var grants []domain.RolePermission
	if req.Grants != nil {
		grants = toGrantRows(role.RoleID, req.Grants)
		if err := domain.ValidateGrants(grants); err != nil {
			return nil, err
		}
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("role name is required")
		}
		if name != role.Name {
			if err := s.rolesRepo.RenameRole(ctx, groupID, roleID, name); err != nil {
				if errors.Is(err, domain.ErrDuplicateRoleName) {
					return nil, domain.ErrDuplicateRoleName
				}
				return nil, fmt.Errorf("failed to rename role: %w", err)
			}
			role.Name = name
		}
	}

	if req.Grants != nil {
		// 整体替换，不做增量 patch
		if err := s.grantsRepo.ReplaceGrants(ctx, roleID, grants); err != nil {
			return nil, fmt.Errorf("failed to replace grants: %w", err)
		}
	}

	s.logger.Info("Role updated",
		zap.String("role_id", roleID),
		zap.String("group_id", groupID),
	)

	return s.buildDetail(ctx, role)
}

func (s *roleService) DeleteRole(ctx context.Context, caller *domain.User, roleID string) error {
	groupID := caller.ResolveGroupID()
	// 授权行级联删除；用户侧 role_id 由外键 ON DELETE SET NULL 清空
	if err := s.rolesRepo.DeleteRole(ctx, groupID, roleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}

	s.logger.Info("Role deleted",
		zap.String("role_id", roleID),
		zap.String("group_id", groupID),
	)
	return nil
}

func (s *roleService) buildDetail(ctx context.Context, role *domain.Role) (*RoleDetail, error) {
	rows, err := s.grantsRepo.ListGrants(ctx, role.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	grants := make([]GrantInput, 0, len(rows))
	for _, row := range rows {
		grants = append(grants, GrantInput{Feature: row.Feature, Action: row.Action})
	}
	return &RoleDetail{
		RoleID: role.RoleID,
		Name:   role.Name,
		Grants: grants,
	}, nil
}

func toGrantRows(roleID string, inputs []GrantInput) []domain.RolePermission {
	rows := make([]domain.RolePermission, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, domain.RolePermission{
			RoleID:  roleID,
			Feature: in.Feature,
			Action:  in.Action,
		})
	}
	return rows
}
