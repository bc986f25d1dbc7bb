package repository

import (
	"context"
	"database/sql"
	"fmt"

	"chrono-core/internal/domain"

	"github.com/google/uuid"
)

// PostgresRolePermissionsRepository 角色权限Repository实现
type PostgresRolePermissionsRepository struct {
	db *sql.DB
}

// NewPostgresRolePermissionsRepository 创建角色权限Repository
func NewPostgresRolePermissionsRepository(db *sql.DB) *PostgresRolePermissionsRepository {
	return &PostgresRolePermissionsRepository{db: db}
}

// 确保实现了接口
var _ RolePermissionsRepository = (*PostgresRolePermissionsRepository)(nil)

// ListGrants 查询角色的全部授权
func (r *PostgresRolePermissionsRepository) ListGrants(ctx context.Context, roleID string) ([]*domain.RolePermission, error) {
	if roleID == "" {
		return nil, fmt.Errorf("role_id is required")
	}

	query := `
		SELECT permission_id::text, role_id::text, feature, action
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY feature ASC, action ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	grants := []*domain.RolePermission{}
	for rows.Next() {
		var g domain.RolePermission
		if err := rows.Scan(&g.PermissionID, &g.RoleID, &g.Feature, &g.Action); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return grants, nil
}

// HasGrant 判断角色是否持有 (feature, action) 授权
// 权限引擎的存在性查询：每次请求实时查库，不做跨请求缓存（角色/授权变更立即生效）
func (r *PostgresRolePermissionsRepository) HasGrant(ctx context.Context, roleID, feature, action string) (bool, error) {
	if roleID == "" {
		return false, fmt.Errorf("role_id is required")
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM role_permissions
			WHERE role_id = $1 AND feature = $2 AND action = $3
		)`,
		roleID, feature, action,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}

	return exists, nil
}

// ReplaceGrants 整体替换角色授权
// 单事务：DELETE 全部旧授权 + 批量 INSERT 新授权，要么全部生效要么全部不生效
// 验证（Repository层）：grants 的枚举/重复校验由 Service 层完成（domain.ValidateGrants）
func (r *PostgresRolePermissionsRepository) ReplaceGrants(ctx context.Context, roleID string, grants []domain.RolePermission) error {
	if roleID == "" {
		return fmt.Errorf("role_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. 清空旧授权
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear grants: %w", err)
	}

	// 2. 批量写入新授权
	for _, g := range grants {
		permissionID := g.PermissionID
		if permissionID == "" {
			permissionID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (permission_id, role_id, feature, action)
			 VALUES ($1, $2, $3, $4)`,
			permissionID, roleID, g.Feature, g.Action,
		)
		if err != nil {
			return fmt.Errorf("failed to insert grant (%s, %s): %w", g.Feature, g.Action, err)
		}
	}

	return tx.Commit()
}
