package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chrono-core/internal/domain"

	"github.com/lib/pq"
)

// PostgresRolesRepository 角色Repository实现（强类型版本）
// 实现RolesRepository接口，使用domain.Role领域模型
// 遵循"bottom-up"设计原则，Repository层负责数据访问和数据完整性验证
type PostgresRolesRepository struct {
	db *sql.DB
}

// NewPostgresRolesRepository 创建角色Repository
func NewPostgresRolesRepository(db *sql.DB) *PostgresRolesRepository {
	return &PostgresRolesRepository{db: db}
}

// 确保实现了接口
var _ RolesRepository = (*PostgresRolesRepository)(nil)

// GetRole 查询单个角色
// 带 group_id 过滤：其他租户的 role_id 返回 domain.ErrNotFound
func (r *PostgresRolesRepository) GetRole(ctx context.Context, groupID, roleID string) (*domain.Role, error) {
	if groupID == "" || roleID == "" {
		return nil, fmt.Errorf("group_id and role_id are required")
	}

	query := `
		SELECT role_id::text, group_id::text, name
		FROM roles
		WHERE role_id = $1 AND group_id = $2
	`

	var role domain.Role
	err := r.db.QueryRowContext(ctx, query, roleID, groupID).Scan(
		&role.RoleID,
		&role.GroupID,
		&role.Name,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query role: %w", err)
	}

	return &role, nil
}

// ListRoles 查询角色列表（单个租户的全部角色）
func (r *PostgresRolesRepository) ListRoles(ctx context.Context, groupID string) ([]*domain.Role, error) {
	if groupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}

	query := `
		SELECT role_id::text, group_id::text, name
		FROM roles
		WHERE group_id = $1
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := []*domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.RoleID, &role.GroupID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return roles, nil
}

// CreateRole 创建角色
// 验证（Repository层）：
//   - group_id、name 必填
//   - (group_id, name) 唯一性由 DB 约束保证，冲突映射为 domain.ErrDuplicateRoleName
func (r *PostgresRolesRepository) CreateRole(ctx context.Context, role *domain.Role) (string, error) {
	if role == nil {
		return "", fmt.Errorf("role is required")
	}
	if role.GroupID == "" {
		return "", fmt.Errorf("group_id is required")
	}
	if role.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	query := `
		INSERT INTO roles (role_id, group_id, name)
		VALUES ($1, $2, $3)
		RETURNING role_id::text
	`

	var roleID string
	err := r.db.QueryRowContext(ctx, query, role.RoleID, role.GroupID, role.Name).Scan(&roleID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", domain.ErrDuplicateRoleName
		}
		return "", fmt.Errorf("failed to create role: %w", err)
	}

	return roleID, nil
}

// RenameRole 重命名角色
// 带 group_id 过滤；(group_id, name) 冲突映射为 domain.ErrDuplicateRoleName
func (r *PostgresRolesRepository) RenameRole(ctx context.Context, groupID, roleID, name string) error {
	if groupID == "" || roleID == "" {
		return fmt.Errorf("group_id and role_id are required")
	}
	if name == "" {
		return fmt.Errorf("name is required")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = $3 WHERE role_id = $1 AND group_id = $2`,
		roleID, groupID, name,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrDuplicateRoleName
		}
		return fmt.Errorf("failed to rename role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// DeleteRole 删除角色
// 授权（role_permissions）由外键 ON DELETE CASCADE 级联删除；
// 引用此角色的用户 role_id 由外键 ON DELETE SET NULL 置空
func (r *PostgresRolesRepository) DeleteRole(ctx context.Context, groupID, roleID string) error {
	if groupID == "" || roleID == "" {
		return fmt.Errorf("group_id and role_id are required")
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM roles WHERE role_id = $1 AND group_id = $2`,
		roleID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}
