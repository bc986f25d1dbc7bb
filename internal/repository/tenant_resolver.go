package repository

import (
	"context"
	"database/sql"

	"chrono-core/internal/domain"
)

// TenantResolver 按实体 ID 解析所属租户（group）
// 归属规则本身只在 domain.(*User).ResolveGroupID 里定义，这里只负责取数
type TenantResolver interface {
	GroupIDByUserID(ctx context.Context, userID string) (string, error)
}

type PostgresTenantResolver struct {
	db *sql.DB
}

func NewPostgresTenantResolver(db *sql.DB) *PostgresTenantResolver {
	return &PostgresTenantResolver{db: db}
}

var _ TenantResolver = (*PostgresTenantResolver)(nil)

func (r *PostgresTenantResolver) GroupIDByUserID(ctx context.Context, userID string) (string, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id::text, group_id FROM users WHERE user_id = $1", userID,
	).Scan(&user.UserID, &user.GroupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return user.ResolveGroupID(), nil
}
