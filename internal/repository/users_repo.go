package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"chrono-core/internal/domain"
)

// UsersRepository 用户Repository接口
// 使用强类型领域模型，不使用map[string]any
type UsersRepository interface {
	// 查询
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, groupID string, filter UsersFilter, page, size int) ([]*domain.User, int, error)

	// 创建（Repository层只做数据完整性验证，业务规则在Service层验证）
	CreateUser(ctx context.Context, user *domain.User) (string, error)

	// 更新
	UpdateProfile(ctx context.Context, userID string, nickname *string, metadata json.RawMessage) error
	AssignRole(ctx context.Context, groupID, userID string, roleID sql.NullString) error
	SetActive(ctx context.Context, groupID, userID string, active bool) error
}

// UsersFilter 用户查询过滤器
type UsersFilter struct {
	Search   string // 模糊搜索 email, nickname
	UserType string // 可选，按 user_type 过滤（'main' | 'sub'）
	IsActive *bool  // 可选，按 is_active 过滤
}
