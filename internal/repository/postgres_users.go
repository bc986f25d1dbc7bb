package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chrono-core/internal/domain"

	"github.com/lib/pq"
)

// PostgresUsersRepository 用户Repository实现（强类型版本）
// 实现UsersRepository接口，使用domain.User领域模型
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	user_id::text,
	group_id,
	email,
	password_hash,
	nickname,
	user_type,
	role_id,
	metadata,
	is_active,
	created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.UserID,
		&user.GroupID,
		&user.Email,
		&user.PasswordHash,
		&user.Nickname,
		&user.UserType,
		&user.RoleID,
		&user.Metadata,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser 查询单个用户
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// GetUserByEmail 通过邮箱查询用户（登录入口）
// 输入的邮箱会先做小写规范化
func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}

	return user, nil
}

// ListUsers 查询用户列表
// 功能：查询指定租户（group）下的用户，支持过滤和分页
// 所有查询都带 group_id 过滤，不会返回其他租户的用户
func (r *PostgresUsersRepository) ListUsers(ctx context.Context, groupID string, filter UsersFilter, page, size int) ([]*domain.User, int, error) {
	if groupID == "" {
		return nil, 0, fmt.Errorf("group_id is required")
	}

	where := []string{"group_id = $1"}
	args := []any{groupID}
	argN := 2

	// search过滤（模糊搜索 email, nickname）
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(email ILIKE $%d OR nickname ILIKE $%d)", argN, argN))
		args = append(args, "%"+filter.Search+"%")
		argN++
	}

	// user_type过滤
	if filter.UserType != "" {
		where = append(where, fmt.Sprintf("user_type = $%d", argN))
		args = append(args, filter.UserType)
		argN++
	}

	// is_active过滤
	if filter.IsActive != nil {
		where = append(where, fmt.Sprintf("is_active = $%d", argN))
		args = append(args, *filter.IsActive)
		argN++
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	// 查询总数
	countQuery := `SELECT COUNT(*) FROM users ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	// 分页
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 100
	}
	offset := (page - 1) * size

	query := `SELECT ` + userColumns + ` FROM users ` + whereClause + `
		ORDER BY created_at ASC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, total, nil
}

// CreateUser 创建用户
// 验证（Repository层）：
//   - email、user_type 必填
//   - email 唯一性由 DB 约束保证，冲突映射为 domain.ErrEmailTaken
//
// 业务规则（Service层）：
//   - main 用户 group_id = 自己的 user_id，sub 用户 group_id = 所属 main 用户
//   - group_id 创建时写入一次，之后不允许迁移
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("user is required")
	}
	if user.Email == "" {
		return "", fmt.Errorf("email is required")
	}
	if user.UserType != domain.UserTypeMain && user.UserType != domain.UserTypeSub {
		return "", fmt.Errorf("invalid user_type: %s", user.UserType)
	}

	query := `
		INSERT INTO users (user_id, group_id, email, password_hash, nickname, user_type, role_id, metadata, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::jsonb), COALESCE($9, TRUE))
		RETURNING user_id::text
	`

	var userID string
	err := r.db.QueryRowContext(ctx, query,
		user.UserID,
		user.GroupID,
		domain.NormalizeEmail(user.Email),
		user.PasswordHash,
		user.Nickname,
		user.UserType,
		user.RoleID,
		nullableJSON(user.Metadata),
		user.IsActive,
	).Scan(&userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", domain.ErrEmailTaken
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

// UpdateProfile 更新用户资料（部分更新：nickname, metadata）
func (r *PostgresUsersRepository) UpdateProfile(ctx context.Context, userID string, nickname *string, metadata json.RawMessage) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	set := []string{}
	args := []any{userID}
	argN := 2

	if nickname != nil {
		set = append(set, fmt.Sprintf("nickname = $%d", argN))
		args = append(args, *nickname)
		argN++
	}
	if metadata != nil {
		set = append(set, fmt.Sprintf("metadata = $%d", argN))
		args = append(args, metadata)
		argN++
	}

	if len(set) == 0 {
		return nil
	}

	query := "UPDATE users SET " + strings.Join(set, ", ") + " WHERE user_id = $1"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// AssignRole 给用户分配/清除角色
// 带 group_id 过滤：不会更新其他租户的用户（防 id 猜测）
func (r *PostgresUsersRepository) AssignRole(ctx context.Context, groupID, userID string, roleID sql.NullString) error {
	if groupID == "" || userID == "" {
		return fmt.Errorf("group_id and user_id are required")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role_id = $3 WHERE user_id = $1 AND group_id = $2`,
		userID, groupID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// SetActive 启用/停用用户
// 带 group_id 过滤：不会更新其他租户的用户
func (r *PostgresUsersRepository) SetActive(ctx context.Context, groupID, userID string, active bool) error {
	if groupID == "" || userID == "" {
		return fmt.Errorf("group_id and user_id are required")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $3 WHERE user_id = $1 AND group_id = $2`,
		userID, groupID, active,
	)
	if err != nil {
		return fmt.Errorf("failed to set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// nullableJSON 空 JSON 以 NULL 传入（由 COALESCE 给默认值）
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
