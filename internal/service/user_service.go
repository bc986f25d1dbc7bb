package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService 用户管理服务接口
// 列表/改角色/停用都以调用者所在租户为边界
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*UserView, error)
	UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*UserView, error)

	CreateSubUser(ctx context.Context, caller *domain.User, req CreateSubUserRequest) (*UserView, error)
	ListUsers(ctx context.Context, caller *domain.User, filter repository.UsersFilter, page, size int) ([]*UserView, int, error)
	AssignRole(ctx context.Context, caller *domain.User, userID string, roleID *string) error
	SetActive(ctx context.Context, caller *domain.User, userID string, active bool) error
}

// userService 实现
type userService struct {
	usersRepo repository.UsersRepository
	rolesRepo repository.RolesRepository
	resolver  repository.TenantResolver
	logger    *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(
	usersRepo repository.UsersRepository,
	rolesRepo repository.RolesRepository,
	resolver repository.TenantResolver,
	logger *zap.Logger,
) UserService {
	return &userService{
		usersRepo: usersRepo,
		rolesRepo: rolesRepo,
		resolver:  resolver,
		logger:    logger,
	}
}

var _ UserService = (*userService)(nil)

// UserView 对外暴露的用户视图（不含密码哈希）
type UserView struct {
	UserID    string          `json:"user_id"`
	GroupID   string          `json:"group_id"`
	Email     string          `json:"email"`
	Nickname  string          `json:"nickname"`
	UserType  string          `json:"user_type"`
	RoleID    string          `json:"role_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	IsActive  bool            `json:"is_active"`
	CreatedAt string          `json:"created_at"`
}

// UpdateProfileRequest 个人资料更新请求
// 字段为 nil 表示不修改
type UpdateProfileRequest struct {
	Nickname *string         `json:"nickname"`
	Metadata json.RawMessage `json:"metadata"`
}

// CreateSubUserRequest 创建 sub 用户请求
type CreateSubUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	RoleID   string `json:"role_id"` // 可选：初始角色（必须属于本租户）
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*UserView, error) {
	user, err := s.usersRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return toUserView(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*UserView, error) {
	if req.Nickname != nil {
		trimmed := strings.TrimSpace(*req.Nickname)
		req.Nickname = &trimmed
	}
	if err := s.usersRepo.UpdateProfile(ctx, userID, req.Nickname, req.Metadata); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

// CreateSubUser 创建 sub 用户
// 业务规则:
//  1. 只有 main 用户可以创建 sub 用户
//  2. sub 用户的 group_id 固定指向创建者的租户，之后不允许迁移
//  3. 初始角色（若给出）必须属于本租户
func (s *userService) CreateSubUser(ctx context.Context, caller *domain.User, req CreateSubUserRequest) (*UserView, error) {
	if !caller.IsMain() {
		return nil, domain.ErrPermissionDenied
	}

	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	groupID := caller.ResolveGroupID()

	var roleID sql.NullString
	if req.RoleID != "" {
		// 跨租户的 role_id 表现为不存在
		if _, err := s.rolesRepo.GetRole(ctx, groupID, req.RoleID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("failed to load role: %w", err)
		}
		roleID = sql.NullString{String: req.RoleID, Valid: true}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		UserID:       uuid.NewString(),
		GroupID:      sql.NullString{String: groupID, Valid: true},
		Email:        email,
		PasswordHash: passwordHash,
		Nickname:     strings.TrimSpace(req.Nickname),
		UserType:     domain.UserTypeSub,
		RoleID:       roleID,
		IsActive:     true,
	}
	if _, err := s.usersRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("Sub user created",
		zap.String("user_id", user.UserID),
		zap.String("group_id", groupID),
		zap.String("created_by", caller.UserID),
	)

	return s.GetProfile(ctx, user.UserID)
}

func (s *userService) ListUsers(ctx context.Context, caller *domain.User, filter repository.UsersFilter, page, size int) ([]*UserView, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	users, total, err := s.usersRepo.ListUsers(ctx, caller.ResolveGroupID(), filter, page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return views, total, nil
}

// AssignRole 为租户内用户分配/清除角色
// roleID 为 nil 表示清除角色；非 nil 时角色必须属于本租户
func (s *userService) AssignRole(ctx context.Context, caller *domain.User, userID string, roleID *string) error {
	groupID := caller.ResolveGroupID()

	if err := s.checkSameTenant(ctx, groupID, userID); err != nil {
		return err
	}

	var assigned sql.NullString
	if roleID != nil && *roleID != "" {
		if _, err := s.rolesRepo.GetRole(ctx, groupID, *roleID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to load role: %w", err)
		}
		assigned = sql.NullString{String: *roleID, Valid: true}
	}

	if err := s.usersRepo.AssignRole(ctx, groupID, userID, assigned); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.logger.Info("Role assigned",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Bool("cleared", !assigned.Valid),
	)
	return nil
}

func (s *userService) SetActive(ctx context.Context, caller *domain.User, userID string, active bool) error {
	if userID == caller.UserID {
		return fmt.Errorf("cannot change own active state")
	}
	if err := s.checkSameTenant(ctx, caller.ResolveGroupID(), userID); err != nil {
		return err
	}
	if err := s.usersRepo.SetActive(ctx, caller.ResolveGroupID(), userID, active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update active state: %w", err)
	}

	s.logger.Info("User active state changed",
		zap.String("user_id", userID),
		zap.Bool("active", active),
	)
	return nil
}

// checkSameTenant 校验目标用户与调用者同租户
// 目标不存在返回 ErrNotFound；存在但属于其他租户返回 ErrCrossTenant
// （HTTP 层对两者返回同样的拒绝信息，不泄露是否存在）
func (s *userService) checkSameTenant(ctx context.Context, groupID, userID string) error {
	targetGroup, err := s.resolver.GroupIDByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if targetGroup != groupID {
		s.logger.Warn("Request denied: target user in another tenant",
			zap.String("user_id", userID),
			zap.String("group_id", groupID),
			zap.String("reason", "cross_tenant"),
		)
		return domain.ErrCrossTenant
	}
	return nil
}

func toUserView(u *domain.User) *UserView {
	view := &UserView{
		UserID:    u.UserID,
		GroupID:   u.ResolveGroupID(),
		Email:     u.Email,
		Nickname:  u.Nickname,
		UserType:  u.UserType,
		Metadata:  u.Metadata,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if u.RoleID.Valid {
		view.RoleID = u.RoleID.String
	}
	return view
}
