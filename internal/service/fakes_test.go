package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"
	"chrono-core/internal/store"
)

// ---- users ----

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*domain.User{}}
}

var _ repository.UsersRepository = (*fakeUsersRepo)(nil)

func (f *fakeUsersRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsersRepo) ListUsers(ctx context.Context, groupID string, filter repository.UsersFilter, page, size int) ([]*domain.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.User
	for _, u := range f.users {
		if u.ResolveGroupID() != groupID {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeUsersRepo) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return "", domain.ErrEmailTaken
		}
	}
	cp := *user
	cp.CreatedAt = time.Now()
	f.users[user.UserID] = &cp
	return user.UserID, nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, userID string, nickname *string, metadata json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if nickname != nil {
		u.Nickname = *nickname
	}
	if metadata != nil {
		u.Metadata = metadata
	}
	return nil
}

func (f *fakeUsersRepo) AssignRole(ctx context.Context, groupID, userID string, roleID sql.NullString) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.ResolveGroupID() != groupID {
		return domain.ErrNotFound
	}
	u.RoleID = roleID
	return nil
}

func (f *fakeUsersRepo) SetActive(ctx context.Context, groupID, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.ResolveGroupID() != groupID {
		return domain.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// ---- otp ----

// fakeOtpRepo 内存实现，保持与 Postgres 实现相同的原子语义
type fakeOtpRepo struct {
	mu         sync.Mutex
	challenges []*domain.OtpChallenge
}

func newFakeOtpRepo() *fakeOtpRepo { return &fakeOtpRepo{} }

var _ repository.OtpRepository = (*fakeOtpRepo)(nil)

func (f *fakeOtpRepo) Create(ctx context.Context, challenge *domain.OtpChallenge) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.challenges {
		if c.UserID == challenge.UserID && c.Purpose == challenge.Purpose && !c.IsUsed {
			c.IsUsed = true
		}
	}
	cp := *challenge
	cp.CreatedAt = time.Now()
	f.challenges = append(f.challenges, &cp)
	return cp.OtpID, nil
}

func (f *fakeOtpRepo) GetLatest(ctx context.Context, userID, purpose string) (*domain.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.challenges) - 1; i >= 0; i-- {
		c := f.challenges[i]
		if c.UserID == userID && c.Purpose == purpose {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrOtpNotFound
}

func (f *fakeOtpRepo) IncrementAttempts(ctx context.Context, otpID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.challenges {
		if c.OtpID == otpID {
			c.Attempts++
			return c.Attempts, nil
		}
	}
	return 0, domain.ErrOtpNotFound
}

func (f *fakeOtpRepo) Consume(ctx context.Context, otpID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, c := range f.challenges {
		if c.OtpID == otpID {
			if c.IsUsed || now.After(c.ExpiresAt) {
				return false, nil
			}
			c.IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

// fakeTenantResolver 基于 fakeUsersRepo 的租户解析
type fakeTenantResolver struct {
	users *fakeUsersRepo
}

var _ repository.TenantResolver = (*fakeTenantResolver)(nil)

func (f *fakeTenantResolver) GroupIDByUserID(ctx context.Context, userID string) (string, error) {
	u, err := f.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.ResolveGroupID(), nil
}

// ---- roles / grants ----

type fakeRolesRepo struct {
	mu    sync.Mutex
	roles map[string]*domain.Role
}

func newFakeRolesRepo() *fakeRolesRepo {
	return &fakeRolesRepo{roles: map[string]*domain.Role{}}
}

var _ repository.RolesRepository = (*fakeRolesRepo)(nil)

func (f *fakeRolesRepo) GetRole(ctx context.Context, groupID, roleID string) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok || r.GroupID != groupID {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRolesRepo) ListRoles(ctx context.Context, groupID string) ([]*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Role{}
	for _, r := range f.roles {
		if r.GroupID == groupID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRolesRepo) CreateRole(ctx context.Context, role *domain.Role) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.GroupID == role.GroupID && r.Name == role.Name {
			return "", domain.ErrDuplicateRoleName
		}
	}
	cp := *role
	f.roles[role.RoleID] = &cp
	return role.RoleID, nil
}

func (f *fakeRolesRepo) RenameRole(ctx context.Context, groupID, roleID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok || r.GroupID != groupID {
		return domain.ErrNotFound
	}
	for _, other := range f.roles {
		if other.RoleID != roleID && other.GroupID == groupID && other.Name == name {
			return domain.ErrDuplicateRoleName
		}
	}
	r.Name = name
	return nil
}

func (f *fakeRolesRepo) DeleteRole(ctx context.Context, groupID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok || r.GroupID != groupID {
		return domain.ErrNotFound
	}
	delete(f.roles, roleID)
	return nil
}

type fakeGrantsRepo struct {
	mu     sync.Mutex
	grants map[string][]domain.RolePermission
}

func newFakeGrantsRepo() *fakeGrantsRepo {
	return &fakeGrantsRepo{grants: map[string][]domain.RolePermission{}}
}

var _ repository.RolePermissionsRepository = (*fakeGrantsRepo)(nil)

func (f *fakeGrantsRepo) ListGrants(ctx context.Context, roleID string) ([]*domain.RolePermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.RolePermission{}
	for i := range f.grants[roleID] {
		cp := f.grants[roleID][i]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeGrantsRepo) HasGrant(ctx context.Context, roleID, feature, action string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants[roleID] {
		if g.Feature == feature && g.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGrantsRepo) ReplaceGrants(ctx context.Context, roleID string, grants []domain.RolePermission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]domain.RolePermission, len(grants))
	copy(rows, grants)
	for i := range rows {
		rows[i].RoleID = roleID
	}
	f.grants[roleID] = rows
	return nil
}

// ---- kv / sessions ----

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

var _ store.KV = (*fakeKV)(nil)

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// ---- mail ----

type fakeMailClient struct {
	mu     sync.Mutex
	sent   []string // 发送的验证码
	failed bool
}

var _ MailClient = (*fakeMailClient)(nil)

func (f *fakeMailClient) SendOtpEmail(ctx context.Context, to, code, purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return fmt.Errorf("mail relay unavailable")
	}
	f.sent = append(f.sent, code)
	return nil
}

func (f *fakeMailClient) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}
