package service

import (
	"context"
	"testing"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func userFixture() (UserService, *fakeUsersRepo, *fakeRolesRepo) {
	users := newFakeUsersRepo()
	roles := newFakeRolesRepo()
	resolver := &fakeTenantResolver{users: users}
	return NewUserService(users, roles, resolver, zap.NewNop()), users, roles
}

func seedMain(t *testing.T, users *fakeUsersRepo, id string) *domain.User {
	u := mainUser(id)
	u.Email = id + "@example.com"
	u.PasswordHash = []byte("x")
	_, err := users.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func TestCreateSubUser_InheritsCallerGroup(t *testing.T) {
	svc, users, _ := userFixture()
	caller := seedMain(t, users, "main-1")

	view, err := svc.CreateSubUser(context.Background(), caller, CreateSubUserRequest{
		Email:    "Sub@Example.com",
		Password: "secret123",
		Nickname: "Sub",
	})
	require.NoError(t, err)
	require.Equal(t, "sub@example.com", view.Email)
	require.Equal(t, domain.UserTypeSub, view.UserType)
	require.Equal(t, "main-1", view.GroupID)
}

func TestCreateSubUser_SubCallerDenied(t *testing.T) {
	svc, _, _ := userFixture()
	caller := subUser("sub-1", "main-1", "")

	_, err := svc.CreateSubUser(context.Background(), caller, CreateSubUserRequest{
		Email:    "x@example.com",
		Password: "secret123",
	})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestCreateSubUser_CrossTenantRoleRejected(t *testing.T) {
	svc, users, roles := userFixture()
	caller := seedMain(t, users, "main-1")
	_, err := roles.CreateRole(context.Background(), &domain.Role{RoleID: "role-x", GroupID: "other-main", Name: "Editor"})
	require.NoError(t, err)

	_, err = svc.CreateSubUser(context.Background(), caller, CreateSubUserRequest{
		Email:    "x@example.com",
		Password: "secret123",
		RoleID:   "role-x",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignRole_ScopedToTenant(t *testing.T) {
	svc, users, roles := userFixture()
	caller := seedMain(t, users, "main-1")
	_, err := roles.CreateRole(context.Background(), &domain.Role{RoleID: "role-1", GroupID: "main-1", Name: "Editor"})
	require.NoError(t, err)

	view, err := svc.CreateSubUser(context.Background(), caller, CreateSubUserRequest{
		Email:    "sub@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	roleID := "role-1"
	require.NoError(t, svc.AssignRole(context.Background(), caller, view.UserID, &roleID))

	u, err := users.GetUser(context.Background(), view.UserID)
	require.NoError(t, err)
	require.Equal(t, "role-1", u.RoleID.String)

	// 清除角色
	require.NoError(t, svc.AssignRole(context.Background(), caller, view.UserID, nil))
	u, err = users.GetUser(context.Background(), view.UserID)
	require.NoError(t, err)
	require.False(t, u.RoleID.Valid)

	// 其他租户的 main 用户碰不到这个用户
	other := seedMain(t, users, "main-2")
	require.ErrorIs(t, svc.AssignRole(context.Background(), other, view.UserID, nil), domain.ErrCrossTenant)
}

func TestSetActive_SelfChangeRejected(t *testing.T) {
	svc, users, _ := userFixture()
	caller := seedMain(t, users, "main-1")

	require.Error(t, svc.SetActive(context.Background(), caller, caller.UserID, false))
}

func TestListUsers_TenantOnly(t *testing.T) {
	svc, users, _ := userFixture()
	caller := seedMain(t, users, "main-1")
	seedMain(t, users, "main-2")

	_, err := svc.CreateSubUser(context.Background(), caller, CreateSubUserRequest{
		Email:    "sub@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	views, total, err := svc.ListUsers(context.Background(), caller, repository.UsersFilter{}, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, v := range views {
		require.Equal(t, "main-1", v.GroupID)
	}
}
