package service

import (
	"context"
	"database/sql"
	"testing"

	"chrono-core/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func permFixture() (PermissionService, *fakeRolesRepo, *fakeGrantsRepo) {
	roles := newFakeRolesRepo()
	grants := newFakeGrantsRepo()
	return NewPermissionService(roles, grants, zap.NewNop()), roles, grants
}

func mainUser(id string) *domain.User {
	return &domain.User{
		UserID:   id,
		GroupID:  sql.NullString{String: id, Valid: true},
		UserType: domain.UserTypeMain,
		IsActive: true,
	}
}

func subUser(id, groupID, roleID string) *domain.User {
	u := &domain.User{
		UserID:   id,
		GroupID:  sql.NullString{String: groupID, Valid: true},
		UserType: domain.UserTypeSub,
		IsActive: true,
	}
	if roleID != "" {
		u.RoleID = sql.NullString{String: roleID, Valid: true}
	}
	return u
}

func TestAllowed_MainUserAlwaysAllowed(t *testing.T) {
	svc, _, _ := permFixture()

	ok, err := svc.Allowed(context.Background(), mainUser("main-1"), domain.FeatureFiles, domain.ActionDelete)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllowed_SubWithoutRoleDenied(t *testing.T) {
	svc, _, _ := permFixture()

	ok, err := svc.Allowed(context.Background(), subUser("sub-1", "main-1", ""), domain.FeatureFiles, domain.ActionView)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllowed_GrantPresent(t *testing.T) {
	svc, roles, grants := permFixture()
	_, err := roles.CreateRole(context.Background(), &domain.Role{RoleID: "role-1", GroupID: "main-1", Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, grants.ReplaceGrants(context.Background(), "role-1", []domain.RolePermission{
		{Feature: domain.FeatureFiles, Action: domain.ActionView},
	}))

	u := subUser("sub-1", "main-1", "role-1")

	ok, err := svc.Allowed(context.Background(), u, domain.FeatureFiles, domain.ActionView)
	require.NoError(t, err)
	require.True(t, ok)

	// 同 feature 的其他 action 未授权
	ok, err = svc.Allowed(context.Background(), u, domain.FeatureFiles, domain.ActionDelete)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllowed_CrossTenantRoleDenied(t *testing.T) {
	svc, roles, grants := permFixture()
	// 角色属于另一个租户，且拥有该授权
	_, err := roles.CreateRole(context.Background(), &domain.Role{RoleID: "role-x", GroupID: "other-main", Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, grants.ReplaceGrants(context.Background(), "role-x", []domain.RolePermission{
		{Feature: domain.FeatureFiles, Action: domain.ActionView},
	}))

	u := subUser("sub-1", "main-1", "role-x")

	ok, err := svc.Allowed(context.Background(), u, domain.FeatureFiles, domain.ActionView)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllowed_InvalidEnum(t *testing.T) {
	svc, _, _ := permFixture()

	_, err := svc.Allowed(context.Background(), subUser("sub-1", "main-1", ""), "billing", domain.ActionView)
	require.ErrorIs(t, err, domain.ErrInvalidGrant)

	_, err = svc.Allowed(context.Background(), subUser("sub-1", "main-1", ""), domain.FeatureFiles, "approve")
	require.ErrorIs(t, err, domain.ErrInvalidGrant)
}

// main 用户无条件放行：枚举校验不拦截 main
func TestAllowed_MainBypassesEnumValidation(t *testing.T) {
	svc, _, _ := permFixture()

	ok, err := svc.Allowed(context.Background(), mainUser("main-1"), "billing", domain.ActionView)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheck_MapsToPermissionDenied(t *testing.T) {
	svc, _, _ := permFixture()

	err := svc.Check(context.Background(), subUser("sub-1", "main-1", ""), domain.FeatureTasks, domain.ActionExecute)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, svc.Check(context.Background(), mainUser("main-1"), domain.FeatureTasks, domain.ActionExecute))
}
