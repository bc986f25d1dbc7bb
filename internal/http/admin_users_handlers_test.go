package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"
	"chrono-core/internal/service"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// listRecorder 按页切片返回预置用户并记录每次请求的页号，其余操作不使用
type listRecorder struct {
	views []*service.UserView
	pages []int
}

var _ service.UserService = (*listRecorder)(nil)

func (s *listRecorder) ListUsers(ctx context.Context, caller *domain.User, filter repository.UsersFilter, page, size int) ([]*service.UserView, int, error) {
	s.pages = append(s.pages, page)
	start := (page - 1) * size
	if start >= len(s.views) {
		return []*service.UserView{}, len(s.views), nil
	}
	end := start + size
	if end > len(s.views) {
		end = len(s.views)
	}
	return s.views[start:end], len(s.views), nil
}

func (s *listRecorder) GetProfile(ctx context.Context, userID string) (*service.UserView, error) {
	return nil, domain.ErrNotFound
}

func (s *listRecorder) UpdateProfile(ctx context.Context, userID string, req service.UpdateProfileRequest) (*service.UserView, error) {
	return nil, domain.ErrNotFound
}

func (s *listRecorder) CreateSubUser(ctx context.Context, caller *domain.User, req service.CreateSubUserRequest) (*service.UserView, error) {
	return nil, domain.ErrNotFound
}

func (s *listRecorder) AssignRole(ctx context.Context, caller *domain.User, userID string, roleID *string) error {
	return domain.ErrNotFound
}

func (s *listRecorder) SetActive(ctx context.Context, caller *domain.User, userID string, active bool) error {
	return domain.ErrNotFound
}

func newExportEnv(t *testing.T, totalUsers int) (*UsersHandler, *listRecorder) {
	t.Helper()
	views := make([]*service.UserView, 0, totalUsers)
	for i := 0; i < totalUsers; i++ {
		views = append(views, &service.UserView{
			UserID:    fmt.Sprintf("user-%04d", i),
			GroupID:   "main-1",
			Email:     fmt.Sprintf("user%04d@example.com", i),
			UserType:  domain.UserTypeSub,
			IsActive:  true,
			CreatedAt: "2026-08-01 12:00:00",
		})
	}
	rec := &listRecorder{views: views}
	return &UsersHandler{Users: rec, Logger: zap.NewNop()}, rec
}

func exportRequest(t *testing.T, h *UsersHandler) *httptest.ResponseRecorder {
	t.Helper()
	caller := &domain.User{UserID: "main-1", UserType: domain.UserTypeMain, IsActive: true}
	req := httptest.NewRequest(http.MethodGet, "/admin/api/v1/users/export", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKeyUser, caller))
	rec := httptest.NewRecorder()
	h.Export(rec, req)
	return rec
}

// 导出必须拉取全部页，不能截断在单页
func TestExport_PagesThroughAllUsers(t *testing.T) {
	h, list := newExportEnv(t, 450)

	rec := exportRequest(t, h)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	require.Equal(t, []int{1, 2, 3}, list.pages)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	// 表头 + 450 行数据
	require.Len(t, rows, 451)
}

func TestExport_SinglePage(t *testing.T) {
	h, list := newExportEnv(t, 3)

	rec := exportRequest(t, h)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int{1}, list.pages)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 4)
}
