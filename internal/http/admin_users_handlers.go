package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"
	"chrono-core/internal/service"

	"go.uber.org/zap"
)

// UsersHandler 租户内用户管理 HTTP 处理器
type UsersHandler struct {
	Users  service.UserService
	Logger *zap.Logger
}

func NewUsersHandler(users service.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{Users: users, Logger: logger}
}

// Collection GET/POST /admin/api/v1/users
func (h *UsersHandler) Collection(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		filter, page, size := parseUsersQuery(r)
		views, total, err := h.Users.ListUsers(r.Context(), caller, filter, page, size)
		if err != nil {
			h.Logger.Error("List users failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to list users"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{
			"items": views,
			"total": total,
			"page":  page,
			"size":  size,
		}))

	case http.MethodPost:
		var req service.CreateSubUserRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		view, err := h.Users.CreateSubUser(r.Context(), caller, req)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrPermissionDenied):
				writeJSON(w, http.StatusForbidden, Fail("permission denied"))
			case errors.Is(err, domain.ErrEmailTaken):
				writeJSON(w, http.StatusOK, Fail("email already registered"))
			case errors.Is(err, domain.ErrNotFound):
				writeJSON(w, http.StatusOK, Fail("role not found"))
			default:
				h.Logger.Error("Create sub user failed", zap.Error(err))
				writeJSON(w, http.StatusOK, Fail("failed to create user"))
			}
			return
		}
		writeJSON(w, http.StatusOK, Ok(view))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ByID PUT /admin/api/v1/users/{id}/role | /admin/api/v1/users/{id}/active
func (h *UsersHandler) ByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/users/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID, sub := parts[0], parts[1]
	caller := CallerFromContext(r.Context())

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch sub {
	case "role":
		var req struct {
			RoleID *string `json:"role_id"`
		}
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if err := h.Users.AssignRole(r.Context(), caller, userID, req.RoleID); err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCrossTenant) {
				// 跨租户与不存在返回同样的拒绝信息
				writeJSON(w, http.StatusNotFound, Fail("not found"))
				return
			}
			h.Logger.Error("Assign role failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to assign role"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": true}))

	case "active":
		var req struct {
			IsActive bool `json:"is_active"`
		}
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if err := h.Users.SetActive(r.Context(), caller, userID, req.IsActive); err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCrossTenant) {
				writeJSON(w, http.StatusNotFound, Fail("not found"))
				return
			}
			h.Logger.Error("Set active failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to update user"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": true}))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Export GET /admin/api/v1/users/export — 导出租户用户列表（.xlsx）
func (h *UsersHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller := CallerFromContext(r.Context())

	filter, _, _ := parseUsersQuery(r)

	// 逐页拉全量：导出不能截断在单页
	const pageSize = 200
	var views []*service.UserView
	for page := 1; ; page++ {
		batch, total, err := h.Users.ListUsers(r.Context(), caller, filter, page, pageSize)
		if err != nil {
			h.Logger.Error("Export users failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to export users"))
			return
		}
		views = append(views, batch...)
		if len(batch) < pageSize || len(views) >= total {
			break
		}
	}

	data, err := GenerateUsersExport(views)
	if err != nil {
		h.Logger.Error("Export users failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to export users"))
		return
	}

	filename := fmt.Sprintf("users_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseUsersQuery(r *http.Request) (repository.UsersFilter, int, int) {
	q := r.URL.Query()
	filter := repository.UsersFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		UserType: strings.TrimSpace(q.Get("user_type")),
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true" || v == "1"
		filter.IsActive = &active
	}
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)
	return filter, page, size
}
