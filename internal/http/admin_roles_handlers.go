package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"chrono-core/internal/domain"
	"chrono-core/internal/service"

	"go.uber.org/zap"
)

// RolesHandler 角色管理 HTTP 处理器
// 所有路由都按调用者租户过滤；其他租户的 role_id 一律 404
type RolesHandler struct {
	Roles  service.RoleService
	Logger *zap.Logger
}

func NewRolesHandler(roles service.RoleService, logger *zap.Logger) *RolesHandler {
	return &RolesHandler{Roles: roles, Logger: logger}
}

// Collection GET/POST /admin/api/v1/roles
func (h *RolesHandler) Collection(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		roles, err := h.Roles.ListRoles(r.Context(), caller)
		if err != nil {
			h.Logger.Error("List roles failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to list roles"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{
			"items": roles,
			"total": len(roles),
		}))

	case http.MethodPost:
		var req service.CreateRoleRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		detail, err := h.Roles.CreateRole(r.Context(), caller, req)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrDuplicateRoleName):
				writeJSON(w, http.StatusOK, Fail("role name already exists"))
			case errors.Is(err, domain.ErrInvalidGrant):
				writeJSON(w, http.StatusOK, Fail("invalid grant"))
			default:
				h.Logger.Error("Create role failed", zap.Error(err))
				writeJSON(w, http.StatusOK, Fail("failed to create role"))
			}
			return
		}
		writeJSON(w, http.StatusOK, Ok(detail))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ByID GET/PUT/DELETE /admin/api/v1/roles/{id}
func (h *RolesHandler) ByID(w http.ResponseWriter, r *http.Request) {
	roleID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/roles/")
	if roleID == "" || strings.Contains(roleID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	caller := CallerFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		detail, err := h.Roles.GetRole(r.Context(), caller, roleID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, Fail("role not found"))
				return
			}
			h.Logger.Error("Get role failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to load role"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(detail))

	case http.MethodPut:
		var req service.UpdateRoleRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		detail, err := h.Roles.UpdateRole(r.Context(), caller, roleID, req)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				writeJSON(w, http.StatusNotFound, Fail("role not found"))
			case errors.Is(err, domain.ErrDuplicateRoleName):
				writeJSON(w, http.StatusOK, Fail("role name already exists"))
			case errors.Is(err, domain.ErrInvalidGrant):
				writeJSON(w, http.StatusOK, Fail("invalid grant"))
			default:
				h.Logger.Error("Update role failed", zap.Error(err))
				writeJSON(w, http.StatusOK, Fail("failed to update role"))
			}
			return
		}
		writeJSON(w, http.StatusOK, Ok(detail))

	case http.MethodDelete:
		if err := h.Roles.DeleteRole(r.Context(), caller, roleID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, Fail("role not found"))
				return
			}
			h.Logger.Error("Delete role failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to delete role"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
