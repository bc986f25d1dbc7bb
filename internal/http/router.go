package httpapi

import (
	"net/http"
	"strings"

	"chrono-core/internal/domain"
	"chrono-core/internal/service"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 注册认证路由
// register/login/verify-otp 匿名；logout/profile 需要登录态
func (r *Router) RegisterAuthRoutes(h *AuthHandler, auth *Authenticator) {
	r.Handle("/auth/api/v1/register", h.Register)
	r.Handle("/auth/api/v1/login", h.Login)
	r.Handle("/auth/api/v1/verify-otp", h.VerifyOtp)
	r.Handle("/auth/api/v1/logout", auth.Wrap(h.Logout))
	r.Handle("/auth/api/v1/profile", auth.Wrap(h.Profile))
}

// RegisterAdminRoleRoutes 注册角色管理路由
// 读需要 (permission, view)，写需要 (permission, create/update/delete)；main 用户隐式通过
func (r *Router) RegisterAdminRoleRoutes(h *RolesHandler, auth *Authenticator, perms service.PermissionService) {
	r.Handle("/admin/api/v1/roles", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionView, h.Collection)(w, req)
		case http.MethodPost:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionCreate, h.Collection)(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/admin/api/v1/roles/", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionView, h.ByID)(w, req)
		case http.MethodPut:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionUpdate, h.ByID)(w, req)
		case http.MethodDelete:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionDelete, h.ByID)(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterAdminUserRoutes 注册用户管理路由
func (r *Router) RegisterAdminUserRoutes(h *UsersHandler, auth *Authenticator, perms service.PermissionService) {
	r.Handle("/admin/api/v1/users", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionView, h.Collection)(w, req)
		case http.MethodPost:
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionCreate, h.Collection)(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/admin/api/v1/users/export", auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionView, h.Export))
	r.Handle("/admin/api/v1/users/", func(w http.ResponseWriter, req *http.Request) {
		// export 有独立路由；带 / 后缀的其余路径是 {id}/role 和 {id}/active
		if strings.HasSuffix(req.URL.Path, "/export") {
			auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionView, h.Export)(w, req)
			return
		}
		auth.RequirePermission(perms, domain.FeaturePermission, domain.ActionUpdate, h.ByID)(w, req)
	})
}

// RegisterHealthRoutes 注册健康检查路由
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}
