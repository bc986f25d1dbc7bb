package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chrono-core/internal/domain"
	"chrono-core/internal/repository"
	"chrono-core/internal/service"
	"chrono-core/internal/store"
	"chrono-core/internal/token"

	"go.uber.org/zap"
)

type contextKey string

const (
	ctxKeyUser contextKey = "auth_user"
	ctxKeyJti  contextKey = "auth_jti"
)

// CallerFromContext 取当前请求的已认证用户（由 Authenticator 注入）
func CallerFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxKeyUser).(*domain.User)
	return u
}

// JtiFromContext 取当前请求的会话 jti
func JtiFromContext(ctx context.Context) string {
	jti, _ := ctx.Value(ctxKeyJti).(string)
	return jti
}

// Authenticator 认证中间件
// 流程：Bearer token → 签名/过期校验 → Redis 会话仍然存在 → 加载用户 → 注入 context
// 三步有任何一步失败都返回 401 + code=60401（服务端撤销的会话在第二步被拦截）
type Authenticator struct {
	usersRepo repository.UsersRepository
	sessions  *store.SessionStore
	secret    []byte
	logger    *zap.Logger
}

func NewAuthenticator(usersRepo repository.UsersRepository, sessions *store.SessionStore, secret []byte, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		usersRepo: usersRepo,
		sessions:  sessions,
		secret:    secret,
		logger:    logger,
	}
}

// Wrap 包装需要登录态的 handler
func (a *Authenticator) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, TokenExpired())
			return
		}

		claims, err := token.Parse(raw, a.secret)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, TokenExpired())
			return
		}

		// 会话记录必须仍然存在（logout 后 token 即使未过期也不可用）
		if _, err := a.sessions.Get(r.Context(), claims.ID); err != nil {
			if errors.Is(err, store.ErrMiss) {
				writeJSON(w, http.StatusUnauthorized, TokenExpired())
				return
			}
			a.logger.Error("Session lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
			return
		}

		user, err := a.usersRepo.GetUser(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusUnauthorized, TokenExpired())
				return
			}
			a.logger.Error("User lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
			return
		}
		if !user.IsActive {
			writeJSON(w, http.StatusUnauthorized, TokenExpired())
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		ctx = context.WithValue(ctx, ctxKeyJti, claims.ID)
		next(w, r.WithContext(ctx))
	}
}

// RequirePermission 权限中间件（必须套在 Wrap 里面）
// 无权限和资源归属其他租户返回同样的拒绝信息，不泄露资源是否存在
func (a *Authenticator) RequirePermission(perms service.PermissionService, feature, action string, next http.HandlerFunc) http.HandlerFunc {
	return a.Wrap(func(w http.ResponseWriter, r *http.Request) {
		user := CallerFromContext(r.Context())
		if err := perms.Check(r.Context(), user, feature, action); err != nil {
			if errors.Is(err, domain.ErrPermissionDenied) {
				a.logger.Warn("Request denied: insufficient permission",
					zap.String("user_id", user.UserID),
					zap.String("feature", feature),
					zap.String("action", action),
					zap.String("path", r.URL.Path),
					zap.String("reason", "permission_denied"),
				)
				writeJSON(w, http.StatusForbidden, Fail("permission denied"))
				return
			}
			a.logger.Error("Permission check failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
