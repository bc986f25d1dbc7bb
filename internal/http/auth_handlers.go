package httpapi

import (
	"errors"
	"net/http"

	"chrono-core/internal/domain"
	"chrono-core/internal/service"

	"go.uber.org/zap"
)

// AuthHandler 认证相关 HTTP 处理器
// 两段式登录：/login 验证密码并发放 OTP，/verify-otp 验证 OTP 并返回会话令牌
type AuthHandler struct {
	Auth   service.AuthService
	Users  service.UserService
	Logger *zap.Logger
}

func NewAuthHandler(auth service.AuthService, users service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Users: users, Logger: logger}
}

// Register POST /auth/api/v1/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req service.RegisterRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	resp, err := h.Auth.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			writeJSON(w, http.StatusOK, Fail("email already registered"))
			return
		}
		h.Logger.Error("Register failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("registration failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Login POST /auth/api/v1/login（step 1：密码验证 + 发放 OTP）
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req service.LoginRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	req.IPAddress = getClientIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeJSON(w, http.StatusOK, Fail("invalid credentials"))
		case errors.Is(err, domain.ErrInactiveAccount):
			writeJSON(w, http.StatusOK, Fail("user is not active"))
		default:
			h.Logger.Error("Login step 1 failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("login failed"))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// VerifyOtp POST /auth/api/v1/verify-otp（step 2：验证 OTP + 建立会话）
func (h *AuthHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req service.VerifyOtpRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	req.IPAddress = getClientIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.Auth.VerifyOtp(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOtpNotFound):
			writeJSON(w, http.StatusOK, Fail("no verification code found"))
		case errors.Is(err, domain.ErrOtpAlreadyUsed):
			writeJSON(w, http.StatusOK, Fail("verification code already used"))
		case errors.Is(err, domain.ErrOtpExpired):
			writeJSON(w, http.StatusOK, Fail("verification code expired"))
		case errors.Is(err, domain.ErrOtpMismatch):
			writeJSON(w, http.StatusOK, Fail("invalid verification code"))
		case errors.Is(err, domain.ErrInactiveAccount):
			writeJSON(w, http.StatusOK, Fail("user is not active"))
		default:
			h.Logger.Error("Login step 2 failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("verification failed"))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Logout POST /auth/api/v1/logout（需要登录态）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	jti := JtiFromContext(r.Context())
	if err := h.Auth.Logout(r.Context(), jti); err != nil {
		h.Logger.Error("Logout failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("logout failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"revoked": true}))
}

// Profile GET/PUT /auth/api/v1/profile（需要登录态）
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		view, err := h.Users.GetProfile(r.Context(), caller.UserID)
		if err != nil {
			h.Logger.Error("Profile load failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to load profile"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(view))

	case http.MethodPut:
		var req service.UpdateProfileRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		view, err := h.Users.UpdateProfile(r.Context(), caller.UserID, req)
		if err != nil {
			h.Logger.Error("Profile update failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("failed to update profile"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(view))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
