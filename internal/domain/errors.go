package domain

import "errors"

var (
	// 通用
	ErrNotFound = errors.New("not found")

	// 认证
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")

	// OTP 验证码
	ErrOtpNotFound    = errors.New("no otp challenge pending")
	ErrOtpExpired     = errors.New("otp challenge expired")
	ErrOtpAlreadyUsed = errors.New("otp challenge already used")
	ErrOtpMismatch    = errors.New("otp code mismatch")

	// 角色与权限
	ErrDuplicateRoleName = errors.New("role name already exists in this group")
	ErrInvalidGrant      = errors.New("invalid permission grant")
	// ErrCrossTenant 与 ErrPermissionDenied 对外必须表现为同一种拒绝
	// （HTTP 层返回同样的 body，避免租户探测）
	ErrCrossTenant      = errors.New("cross tenant access")
	ErrPermissionDenied = errors.New("permission denied")
)
