package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"chrono-core/internal/config"
	"chrono-core/internal/domain"
	"chrono-core/internal/repository"
	"chrono-core/internal/store"
	"chrono-core/internal/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务接口
// 两段式登录：step 1（邮箱+密码 → 发放 OTP），step 2（OTP 验证 → 建立会话）
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	VerifyOtp(ctx context.Context, req VerifyOtpRequest) (*VerifyOtpResponse, error)
	Logout(ctx context.Context, jti string) error
}

// authService 实现
type authService struct {
	usersRepo repository.UsersRepository
	otpRepo   repository.OtpRepository
	sessions  *store.SessionStore
	mail      MailClient
	logger    *zap.Logger

	jwtSecret  []byte
	sessionTTL time.Duration
	otpTTL     time.Duration
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	usersRepo repository.UsersRepository,
	otpRepo repository.OtpRepository,
	sessions *store.SessionStore,
	mail MailClient,
	cfg config.AuthConfig,
	logger *zap.Logger,
) AuthService {
	return &authService{
		usersRepo:  usersRepo,
		otpRepo:    otpRepo,
		sessions:   sessions,
		mail:       mail,
		logger:     logger,
		jwtSecret:  []byte(cfg.SecretKey),
		sessionTTL: cfg.SessionTTL,
		otpTTL:     cfg.OtpTTL,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Register 注册 main 用户（租户拥有者）
// group_id 创建时写入一次（指向自己），之后不允许迁移
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()
	user := &domain.User{
		UserID:       userID,
		Email:        email,
		PasswordHash: passwordHash,
		Nickname:     strings.TrimSpace(req.Nickname),
		UserType:     domain.UserTypeMain,
		IsActive:     true,
	}
	// main 用户的租户指针指向自己
	user.GroupID.String = userID
	user.GroupID.Valid = true

	if _, err := s.usersRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered",
		zap.String("user_id", userID),
	)

	return &RegisterResponse{UserID: userID, Email: email}, nil
}

// LoginRequest 登录请求（step 1）
type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"` // 客户端 IP（用于日志）
	UserAgent string `json:"-"` // 客户端 User-Agent（用于日志）
}

// LoginResponse 登录响应（step 1）
// 不返回会话令牌：必须先完成 OTP 验证（step 2）
type LoginResponse struct {
	OtpRequired bool   `json:"otp_required"`
	Email       string `json:"email"` // step 2 的 challenge 引用
}

// Login 登录第一步：验证邮箱+密码，发放 OTP 验证码
// 发放会取代此用户上一个未使用的 login 验证码；
// 邮件投递失败时整个 step 1 失败（不允许静默降级）
func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		s.logger.Warn("User login failed: missing credentials",
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "missing_credentials"),
		)
		return nil, domain.ErrInvalidCredentials
	}

	// 1. 查找用户
	user, err := s.usersRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("User login failed: invalid credentials",
				zap.String("ip_address", req.IPAddress),
				zap.String("user_agent", req.UserAgent),
				zap.String("reason", "unknown_email"),
			)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	// 2. 校验密码
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)); err != nil {
		s.logger.Warn("User login failed: invalid credentials",
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "password_mismatch"),
		)
		return nil, domain.ErrInvalidCredentials
	}

	// 3. 账号状态
	if !user.IsActive {
		s.logger.Warn("User login failed: inactive account",
			zap.String("user_id", user.UserID),
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "inactive_account"),
		)
		return nil, domain.ErrInactiveAccount
	}

	// 4. 发放验证码（supersede 旧 live 记录）
	code, err := generateOtpCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp code: %w", err)
	}

	challenge := &domain.OtpChallenge{
		OtpID:     uuid.NewString(),
		UserID:    user.UserID,
		Email:     user.Email,
		Code:      code,
		Purpose:   domain.OtpPurposeLogin,
		ExpiresAt: time.Now().Add(s.otpTTL),
	}
	if _, err := s.otpRepo.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store otp challenge: %w", err)
	}

	// 5. 出站投递（失败则 step 1 整体失败）
	if err := s.mail.SendOtpEmail(ctx, user.Email, code, domain.OtpPurposeLogin); err != nil {
		return nil, fmt.Errorf("failed to deliver otp code: %w", err)
	}

	s.logger.Info("OTP challenge issued",
		zap.String("user_id", user.UserID),
		zap.String("purpose", domain.OtpPurposeLogin),
	)

	return &LoginResponse{OtpRequired: true, Email: user.Email}, nil
}

// VerifyOtpRequest 登录请求（step 2）
type VerifyOtpRequest struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// VerifyOtpResponse 登录响应（step 2）
type VerifyOtpResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Nickname    string `json:"nickname"`
	UserType    string `json:"user_type"`
	GroupID     string `json:"group_id"`
}

// VerifyOtp 登录第二步：验证 OTP，建立会话
// 状态机：ISSUED →(不匹配，attempts+1) ISSUED →(匹配) CONSUMED
// 过期在验证时惰性判定；已消费/已取代/已过期的记录永远不能再被接受
func (s *authService) VerifyOtp(ctx context.Context, req VerifyOtpRequest) (*VerifyOtpResponse, error) {
	email := domain.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if email == "" || code == "" {
		return nil, domain.ErrOtpMismatch
	}

	// 1. 查找用户
	user, err := s.usersRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	// 2. 取最新 challenge
	challenge, err := s.otpRepo.GetLatest(ctx, user.UserID, domain.OtpPurposeLogin)
	if err != nil {
		if errors.Is(err, domain.ErrOtpNotFound) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to load otp challenge: %w", err)
	}

	// 3. 终态检查（顺序：已使用 → 已过期 → 码不匹配）
	if challenge.IsUsed {
		return nil, domain.ErrOtpAlreadyUsed
	}
	if challenge.Expired(time.Now()) {
		return nil, domain.ErrOtpExpired
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		// 不匹配也要原子记录 attempts（调用方可据此做限流；core 本身不做锁定）
		if _, err := s.otpRepo.IncrementAttempts(ctx, challenge.OtpID); err != nil {
			s.logger.Error("Failed to increment otp attempts",
				zap.String("otp_id", challenge.OtpID),
				zap.Error(err),
			)
		}
		s.logger.Warn("OTP verification failed: code mismatch",
			zap.String("user_id", user.UserID),
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "otp_mismatch"),
		)
		return nil, domain.ErrOtpMismatch
	}

	// 4. compare-and-set 消费：并发 verify 至多一次成功
	ok, err := s.otpRepo.Consume(ctx, challenge.OtpID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume otp challenge: %w", err)
	}
	if !ok {
		return nil, domain.ErrOtpAlreadyUsed
	}

	// 5. 建立会话（拒绝停用账号）
	return s.establishSession(ctx, user)
}

// establishSession 为已通过验证的身份建立会话
// 只负责签发令牌和写入会话记录，不重复校验凭据
func (s *authService) establishSession(ctx context.Context, user *domain.User) (*VerifyOtpResponse, error) {
	if !user.IsActive {
		return nil, domain.ErrInactiveAccount
	}

	accessToken, jti, err := token.Generate(user.UserID, s.jwtSecret, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	rec := store.SessionRecord{
		UserID:    user.UserID,
		GroupID:   user.ResolveGroupID(),
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Put(ctx, jti, rec, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info("Session established",
		zap.String("user_id", user.UserID),
	)

	return &VerifyOtpResponse{
		AccessToken: accessToken,
		UserID:      user.UserID,
		Email:       user.Email,
		Nickname:    user.Nickname,
		UserType:    user.UserType,
		GroupID:     user.ResolveGroupID(),
	}, nil
}

// Logout 撤销会话
func (s *authService) Logout(ctx context.Context, jti string) error {
	if jti == "" {
		return fmt.Errorf("jti is required")
	}
	return s.sessions.Revoke(ctx, jti)
}

// generateOtpCode 生成均匀分布的 6 位数字验证码（crypto/rand）
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
