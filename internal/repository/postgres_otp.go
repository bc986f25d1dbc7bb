package repository

import (
	"context"
	"database/sql"
	"fmt"

	"chrono-core/internal/domain"
)

// PostgresOtpRepository 一次性验证码Repository实现
type PostgresOtpRepository struct {
	db *sql.DB
}

// NewPostgresOtpRepository 创建OTPRepository
func NewPostgresOtpRepository(db *sql.DB) *PostgresOtpRepository {
	return &PostgresOtpRepository{db: db}
}

// 确保实现了接口
var _ OtpRepository = (*PostgresOtpRepository)(nil)

// Create 发放新验证码
// 单事务：
//  1. 将 (user, purpose) 的旧 live 记录标记为已使用（supersede，旧码立即失效）
//  2. 插入新记录
func (r *PostgresOtpRepository) Create(ctx context.Context, challenge *domain.OtpChallenge) (string, error) {
	if challenge == nil {
		return "", fmt.Errorf("challenge is required")
	}
	if challenge.UserID == "" || challenge.Purpose == "" {
		return "", fmt.Errorf("user_id and purpose are required")
	}
	if challenge.Code == "" {
		return "", fmt.Errorf("code is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. supersede 旧 live 记录
	_, err = tx.ExecContext(ctx,
		`UPDATE otp_challenges SET is_used = TRUE
		 WHERE user_id = $1 AND purpose = $2 AND is_used = FALSE`,
		challenge.UserID, challenge.Purpose,
	)
	if err != nil {
		return "", fmt.Errorf("failed to supersede previous challenge: %w", err)
	}

	// 2. 插入新记录
	var otpID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO otp_challenges (otp_id, user_id, email, code, purpose, is_used, attempts, expires_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, 0, $6)
		 RETURNING otp_id::text`,
		challenge.OtpID, challenge.UserID, challenge.Email, challenge.Code, challenge.Purpose, challenge.ExpiresAt,
	).Scan(&otpID)
	if err != nil {
		return "", fmt.Errorf("failed to create challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	return otpID, nil
}

// GetLatest 查询 (user, purpose) 最新一条记录
// 旧记录在 supersede 时已置 is_used，最新一条就是唯一可能 live 的记录
func (r *PostgresOtpRepository) GetLatest(ctx context.Context, userID, purpose string) (*domain.OtpChallenge, error) {
	if userID == "" || purpose == "" {
		return nil, fmt.Errorf("user_id and purpose are required")
	}

	query := `
		SELECT otp_id::text, user_id::text, email, code, purpose, is_used, attempts, expires_at, created_at
		FROM otp_challenges
		WHERE user_id = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var c domain.OtpChallenge
	err := r.db.QueryRowContext(ctx, query, userID, purpose).Scan(
		&c.OtpID,
		&c.UserID,
		&c.Email,
		&c.Code,
		&c.Purpose,
		&c.IsUsed,
		&c.Attempts,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to query challenge: %w", err)
	}

	return &c, nil
}

// IncrementAttempts 原子自增 attempts
// DB 侧 attempts = attempts + 1，并发调用不会丢计数
func (r *PostgresOtpRepository) IncrementAttempts(ctx context.Context, otpID string) (int, error) {
	if otpID == "" {
		return 0, fmt.Errorf("otp_id is required")
	}

	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1
		 WHERE otp_id = $1
		 RETURNING attempts`,
		otpID,
	).Scan(&attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.ErrOtpNotFound
		}
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	return attempts, nil
}

// Consume 接受验证码（compare-and-set）
// 仅当 is_used = FALSE 且未过期时置 TRUE；RowsAffected = 0 表示 CAS 失败
// 并发的两次 Consume 至多一次成功
func (r *PostgresOtpRepository) Consume(ctx context.Context, otpID string) (bool, error) {
	if otpID == "" {
		return false, fmt.Errorf("otp_id is required")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET is_used = TRUE
		 WHERE otp_id = $1 AND is_used = FALSE AND expires_at > NOW()`,
		otpID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return n == 1, nil
}
