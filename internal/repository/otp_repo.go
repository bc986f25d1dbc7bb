package repository

import (
	"context"

	"chrono-core/internal/domain"
)

// OtpRepository 一次性验证码Repository接口
// 验证流程的读改写都必须是原子的：并发 verify 不允许两次都成功，
// 也不允许基于同一份旧读丢失 attempts 次数
type OtpRepository interface {
	// 创建：单事务内将 (user, purpose) 的旧 live 记录标记为已使用（supersede），再插入新记录
	Create(ctx context.Context, challenge *domain.OtpChallenge) (string, error)

	// 查询 (user, purpose) 最新一条记录（没有则返回 domain.ErrOtpNotFound）
	GetLatest(ctx context.Context, userID, purpose string) (*domain.OtpChallenge, error)

	// 验证码不匹配时的原子计数：attempts = attempts + 1（DB 侧自增，不回写旧读）
	IncrementAttempts(ctx context.Context, otpID string) (int, error)

	// 接受验证码：compare-and-set，仅当 is_used = FALSE 且未过期时置 TRUE
	// 返回 false 表示 CAS 失败（已被并发的 verify 消费或已过期）
	Consume(ctx context.Context, otpID string) (bool, error)
}
