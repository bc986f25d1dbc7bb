package domain

import "time"

// OTP purpose 标签
const (
	OtpPurposeLogin = "login"
)

// OtpChallenge 一次性验证码领域模型（对应 otp_challenges 表）
// 每个 (user, purpose) 同时最多一条 live（未使用且未过期）记录，
// 新发放会取代旧记录；记录本身不要求物理删除，但绝不允许复用
type OtpChallenge struct {
	OtpID     string    `db:"otp_id"`
	UserID    string    `db:"user_id"` // NOT NULL: 引用 users.user_id
	Email     string    `db:"email"`   // NOT NULL: 发送目标邮箱（发放时的快照）
	Code      string    `db:"code"`    // NOT NULL: 6 位数字
	Purpose   string    `db:"purpose"` // NOT NULL: 如 'login'
	IsUsed    bool      `db:"is_used"` // DEFAULT FALSE，置 TRUE 后不可逆
	Attempts  int       `db:"attempts"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired 是否已过期（惰性判定，验证时检查，不做后台清理）
func (c *OtpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
