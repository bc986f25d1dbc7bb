package domain

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// UserType 用户类型
// main = 租户拥有者（注册账号），sub = 租户成员（由 main 用户创建）
const (
	UserTypeMain = "main"
	UserTypeSub  = "sub"
)

// User 用户领域模型（对应 users 表）
type User struct {
	// 主键和租户
	UserID  string         `db:"user_id"`
	GroupID sql.NullString `db:"group_id"` // nullable: main 用户为 NULL（或指向自己），sub 用户指向所属 main 用户

	// 账号信息
	Email        string `db:"email"` // NOT NULL, UNIQUE, 已小写规范化
	PasswordHash []byte `db:"password_hash"`

	// 基本信息
	Nickname string         `db:"nickname"`
	UserType string         `db:"user_type"` // NOT NULL: 'main' | 'sub'
	RoleID   sql.NullString `db:"role_id"`   // nullable: sub 用户的角色，main 用户通常为 NULL

	// 扩展配置
	Metadata json.RawMessage `db:"metadata"` // JSONB, nullable

	// 状态
	IsActive  bool      `db:"is_active"` // DEFAULT TRUE
	CreatedAt time.Time `db:"created_at"`
}

// ResolveGroupID 解析用户所属租户（group）ID
// 规则：group_id 非空则取 group_id，否则取自己的 user_id
// 这是唯一的租户归属判定入口，任何按租户过滤数据的地方都必须经过这里
func (u *User) ResolveGroupID() string {
	if u.GroupID.Valid && u.GroupID.String != "" {
		return u.GroupID.String
	}
	return u.UserID
}

// IsMain 是否为 main 用户（租户拥有者，租户内隐式拥有全部权限）
func (u *User) IsMain() bool {
	return u.UserType == UserTypeMain
}

// NormalizeEmail 邮箱规范化（小写 + 去空白），入库和查询前都必须调用
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
