package domain

// Role 角色领域模型（对应 roles 表）
// 角色归属于单个租户（group），(group_id, name) 唯一
type Role struct {
	RoleID  string `db:"role_id"`
	GroupID string `db:"group_id"` // NOT NULL: 所属租户（main 用户的 user_id）
	Name    string `db:"name"`     // NOT NULL
}
