package domain

// Feature 功能模块枚举（closed set）
const (
	FeatureFiles      = "files"
	FeaturePrompt     = "prompt"
	FeatureMail       = "mail"
	FeatureTasks      = "tasks"
	FeaturePermission = "permission"
	FeatureCalendar   = "calendar"
)

// Action 操作枚举（closed set）
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionExecute = "execute"
)

var validFeatures = map[string]bool{
	FeatureFiles:      true,
	FeaturePrompt:     true,
	FeatureMail:       true,
	FeatureTasks:      true,
	FeaturePermission: true,
	FeatureCalendar:   true,
}

var validActions = map[string]bool{
	ActionView:    true,
	ActionCreate:  true,
	ActionUpdate:  true,
	ActionDelete:  true,
	ActionExecute: true,
}

// ValidFeature 检查 feature 是否在枚举内
func ValidFeature(feature string) bool { return validFeatures[feature] }

// ValidAction 检查 action 是否在枚举内
func ValidAction(action string) bool { return validActions[action] }

// RolePermission 角色权限领域模型（对应 role_permissions 表）
// 每行一个 (feature, action) 授权，归属于单个角色，(role_id, feature, action) 唯一
// 角色删除时级联删除
type RolePermission struct {
	PermissionID string `db:"permission_id"`
	RoleID       string `db:"role_id"` // NOT NULL: 引用 roles.role_id（外键，ON DELETE CASCADE）
	Feature      string `db:"feature"` // NOT NULL
	Action       string `db:"action"`  // NOT NULL
}

// ValidateGrants 校验一组 (feature, action) 授权
// 规则：feature/action 必须在枚举内，且批次内不允许重复对
// 返回 ErrInvalidGrant（调用方负责包装具体信息日志）
func ValidateGrants(grants []RolePermission) error {
	seen := make(map[[2]string]bool, len(grants))
	for _, g := range grants {
		if !ValidFeature(g.Feature) || !ValidAction(g.Action) {
			return ErrInvalidGrant
		}
		key := [2]string{g.Feature, g.Action}
		if seen[key] {
			return ErrInvalidGrant
		}
		seen[key] = true
	}
	return nil
}
