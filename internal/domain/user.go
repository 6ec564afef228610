package domain

// UserRole 定义用户角色。用户与令牌的签发由外部身份系统负责，
// 引擎只消费令牌里携带的身份信息。
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)

// User 表示从访问令牌还原出的操作者身份
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	IsActive bool     `json:"is_active"`
}
