package model

import "noticehub/internal/entity"

// User 用户表 — 对应 users
// 账号体系由宿主应用负责，这里仅保留广播 / 退订 / 语言查询所需的最小镜像。
type User struct {
	ID       uint   `gorm:"primaryKey"                          json:"id"`
	Username string `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	Email    string `gorm:"type:varchar(255);not null;default:''"  json:"email"`
	// Language 通知语言码，未配置时按 LanguageUnavailable 处理
	Language    *string `gorm:"type:varchar(10)"       json:"language,omitempty"`
	IsSuperuser bool    `gorm:"not null;default:false" json:"is_superuser"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// EntityRef 用户自身也可作为被观察对象 / sender
func (u *User) EntityRef() entity.Ref {
	return entity.Ref{Type: "user", ID: u.ID}
}
