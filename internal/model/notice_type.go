package model

// NoticeType 通知类型表 — 对应 notice_types
// 每条发出的通知都必须属于一个已注册的类型。
type NoticeType struct {
	ID          uint   `gorm:"primaryKey"                          json:"id"`
	Label       string `gorm:"type:varchar(40);not null;uniqueIndex" json:"label"`
	Display     string `gorm:"type:varchar(50);not null"           json:"display"`
	Description string `gorm:"type:varchar(100);not null"          json:"description"`
	// DefaultSensitivity 默认敏感度阈值：仅当通道敏感度 <= 该值时默认投递
	DefaultSensitivity int `gorm:"not null;default:2" json:"default_sensitivity"`
	BaseModel
}

// TableName 指定表名
func (NoticeType) TableName() string { return "notice_types" }
