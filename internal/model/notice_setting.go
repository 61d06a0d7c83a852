package model

// NoticeSetting 投递偏好表 — 对应 notice_settings
// 记录某用户对 (通知类型, 通道) 是否投递的选择；首次访问时按默认规则惰性创建。
type NoticeSetting struct {
	ID           uint   `gorm:"primaryKey"                                                   json:"id"`
	UserID       uint   `gorm:"not null;uniqueIndex:uniq_notice_setting,priority:1"          json:"user_id"`
	NoticeTypeID uint   `gorm:"not null;uniqueIndex:uniq_notice_setting,priority:2"          json:"notice_type_id"`
	Medium       string `gorm:"type:char(1);not null;uniqueIndex:uniq_notice_setting,priority:3" json:"medium"`
	Send         bool   `gorm:"not null" json:"send"`
	BaseModel

	// 关联
	NoticeType *NoticeType `gorm:"foreignKey:NoticeTypeID" json:"notice_type,omitempty"`
}

// TableName 指定表名
func (NoticeSetting) TableName() string { return "notice_settings" }
