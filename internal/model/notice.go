package model

import (
	"time"

	"noticehub/internal/entity"
)

// Notice 站内信表 — 对应 notices（feed 通道的持久化存储）
type Notice struct {
	ID           uint    `gorm:"primaryKey"                 json:"id"`
	RecipientID  uint    `gorm:"not null;index"             json:"recipient_id"`
	NoticeTypeID uint    `gorm:"not null"                   json:"notice_type_id"`
	SenderType   *string `gorm:"type:varchar(50)"           json:"sender_type,omitempty"`
	SenderID     *uint   `json:"sender_id,omitempty"`
	// SenderPath 发送时解析出的 sender 路径，为空表示无法定位 sender
	SenderPath string    `gorm:"type:text;not null;default:''" json:"sender_path"`
	Unseen     bool      `gorm:"not null;default:true"         json:"unseen"`
	Archived   bool      `gorm:"not null;default:false"        json:"archived"`
	Added      time.Time `gorm:"not null;autoCreateTime;index" json:"added"`

	// 关联
	NoticeType *NoticeType `gorm:"foreignKey:NoticeTypeID" json:"notice_type,omitempty"`
}

// TableName 指定表名
func (Notice) TableName() string { return "notices" }

// SenderRef sender 的多态引用；未记录 sender 时返回零值
func (n *Notice) SenderRef() entity.Ref {
	if n.SenderType == nil || n.SenderID == nil {
		return entity.Ref{}
	}
	return entity.Ref{Type: *n.SenderType, ID: *n.SenderID}
}
