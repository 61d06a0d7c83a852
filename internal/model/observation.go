package model

import (
	"time"

	"noticehub/internal/entity"
)

// Observation 观察关系表 — 对应 observations
// 多对多关系：观察者 × 被观察对象（多态引用） × 通知类型。
type Observation struct {
	ID           uint   `gorm:"primaryKey"                                              json:"id"`
	UserID       uint   `gorm:"not null;uniqueIndex:uniq_observation,priority:1"        json:"user_id"`
	NoticeTypeID uint   `gorm:"not null;uniqueIndex:uniq_observation,priority:2"        json:"notice_type_id"`
	ObservedType string `gorm:"type:varchar(50);not null;uniqueIndex:uniq_observation,priority:3;index:idx_observation_observed,priority:1" json:"observed_type"`
	ObservedID   uint   `gorm:"not null;uniqueIndex:uniq_observation,priority:4;index:idx_observation_observed,priority:2"                  json:"observed_id"`
	Send         bool   `gorm:"not null;default:true" json:"send"`
	// Added 创建时间，创建后不再更新
	Added time.Time `gorm:"not null;autoCreateTime" json:"added"`

	// 关联
	NoticeType *NoticeType `gorm:"foreignKey:NoticeTypeID" json:"notice_type,omitempty"`
}

// TableName 指定表名
func (Observation) TableName() string { return "observations" }

// ObservedRef 被观察对象的多态引用
func (o *Observation) ObservedRef() entity.Ref {
	return entity.Ref{Type: o.ObservedType, ID: o.ObservedID}
}
