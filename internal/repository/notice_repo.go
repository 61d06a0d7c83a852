package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"noticehub/internal/model"
)

// NoticeRepository 站内信数据访问接口
type NoticeRepository interface {
	Create(ctx context.Context, notice *model.Notice) error
	GetByID(ctx context.Context, id uint) (*model.Notice, error)
	// ListForRecipient 用户的全部未归档通知，按时间倒序；limit <= 0 表示不限制
	ListForRecipient(ctx context.Context, userID uint, limit int) ([]model.Notice, error)
	// ListUnseenOrRecent 未读或 since 之后新增的未归档通知
	ListUnseenOrRecent(ctx context.Context, userID uint, since time.Time) ([]model.Notice, error)
	Update(ctx context.Context, notice *model.Notice) error
	Delete(ctx context.Context, id uint) error
	MarkAllSeen(ctx context.Context, userID uint) error
}

// noticeRepo NoticeRepository 的 GORM 实现
type noticeRepo struct {
	db *gorm.DB
}

// NewNoticeRepo 创建 NoticeRepository 实例
func NewNoticeRepo(db *gorm.DB) NoticeRepository {
	return &noticeRepo{db: db}
}

func (r *noticeRepo) Create(ctx context.Context, notice *model.Notice) error {
	return r.db.WithContext(ctx).Create(notice).Error
}

func (r *noticeRepo) GetByID(ctx context.Context, id uint) (*model.Notice, error) {
	var notice model.Notice
	err := r.db.WithContext(ctx).
		Preload("NoticeType").
		Where("id = ?", id).
		First(&notice).Error
	if err != nil {
		return nil, err
	}
	return &notice, nil
}

func (r *noticeRepo) ListForRecipient(ctx context.Context, userID uint, limit int) ([]model.Notice, error) {
	var notices []model.Notice
	db := r.db.WithContext(ctx).
		Preload("NoticeType").
		Where("recipient_id = ? AND archived = ?", userID, false).
		Order("added DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&notices).Error; err != nil {
		return nil, err
	}
	return notices, nil
}

func (r *noticeRepo) ListUnseenOrRecent(ctx context.Context, userID uint, since time.Time) ([]model.Notice, error) {
	var notices []model.Notice
	err := r.db.WithContext(ctx).
		Preload("NoticeType").
		Where("recipient_id = ? AND archived = ?", userID, false).
		Where("unseen = ? OR added > ?", true, since).
		Order("added DESC").
		Find(&notices).Error
	if err != nil {
		return nil, err
	}
	return notices, nil
}

func (r *noticeRepo) Update(ctx context.Context, notice *model.Notice) error {
	return r.db.WithContext(ctx).Save(notice).Error
}

func (r *noticeRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Notice{}, id).Error
}

func (r *noticeRepo) MarkAllSeen(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&model.Notice{}).
		Where("recipient_id = ? AND unseen = ?", userID, true).
		Update("unseen", false).Error
}
