package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"noticehub/internal/model"
)

// NoticeSettingRepository 投递偏好数据访问接口
type NoticeSettingRepository interface {
	Get(ctx context.Context, userID, noticeTypeID uint, medium string) (*model.NoticeSetting, error)
	// GetOrCreate 原子化 get-or-create：并发首次访问同一三元组时依赖唯一约束，
	// 插入冲突视为"别人已创建"，重读并返回胜出行。
	GetOrCreate(ctx context.Context, setting *model.NoticeSetting) (*model.NoticeSetting, error)
	Update(ctx context.Context, setting *model.NoticeSetting) error
	DisableAll(ctx context.Context, userID uint, medium string) error
}

// noticeSettingRepo NoticeSettingRepository 的 GORM 实现
type noticeSettingRepo struct {
	db *gorm.DB
}

// NewNoticeSettingRepo 创建 NoticeSettingRepository 实例
func NewNoticeSettingRepo(db *gorm.DB) NoticeSettingRepository {
	return &noticeSettingRepo{db: db}
}

func (r *noticeSettingRepo) Get(ctx context.Context, userID, noticeTypeID uint, medium string) (*model.NoticeSetting, error) {
	var setting model.NoticeSetting
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND notice_type_id = ? AND medium = ?", userID, noticeTypeID, medium).
		First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *noticeSettingRepo) GetOrCreate(ctx context.Context, setting *model.NoticeSetting) (*model.NoticeSetting, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "notice_type_id"}, {Name: "medium"},
			},
			DoNothing: true,
		}).
		Create(setting)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return setting, nil
	}
	// 冲突：并发创建已落库，重读胜出行
	return r.Get(ctx, setting.UserID, setting.NoticeTypeID, setting.Medium)
}

func (r *noticeSettingRepo) Update(ctx context.Context, setting *model.NoticeSetting) error {
	return r.db.WithContext(ctx).Save(setting).Error
}

func (r *noticeSettingRepo) DisableAll(ctx context.Context, userID uint, medium string) error {
	return r.db.WithContext(ctx).
		Model(&model.NoticeSetting{}).
		Where("user_id = ? AND medium = ?", userID, medium).
		Update("send", false).Error
}
