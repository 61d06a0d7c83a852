package repository

import (
	"context"

	"gorm.io/gorm"

	"noticehub/internal/model"
)

// NoticeTypeRepository 通知类型数据访问接口
type NoticeTypeRepository interface {
	Create(ctx context.Context, nt *model.NoticeType) error
	GetByLabel(ctx context.Context, label string) (*model.NoticeType, error)
	Update(ctx context.Context, nt *model.NoticeType) error
	List(ctx context.Context) ([]model.NoticeType, error)
}

// noticeTypeRepo NoticeTypeRepository 的 GORM 实现
type noticeTypeRepo struct {
	db *gorm.DB
}

// NewNoticeTypeRepo 创建 NoticeTypeRepository 实例
func NewNoticeTypeRepo(db *gorm.DB) NoticeTypeRepository {
	return &noticeTypeRepo{db: db}
}

func (r *noticeTypeRepo) Create(ctx context.Context, nt *model.NoticeType) error {
	return r.db.WithContext(ctx).Create(nt).Error
}

func (r *noticeTypeRepo) GetByLabel(ctx context.Context, label string) (*model.NoticeType, error) {
	var nt model.NoticeType
	err := r.db.WithContext(ctx).
		Where("label = ?", label).
		First(&nt).Error
	if err != nil {
		return nil, err
	}
	return &nt, nil
}

func (r *noticeTypeRepo) Update(ctx context.Context, nt *model.NoticeType) error {
	return r.db.WithContext(ctx).Save(nt).Error
}

func (r *noticeTypeRepo) List(ctx context.Context) ([]model.NoticeType, error) {
	var types []model.NoticeType
	err := r.db.WithContext(ctx).
		Order("label ASC").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}
