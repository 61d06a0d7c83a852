package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"noticehub/internal/entity"
	"noticehub/internal/model"
)

// ObservationRepository 观察关系数据访问接口
type ObservationRepository interface {
	// Create 幂等插入；返回是否真正新增了一行
	Create(ctx context.Context, obs *model.Observation) (bool, error)
	// GetFor 观察者与被观察对象在某 label 下的观察关系；存在重复行时返回最新一条
	GetFor(ctx context.Context, observed entity.Ref, observerID uint, label string) (*model.Observation, error)
	// ObserversOf 某对象在某 label 下的全部观察关系，按创建时间倒序
	ObserversOf(ctx context.Context, observed entity.Ref, label string) ([]model.Observation, error)
	// DeleteFor 删除匹配的观察关系；不存在时不报错
	DeleteFor(ctx context.Context, observed entity.Ref, observerID uint, label string) error
	// ListByObserver 观察者在某实体类型、任一 label 下的全部观察关系
	ListByObserver(ctx context.Context, observerID uint, observedType string, labels []string) ([]model.Observation, error)
	// DeleteByObserved 级联清理：删除引用某被观察对象的全部观察关系
	DeleteByObserved(ctx context.Context, observed entity.Ref) (int64, error)
}

// observationRepo ObservationRepository 的 GORM 实现
type observationRepo struct {
	db *gorm.DB
}

// NewObservationRepo 创建 ObservationRepository 实例
func NewObservationRepo(db *gorm.DB) ObservationRepository {
	return &observationRepo{db: db}
}

// labelSubquery 按 label 定位通知类型 ID 的子查询
func (r *observationRepo) labelSubquery(ctx context.Context, labels ...string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.NoticeType{}).
		Select("id").
		Where("label IN ?", labels)
}

func (r *observationRepo) Create(ctx context.Context, obs *model.Observation) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "notice_type_id"},
				{Name: "observed_type"}, {Name: "observed_id"},
			},
			DoNothing: true,
		}).
		Create(obs)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *observationRepo) GetFor(ctx context.Context, observed entity.Ref, observerID uint, label string) (*model.Observation, error) {
	var obs model.Observation
	err := r.db.WithContext(ctx).
		Where("observed_type = ? AND observed_id = ? AND user_id = ?", observed.Type, observed.ID, observerID).
		Where("notice_type_id IN (?)", r.labelSubquery(ctx, label)).
		Order("added DESC").
		First(&obs).Error
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

func (r *observationRepo) ObserversOf(ctx context.Context, observed entity.Ref, label string) ([]model.Observation, error) {
	var observations []model.Observation
	err := r.db.WithContext(ctx).
		Preload("NoticeType").
		Where("observed_type = ? AND observed_id = ?", observed.Type, observed.ID).
		Where("notice_type_id IN (?)", r.labelSubquery(ctx, label)).
		Order("added DESC").
		Find(&observations).Error
	if err != nil {
		return nil, err
	}
	return observations, nil
}

func (r *observationRepo) DeleteFor(ctx context.Context, observed entity.Ref, observerID uint, label string) error {
	return r.db.WithContext(ctx).
		Where("observed_type = ? AND observed_id = ? AND user_id = ?", observed.Type, observed.ID, observerID).
		Where("notice_type_id IN (?)", r.labelSubquery(ctx, label)).
		Delete(&model.Observation{}).Error
}

func (r *observationRepo) ListByObserver(ctx context.Context, observerID uint, observedType string, labels []string) ([]model.Observation, error) {
	var observations []model.Observation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND observed_type = ?", observerID, observedType).
		Where("notice_type_id IN (?)", r.labelSubquery(ctx, labels...)).
		Find(&observations).Error
	if err != nil {
		return nil, err
	}
	return observations, nil
}

func (r *observationRepo) DeleteByObserved(ctx context.Context, observed entity.Ref) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("observed_type = ? AND observed_id = ?", observed.Type, observed.ID).
		Delete(&model.Observation{})
	return res.RowsAffected, res.Error
}
