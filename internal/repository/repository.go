package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User          UserRepository
	NoticeType    NoticeTypeRepository
	NoticeSetting NoticeSettingRepository
	Observation   ObservationRepository
	Notice        NoticeRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:          NewUserRepo(db),
		NoticeType:    NewNoticeTypeRepo(db),
		NoticeSetting: NewNoticeSettingRepo(db),
		Observation:   NewObservationRepo(db),
		Notice:        NewNoticeRepo(db),
	}
}
