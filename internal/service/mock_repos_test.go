package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"noticehub/internal/entity"
	"noticehub/internal/model"
)

// mockClock 单调递增的假时间，保证 Added 排序可预测
type mockClock struct {
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *mockClock) next() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

// ── Mock NoticeTypeRepository ──

type mockNoticeTypeRepo struct {
	types       map[string]*model.NoticeType
	nextID      uint
	createCalls int
	updateCalls int
}

func newMockNoticeTypeRepo() *mockNoticeTypeRepo {
	return &mockNoticeTypeRepo{types: make(map[string]*model.NoticeType)}
}

func (m *mockNoticeTypeRepo) Create(_ context.Context, nt *model.NoticeType) error {
	m.createCalls++
	m.nextID++
	nt.ID = m.nextID
	cp := *nt
	m.types[nt.Label] = &cp
	return nil
}

func (m *mockNoticeTypeRepo) GetByLabel(_ context.Context, label string) (*model.NoticeType, error) {
	if nt, ok := m.types[label]; ok {
		cp := *nt
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNoticeTypeRepo) Update(_ context.Context, nt *model.NoticeType) error {
	m.updateCalls++
	cp := *nt
	m.types[nt.Label] = &cp
	return nil
}

func (m *mockNoticeTypeRepo) List(_ context.Context) ([]model.NoticeType, error) {
	labels := make([]string, 0, len(m.types))
	for l := range m.types {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	result := make([]model.NoticeType, 0, len(labels))
	for _, l := range labels {
		result = append(result, *m.types[l])
	}
	return result, nil
}

func (m *mockNoticeTypeRepo) byID(id uint) *model.NoticeType {
	for _, nt := range m.types {
		if nt.ID == id {
			return nt
		}
	}
	return nil
}

func (m *mockNoticeTypeRepo) idsFor(labels ...string) map[uint]bool {
	ids := make(map[uint]bool)
	for _, l := range labels {
		if nt, ok := m.types[l]; ok {
			ids[nt.ID] = true
		}
	}
	return ids
}

// ── Mock NoticeSettingRepository ──

type mockNoticeSettingRepo struct {
	settings    map[string]*model.NoticeSetting
	nextID      uint
	createCalls int
}

func newMockNoticeSettingRepo() *mockNoticeSettingRepo {
	return &mockNoticeSettingRepo{settings: make(map[string]*model.NoticeSetting)}
}

func settingKey(userID, noticeTypeID uint, medium string) string {
	return fmt.Sprintf("%d:%d:%s", userID, noticeTypeID, medium)
}

func (m *mockNoticeSettingRepo) Get(_ context.Context, userID, noticeTypeID uint, medium string) (*model.NoticeSetting, error) {
	if s, ok := m.settings[settingKey(userID, noticeTypeID, medium)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNoticeSettingRepo) GetOrCreate(ctx context.Context, setting *model.NoticeSetting) (*model.NoticeSetting, error) {
	key := settingKey(setting.UserID, setting.NoticeTypeID, setting.Medium)
	if existing, ok := m.settings[key]; ok {
		// 唯一约束冲突 → 返回胜出行
		cp := *existing
		return &cp, nil
	}
	m.createCalls++
	m.nextID++
	setting.ID = m.nextID
	cp := *setting
	m.settings[key] = &cp
	return setting, nil
}

func (m *mockNoticeSettingRepo) Update(_ context.Context, setting *model.NoticeSetting) error {
	key := settingKey(setting.UserID, setting.NoticeTypeID, setting.Medium)
	cp := *setting
	m.settings[key] = &cp
	return nil
}

func (m *mockNoticeSettingRepo) DisableAll(_ context.Context, userID uint, medium string) error {
	for _, s := range m.settings {
		if s.UserID == userID && s.Medium == medium {
			s.Send = false
		}
	}
	return nil
}

// ── Mock ObservationRepository ──

type mockObservationRepo struct {
	observations []*model.Observation
	types        *mockNoticeTypeRepo
	clock        *mockClock
	nextID       uint
}

func newMockObservationRepo(types *mockNoticeTypeRepo, clock *mockClock) *mockObservationRepo {
	return &mockObservationRepo{types: types, clock: clock}
}

func (m *mockObservationRepo) Create(_ context.Context, obs *model.Observation) (bool, error) {
	for _, o := range m.observations {
		if o.UserID == obs.UserID && o.NoticeTypeID == obs.NoticeTypeID &&
			o.ObservedType == obs.ObservedType && o.ObservedID == obs.ObservedID {
			return false, nil
		}
	}
	m.nextID++
	obs.ID = m.nextID
	obs.Added = m.clock.next()
	cp := *obs
	m.observations = append(m.observations, &cp)
	return true, nil
}

func (m *mockObservationRepo) GetFor(_ context.Context, observed entity.Ref, observerID uint, label string) (*model.Observation, error) {
	ids := m.types.idsFor(label)
	var latest *model.Observation
	for _, o := range m.observations {
		if o.UserID == observerID && o.ObservedType == observed.Type && o.ObservedID == observed.ID && ids[o.NoticeTypeID] {
			if latest == nil || o.Added.After(latest.Added) {
				latest = o
			}
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockObservationRepo) ObserversOf(_ context.Context, observed entity.Ref, label string) ([]model.Observation, error) {
	ids := m.types.idsFor(label)
	var result []model.Observation
	for _, o := range m.observations {
		if o.ObservedType == observed.Type && o.ObservedID == observed.ID && ids[o.NoticeTypeID] {
			cp := *o
			cp.NoticeType = m.types.byID(o.NoticeTypeID)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Added.After(result[j].Added) })
	return result, nil
}

func (m *mockObservationRepo) DeleteFor(_ context.Context, observed entity.Ref, observerID uint, label string) error {
	ids := m.types.idsFor(label)
	kept := m.observations[:0]
	for _, o := range m.observations {
		if o.UserID == observerID && o.ObservedType == observed.Type && o.ObservedID == observed.ID && ids[o.NoticeTypeID] {
			continue
		}
		kept = append(kept, o)
	}
	m.observations = kept
	return nil
}

func (m *mockObservationRepo) ListByObserver(_ context.Context, observerID uint, observedType string, labels []string) ([]model.Observation, error) {
	ids := m.types.idsFor(labels...)
	var result []model.Observation
	for _, o := range m.observations {
		if o.UserID == observerID && o.ObservedType == observedType && ids[o.NoticeTypeID] {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *mockObservationRepo) DeleteByObserved(_ context.Context, observed entity.Ref) (int64, error) {
	var deleted int64
	kept := m.observations[:0]
	for _, o := range m.observations {
		if o.ObservedType == observed.Type && o.ObservedID == observed.ID {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	m.observations = kept
	return deleted, nil
}

// ── Mock NoticeRepository ──

type mockNoticeRepo struct {
	notices map[uint]*model.Notice
	types   *mockNoticeTypeRepo
	clock   *mockClock
	nextID  uint
}

func newMockNoticeRepo(types *mockNoticeTypeRepo, clock *mockClock) *mockNoticeRepo {
	return &mockNoticeRepo{notices: make(map[uint]*model.Notice), types: types, clock: clock}
}

func (m *mockNoticeRepo) Create(_ context.Context, notice *model.Notice) error {
	m.nextID++
	notice.ID = m.nextID
	notice.Added = m.clock.next()
	cp := *notice
	m.notices[notice.ID] = &cp
	return nil
}

func (m *mockNoticeRepo) GetByID(_ context.Context, id uint) (*model.Notice, error) {
	n, ok := m.notices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	cp.NoticeType = m.types.byID(n.NoticeTypeID)
	return &cp, nil
}

func (m *mockNoticeRepo) forRecipient(userID uint) []model.Notice {
	var result []model.Notice
	for _, n := range m.notices {
		if n.RecipientID == userID && !n.Archived {
			cp := *n
			cp.NoticeType = m.types.byID(n.NoticeTypeID)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Added.After(result[j].Added) })
	return result
}

func (m *mockNoticeRepo) ListForRecipient(_ context.Context, userID uint, limit int) ([]model.Notice, error) {
	result := m.forRecipient(userID)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockNoticeRepo) ListUnseenOrRecent(_ context.Context, userID uint, since time.Time) ([]model.Notice, error) {
	var result []model.Notice
	for _, n := range m.forRecipient(userID) {
		if n.Unseen || n.Added.After(since) {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *mockNoticeRepo) Update(_ context.Context, notice *model.Notice) error {
	cp := *notice
	cp.NoticeType = nil
	m.notices[notice.ID] = &cp
	return nil
}

func (m *mockNoticeRepo) Delete(_ context.Context, id uint) error {
	delete(m.notices, id)
	return nil
}

func (m *mockNoticeRepo) MarkAllSeen(_ context.Context, userID uint) error {
	for _, n := range m.notices {
		if n.RecipientID == userID {
			n.Unseen = false
		}
	}
	return nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[uint]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uint]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uint) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context) ([]model.User, error) {
	ids := make([]uint, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]model.User, 0, len(ids))
	for _, id := range ids {
		result = append(result, *m.users[id])
	}
	return result, nil
}
