package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"noticehub/internal/backend"
	"noticehub/internal/entity"
	"noticehub/internal/model"
	"noticehub/internal/repository"
)

// ── 观察关系模块业务错误 ──

var (
	// ErrUnobservable 对象未实现 entity.Identifiable，无法建立多态引用
	ErrUnobservable = errors.New("对象不可被观察")
)

// ObservationService 观察关系（订阅）业务接口
type ObservationService interface {
	// Observe 建立观察关系；逐 label 幂等，已存在时不重复创建
	Observe(ctx context.Context, observed any, observerID uint, labels ...string) error
	// StopObserving 解除观察关系；不存在时静默忽略
	StopObserving(ctx context.Context, observed any, observerID uint, labels ...string) error
	// IsObserving 是否在观察；匿名观察者恒为 false；多 label 为 AND 语义
	IsObserving(ctx context.Context, observed any, observerID uint, labels ...string) (bool, error)
	// ObserversOf 某对象在某 label 下的全部观察关系，最新优先
	ObserversOf(ctx context.Context, observed any, label string) ([]model.Observation, error)
	// GetObservations 观察者在任一 label 下观察的该类型实体去重集合
	GetObservations(ctx context.Context, observerID uint, observedType string, labels ...string) ([]any, error)
	// SendObservationNoticesFor 向某对象的全部观察者派发通知
	SendObservationNoticesFor(ctx context.Context, observed any, label string, extra map[string]any, exclude []uint, sender any) error
	// OnEntityDeleted 级联清理钩子：宿主须在删除实体存储前调用
	OnEntityDeleted(ctx context.Context, typeTag string, id uint) error
}

type observationService struct {
	repo     *repository.Repository
	types    RegistryService
	dispatch DispatchService
	resolver entity.Resolver // 可为 nil，GetObservations 退化为空结果
	logger   *zap.Logger
}

// NewObservationService 创建 ObservationService 实例
func NewObservationService(
	repo *repository.Repository,
	types RegistryService,
	dispatch DispatchService,
	resolver entity.Resolver,
	logger *zap.Logger,
) ObservationService {
	return &observationService{
		repo:     repo,
		types:    types,
		dispatch: dispatch,
		resolver: resolver,
		logger:   logger,
	}
}

// ────────────────────── Observe / StopObserving ──────────────────────

func (s *observationService) Observe(ctx context.Context, observed any, observerID uint, labels ...string) error {
	ref, ok := entity.RefOf(observed)
	if !ok {
		return ErrUnobservable
	}

	for _, label := range labels {
		watching, err := s.isObservingOne(ctx, ref, observerID, label)
		if err != nil {
			return err
		}
		if watching {
			continue
		}

		nt, err := s.types.GetByLabel(ctx, label)
		if err != nil {
			return err
		}

		obs := &model.Observation{
			UserID:       observerID,
			NoticeTypeID: nt.ID,
			ObservedType: ref.Type,
			ObservedID:   ref.ID,
			Send:         true,
		}
		// 唯一约束兜底：并发 Observe 同一关系时冲突即已存在，无需处理
		if _, err := s.repo.Observation.Create(ctx, obs); err != nil {
			s.logger.Error("创建观察关系失败",
				zap.Uint("observer_id", observerID),
				zap.String("observed", ref.String()),
				zap.String("label", label),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (s *observationService) StopObserving(ctx context.Context, observed any, observerID uint, labels ...string) error {
	ref, ok := entity.RefOf(observed)
	if !ok {
		return ErrUnobservable
	}

	for _, label := range labels {
		if err := s.repo.Observation.DeleteFor(ctx, ref, observerID, label); err != nil {
			s.logger.Error("删除观察关系失败",
				zap.Uint("observer_id", observerID),
				zap.String("observed", ref.String()),
				zap.String("label", label),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

// ────────────────────── IsObserving ──────────────────────

func (s *observationService) IsObserving(ctx context.Context, observed any, observerID uint, labels ...string) (bool, error) {
	// 匿名观察者恒为 false
	if observerID == 0 {
		return false, nil
	}

	ref, ok := entity.RefOf(observed)
	if !ok {
		return false, ErrUnobservable
	}

	for _, label := range labels {
		watching, err := s.isObservingOne(ctx, ref, observerID, label)
		if err != nil {
			return false, err
		}
		if !watching {
			return false, nil
		}
	}
	return true, nil
}

// isObservingOne 单 label 判定；重复行被容忍（取最新一条即视为存在）
func (s *observationService) isObservingOne(ctx context.Context, ref entity.Ref, observerID uint, label string) (bool, error) {
	if observerID == 0 {
		return false, nil
	}
	_, err := s.repo.Observation.GetFor(ctx, ref, observerID, label)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *observationService) ObserversOf(ctx context.Context, observed any, label string) ([]model.Observation, error) {
	ref, ok := entity.RefOf(observed)
	if !ok {
		return nil, ErrUnobservable
	}
	return s.repo.Observation.ObserversOf(ctx, ref, label)
}

func (s *observationService) GetObservations(ctx context.Context, observerID uint, observedType string, labels ...string) ([]any, error) {
	if observerID == 0 {
		return nil, nil
	}

	observations, err := s.repo.Observation.ListByObserver(ctx, observerID, observedType, labels)
	if err != nil {
		return nil, err
	}

	// 同一实体可能在多个 label 下被观察，按引用去重后再解析
	seen := make(map[entity.Ref]bool, len(observations))
	elements := make([]any, 0, len(observations))
	for i := range observations {
		ref := observations[i].ObservedRef()
		if seen[ref] {
			continue
		}
		seen[ref] = true

		if s.resolver == nil {
			continue
		}
		v, err := s.resolver.Resolve(ctx, ref)
		if err != nil {
			// 实体可能已被宿主删除而钩子未触发，跳过即可
			s.logger.Warn("解析被观察对象失败", zap.String("ref", ref.String()), zap.Error(err))
			continue
		}
		elements = append(elements, v)
	}
	return elements, nil
}

// ────────────────────── SendObservationNoticesFor ──────────────────────

func (s *observationService) SendObservationNoticesFor(ctx context.Context, observed any, label string, extra map[string]any, exclude []uint, sender any) error {
	// label 未注册与直接 Send 一样硬失败
	if _, err := s.types.GetByLabel(ctx, label); err != nil {
		return err
	}

	observations, err := s.ObserversOf(ctx, observed, label)
	if err != nil {
		return err
	}

	excluded := make(map[uint]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	for i := range observations {
		obs := &observations[i]
		if !obs.Send || excluded[obs.UserID] {
			continue
		}
		s.sendNotice(ctx, obs, observed, label, extra, sender)
	}
	return nil
}

// sendNotice 向单个观察者派发；失败只记录，不影响其余观察者
func (s *observationService) sendNotice(ctx context.Context, obs *model.Observation, observed any, label string, extra map[string]any, sender any) {
	user, err := s.repo.User.GetByID(ctx, obs.UserID)
	if err != nil {
		s.logger.Warn("观察者用户不存在，跳过派发",
			zap.Uint("observer_id", obs.UserID),
			zap.String("label", label),
			zap.Error(err),
		)
		return
	}

	// 每个观察者独立一份上下文
	xc := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		xc[k] = v
	}
	xc[backend.CtxObserved] = observed

	// 未显式指定 sender 时默认为被观察对象本身，并提示展示层换用观察措辞
	snd := sender
	if snd == nil {
		snd = observed
		xc[backend.CtxAlterDesc] = true
	}

	if err := s.dispatch.Send(ctx, []model.User{*user}, label, xc, snd); err != nil {
		s.logger.Error("观察通知派发失败",
			zap.Uint("observer_id", obs.UserID),
			zap.String("label", label),
			zap.Error(err),
		)
	}
}

// ────────────────────── OnEntityDeleted ──────────────────────

func (s *observationService) OnEntityDeleted(ctx context.Context, typeTag string, id uint) error {
	ref := entity.Ref{Type: typeTag, ID: id}
	deleted, err := s.repo.Observation.DeleteByObserved(ctx, ref)
	if err != nil {
		s.logger.Error("级联清理观察关系失败", zap.String("ref", ref.String()), zap.Error(err))
		return err
	}
	if deleted > 0 {
		s.logger.Info("级联清理观察关系",
			zap.String("ref", ref.String()),
			zap.Int64("deleted", deleted),
		)
	}
	return nil
}
