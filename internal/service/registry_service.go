package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"noticehub/internal/model"
	"noticehub/internal/repository"
	"noticehub/pkg/redis"
)

// ── 通知类型模块业务错误 ──

var (
	// ErrNoticeTypeNotFound 向未注册 label 派发属于编程错误，调用方必须硬失败
	ErrNoticeTypeNotFound = errors.New("通知类型不存在")
)

// RegistryService 通知类型注册表业务接口
type RegistryService interface {
	// CreateOrUpdate 按 label 幂等 upsert；返回是否发生了写入
	CreateOrUpdate(ctx context.Context, label, display, description string, defaultSensitivity int) (bool, error)
	GetByLabel(ctx context.Context, label string) (*model.NoticeType, error)
	List(ctx context.Context) ([]model.NoticeType, error)
}

type registryService struct {
	repo   *repository.Repository
	cache  *redis.Client // 可为 nil，降级为纯 DB 读取
	logger *zap.Logger
}

// NewRegistryService 创建 RegistryService 实例
func NewRegistryService(repo *repository.Repository, cache *redis.Client, logger *zap.Logger) RegistryService {
	return &registryService{repo: repo, cache: cache, logger: logger}
}

// ────────────────────── CreateOrUpdate ──────────────────────

func (s *registryService) CreateOrUpdate(ctx context.Context, label, display, description string, defaultSensitivity int) (bool, error) {
	nt, err := s.repo.NoticeType.GetByLabel(ctx, label)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询通知类型失败", zap.String("label", label), zap.Error(err))
			return false, err
		}

		nt = &model.NoticeType{
			Label:              label,
			Display:            display,
			Description:        description,
			DefaultSensitivity: defaultSensitivity,
		}
		if err := s.repo.NoticeType.Create(ctx, nt); err != nil {
			s.logger.Error("创建通知类型失败", zap.String("label", label), zap.Error(err))
			return false, err
		}
		s.invalidate(ctx, label)
		return true, nil
	}

	// 仅在字段有差异时写库
	updated := false
	if nt.Display != display {
		nt.Display = display
		updated = true
	}
	if nt.Description != description {
		nt.Description = description
		updated = true
	}
	if nt.DefaultSensitivity != defaultSensitivity {
		nt.DefaultSensitivity = defaultSensitivity
		updated = true
	}
	if !updated {
		return false, nil
	}

	if err := s.repo.NoticeType.Update(ctx, nt); err != nil {
		s.logger.Error("更新通知类型失败", zap.String("label", label), zap.Error(err))
		return false, err
	}
	s.invalidate(ctx, label)
	return true, nil
}

// ────────────────────── GetByLabel ──────────────────────

func (s *registryService) GetByLabel(ctx context.Context, label string) (*model.NoticeType, error) {
	if s.cache != nil {
		nt, err := s.cache.GetNoticeType(ctx, label)
		if err != nil {
			// 缓存故障降级为 DB 读取
			s.logger.Warn("通知类型缓存读取失败", zap.String("label", label), zap.Error(err))
		} else if nt != nil {
			return nt, nil
		}
	}

	nt, err := s.repo.NoticeType.GetByLabel(ctx, label)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoticeTypeNotFound
		}
		s.logger.Error("查询通知类型失败", zap.String("label", label), zap.Error(err))
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetNoticeType(ctx, nt); err != nil {
			s.logger.Warn("通知类型缓存写入失败", zap.String("label", label), zap.Error(err))
		}
	}

	return nt, nil
}

func (s *registryService) List(ctx context.Context) ([]model.NoticeType, error) {
	return s.repo.NoticeType.List(ctx)
}

func (s *registryService) invalidate(ctx context.Context, label string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateNoticeType(ctx, label); err != nil {
		s.logger.Warn("通知类型缓存失效失败", zap.String("label", label), zap.Error(err))
	}
}
