package service

import (
	"go.uber.org/zap"

	"noticehub/config"
	"noticehub/internal/backend"
	"noticehub/internal/repository"
	"noticehub/pkg/redis"
	"noticehub/pkg/signing"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Registry    RegistryService
	Preference  PreferenceService
	Dispatch    DispatchService
	Observation ObservationService
	Feed        FeedService
}

// NewService 创建 Service 聚合
// cache 可为 nil（Redis 不可用时降级）；host 各字段可为 nil（对应能力降级）。
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	registry *backend.Registry,
	signer *signing.Manager,
	cache *redis.Client,
	host Host,
	logger *zap.Logger,
) *Service {
	if host.Languages == nil {
		host.Languages = NewUserLanguageStore(repo.User)
	}

	types := NewRegistryService(repo, cache, logger)
	prefs := NewPreferenceService(repo, registry, types, signer, logger)
	dispatch := NewDispatchService(
		repo, registry, types, prefs, signer, host,
		cfg.Server.BaseURL, cfg.Notification.NoticesPath,
		logger,
	)

	return &Service{
		Registry:    types,
		Preference:  prefs,
		Dispatch:    dispatch,
		Observation: NewObservationService(repo, types, dispatch, host.Resolver, logger),
		Feed:        NewFeedService(repo, host.Routes, logger),
	}
}
