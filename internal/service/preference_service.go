package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"noticehub/internal/backend"
	"noticehub/internal/dto"
	"noticehub/internal/model"
	"noticehub/internal/repository"
	"noticehub/pkg/signing"
)

// ── 投递偏好模块业务错误 ──

var (
	ErrUnknownMedium = errors.New("未知投递通道")
	ErrUserNotFound  = errors.New("用户不存在")
	// ErrInvalidToken 退订令牌校验失败（篡改 / 格式错误 / 用户不存在统一按未找到处理）
	ErrInvalidToken = errors.New("退订令牌无效")
)

// PreferenceService 投递偏好业务接口
type PreferenceService interface {
	// ResolveSetting 查询偏好；首次访问按默认规则创建并持久化
	ResolveSetting(ctx context.Context, userID uint, nt *model.NoticeType, mediumID byte) (*model.NoticeSetting, error)
	ShouldSend(ctx context.Context, userID uint, nt *model.NoticeType, mediumID byte) (bool, error)
	// UpdateSetting 显式覆盖偏好（偏好管理页 / 退订流程使用）
	UpdateSetting(ctx context.Context, userID uint, nt *model.NoticeType, mediumID byte, send bool) error
	// SettingsTable 偏好管理页数据：通知类型 × 通道矩阵，缺失项按默认规则补齐
	SettingsTable(ctx context.Context, userID uint) (*dto.SettingsTable, error)
	// ApplySettingsForm 按 "<label>_<medium>" 键批量覆盖；返回是否有变更
	ApplySettingsForm(ctx context.Context, userID uint, form map[string]bool) (bool, error)
	// Unsubscribe 退订：校验令牌并关闭该用户在指定通道下的全部偏好
	Unsubscribe(ctx context.Context, mediumName, token string) error
}

type preferenceService struct {
	repo     *repository.Repository
	registry *backend.Registry
	types    RegistryService
	signer   *signing.Manager
	logger   *zap.Logger
}

// NewPreferenceService 创建 PreferenceService 实例
func NewPreferenceService(
	repo *repository.Repository,
	registry *backend.Registry,
	types RegistryService,
	signer *signing.Manager,
	logger *zap.Logger,
) PreferenceService {
	return &preferenceService{
		repo:     repo,
		registry: registry,
		types:    types,
		signer:   signer,
		logger:   logger,
	}
}

// ────────────────────── ResolveSetting ──────────────────────

func (s *preferenceService) ResolveSetting(ctx context.Context, userID uint, nt *model.NoticeType, mediumID byte) (*model.NoticeSetting, error) {
	medium := string(mediumID)

	setting, err := s.repo.NoticeSetting.Get(ctx, userID, nt.ID, medium)
	if err == nil {
		return setting, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询投递偏好失败",
			zap.Uint("user_id", userID),
			zap.String("label", nt.Label),
			zap.String("medium", medium),
			zap.Error(err),
		)
		return nil, err
	}

	// 首次访问：默认开关 = 通道敏感度 <= 类型默认阈值，落库后成为用户可独立编辑的偏好
	sensitivity, ok := s.registry.MinSensitivity(mediumID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMedium, medium)
	}

	setting = &model.NoticeSetting{
		UserID:       userID,
		NoticeTypeID: nt.ID,
		Medium:       medium,
		Send:         sensitivity <= nt.DefaultSensitivity,
	}
	persisted, err := s.repo.NoticeSetting.GetOrCreate(ctx, setting)
	if err != nil {
		s.logger.Error("创建默认投递偏好失败",
			zap.Uint("user_id", userID),
			zap.String("label", nt.Label),
			zap.String("medium", medium),
			zap.Error(err),
		)
		return nil, err
	}
	return persisted, nil
}

func (s *preferenceService) ShouldSend(ctx context.Context, userID uint, nt *model.NoticeType, mediumID byte) (bool, error) {
	setting, err := s.ResolveSetting(ctx, userID, nt, mediumID)
	if err != nil {
		return false, err
	}
	return setting.Send, nil
}

// ────────────────────── UpdateSetting ──────────────────────

func (s *preferenceService) UpdateSetting(ctx context.Context, userID uint, nt *model.NoticeType, mediumID byte, send bool) error {
	setting, err := s.ResolveSetting(ctx, userID, nt, mediumID)
	if err != nil {
		return err
	}
	if setting.Send == send {
		return nil
	}
	setting.Send = send
	return s.repo.NoticeSetting.Update(ctx, setting)
}

// ────────────────────── SettingsTable ──────────────────────

func (s *preferenceService) SettingsTable(ctx context.Context, userID uint) (*dto.SettingsTable, error) {
	types, err := s.types.List(ctx)
	if err != nil {
		s.logger.Error("查询通知类型列表失败", zap.Error(err))
		return nil, err
	}

	keys := s.registry.Keys()
	table := &dto.SettingsTable{
		ColumnHeaders: make([]string, 0, len(keys)),
		Rows:          make([]dto.SettingsRow, 0, len(types)),
	}
	for _, key := range keys {
		table.ColumnHeaders = append(table.ColumnHeaders, key.Label)
	}

	for i := range types {
		nt := &types[i]
		row := dto.SettingsRow{
			Label:       nt.Label,
			Display:     nt.Display,
			Description: nt.Description,
			Cells:       make([]dto.SettingCell, 0, len(keys)),
		}
		for _, key := range keys {
			setting, err := s.ResolveSetting(ctx, userID, nt, key.MediumID)
			if err != nil {
				return nil, err
			}
			row.Cells = append(row.Cells, dto.SettingCell{
				FormLabel: formLabel(nt.Label, key.MediumID),
				Send:      setting.Send,
			})
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func (s *preferenceService) ApplySettingsForm(ctx context.Context, userID uint, form map[string]bool) (bool, error) {
	types, err := s.types.List(ctx)
	if err != nil {
		return false, err
	}

	changed := false
	for i := range types {
		nt := &types[i]
		for _, key := range s.registry.Keys() {
			send, ok := form[formLabel(nt.Label, key.MediumID)]
			if !ok {
				continue
			}
			setting, err := s.ResolveSetting(ctx, userID, nt, key.MediumID)
			if err != nil {
				return changed, err
			}
			if setting.Send == send {
				continue
			}
			setting.Send = send
			if err := s.repo.NoticeSetting.Update(ctx, setting); err != nil {
				return changed, err
			}
			changed = true
		}
	}
	return changed, nil
}

func formLabel(label string, mediumID byte) string {
	return fmt.Sprintf("%s_%c", label, mediumID)
}

// ────────────────────── Unsubscribe ──────────────────────

func (s *preferenceService) Unsubscribe(ctx context.Context, mediumName, token string) error {
	userID, err := s.signer.VerifyUnsubscribe(token)
	if err != nil {
		return ErrInvalidToken
	}

	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}

	mediumID, err := s.registry.MediumByName(mediumName)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownMedium, mediumName)
	}

	if err := s.repo.NoticeSetting.DisableAll(ctx, userID, string(mediumID)); err != nil {
		s.logger.Error("批量关闭投递偏好失败",
			zap.Uint("user_id", userID),
			zap.String("medium", mediumName),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("用户已退订通道",
		zap.Uint("user_id", userID),
		zap.String("medium", mediumName),
	)
	return nil
}
