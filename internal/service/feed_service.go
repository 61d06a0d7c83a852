package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"noticehub/internal/dto"
	"noticehub/internal/model"
	"noticehub/internal/repository"
	"noticehub/pkg/routes"
)

// ── 站内信模块业务错误 ──

var (
	// ErrNoticeNotFound 通知不存在或当前用户无权访问（不区分，避免泄露存在性）
	ErrNoticeNotFound = errors.New("通知不存在")
	// ErrPathUnresolved 无法为通知解析出可跳转的 sender 路径
	ErrPathUnresolved = errors.New("无法解析跳转路径")
)

// 通知列表页的"近期"窗口与最小展示条数
const (
	recentWindow   = 3 * 24 * time.Hour
	minIndexLength = 10
)

// FeedService 站内信查询与维护业务接口
type FeedService interface {
	// NoticesFor 通知列表：all 为 false 时只取未读或近期，且不足 minIndexLength 条时补齐最新
	NoticesFor(ctx context.Context, userID uint, all bool) ([]dto.NoticeResponse, error)
	// Single 单条通知详情；markSeen 为 true 时顺带标记已读
	Single(ctx context.Context, userID, noticeID uint, markSeen bool) (*model.Notice, error)
	// SenderURL 标记已读并返回 sender 的跳转路径；override 优先，其次存储的 sender 引用
	SenderURL(ctx context.Context, userID, noticeID uint, override string) (string, error)
	// Archive 归档；仅收件人或超级用户可操作
	Archive(ctx context.Context, callerID, noticeID uint) error
	// Delete 删除；仅收件人或超级用户可操作
	Delete(ctx context.Context, callerID, noticeID uint) error
	MarkAllSeen(ctx context.Context, userID uint) error
}

type feedService struct {
	repo   *repository.Repository
	routes routes.Resolver // 可为 nil，SenderURL 仅做存在性兜底
	logger *zap.Logger
}

// NewFeedService 创建 FeedService 实例
func NewFeedService(repo *repository.Repository, router routes.Resolver, logger *zap.Logger) FeedService {
	return &feedService{repo: repo, routes: router, logger: logger}
}

// ────────────────────── NoticesFor ──────────────────────

func (s *feedService) NoticesFor(ctx context.Context, userID uint, all bool) ([]dto.NoticeResponse, error) {
	var (
		notices []model.Notice
		err     error
	)

	if all {
		notices, err = s.repo.Notice.ListForRecipient(ctx, userID, 0)
	} else {
		since := time.Now().Add(-recentWindow)
		notices, err = s.repo.Notice.ListUnseenOrRecent(ctx, userID, since)
		if err == nil && len(notices) < minIndexLength {
			// 新通知太少时退回最新 N 条，避免列表页空荡
			notices, err = s.repo.Notice.ListForRecipient(ctx, userID, minIndexLength)
		}
	}
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.NoticeResponse, 0, len(notices))
	for i := range notices {
		result = append(result, toNoticeResponse(&notices[i]))
	}
	return result, nil
}

func toNoticeResponse(n *model.Notice) dto.NoticeResponse {
	resp := dto.NoticeResponse{
		ID:         n.ID,
		SenderPath: n.SenderPath,
		Unseen:     n.Unseen,
		Added:      n.Added,
	}
	if n.NoticeType != nil {
		resp.Label = n.NoticeType.Label
		resp.Display = n.NoticeType.Display
	}
	return resp
}

// ────────────────────── Single / SenderURL ──────────────────────

func (s *feedService) Single(ctx context.Context, userID, noticeID uint, markSeen bool) (*model.Notice, error) {
	notice, err := s.getOwned(ctx, userID, noticeID)
	if err != nil {
		return nil, err
	}

	if markSeen && notice.Unseen {
		notice.Unseen = false
		if err := s.repo.Notice.Update(ctx, notice); err != nil {
			s.logger.Error("标记通知已读失败", zap.Uint("notice_id", noticeID), zap.Error(err))
			return nil, err
		}
	}
	return notice, nil
}

func (s *feedService) SenderURL(ctx context.Context, userID, noticeID uint, override string) (string, error) {
	notice, err := s.Single(ctx, userID, noticeID, true)
	if err != nil {
		return "", err
	}

	if override != "" && s.resolve(override) {
		return override, nil
	}
	if notice.SenderPath != "" && s.resolve(notice.SenderPath) {
		return notice.SenderPath, nil
	}
	if ref := notice.SenderRef(); !ref.IsZero() {
		if p := ref.Path(); s.resolve(p) {
			return p, nil
		}
	}
	return "", ErrPathUnresolved
}

func (s *feedService) resolve(path string) bool {
	return s.routes != nil && s.routes.Resolve(path)
}

// ────────────────────── Archive / Delete / MarkAllSeen ──────────────────────

func (s *feedService) Archive(ctx context.Context, callerID, noticeID uint) error {
	notice, err := s.getForCaller(ctx, callerID, noticeID)
	if err != nil {
		return err
	}
	if notice.Archived {
		return nil
	}
	notice.Archived = true
	return s.repo.Notice.Update(ctx, notice)
}

func (s *feedService) Delete(ctx context.Context, callerID, noticeID uint) error {
	notice, err := s.getForCaller(ctx, callerID, noticeID)
	if err != nil {
		return err
	}
	return s.repo.Notice.Delete(ctx, notice.ID)
}

func (s *feedService) MarkAllSeen(ctx context.Context, userID uint) error {
	return s.repo.Notice.MarkAllSeen(ctx, userID)
}

// ────────────────────── 辅助 ──────────────────────

// getOwned 收件人本人访问
func (s *feedService) getOwned(ctx context.Context, userID, noticeID uint) (*model.Notice, error) {
	notice, err := s.repo.Notice.GetByID(ctx, noticeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoticeNotFound
		}
		s.logger.Error("查询通知失败", zap.Uint("notice_id", noticeID), zap.Error(err))
		return nil, err
	}
	if notice.RecipientID != userID {
		return nil, ErrNoticeNotFound
	}
	return notice, nil
}

// getForCaller 收件人或超级用户访问
func (s *feedService) getForCaller(ctx context.Context, callerID, noticeID uint) (*model.Notice, error) {
	notice, err := s.repo.Notice.GetByID(ctx, noticeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}
	if notice.RecipientID == callerID {
		return notice, nil
	}

	caller, err := s.repo.User.GetByID(ctx, callerID)
	if err != nil || !caller.IsSuperuser {
		return nil, ErrNoticeNotFound
	}
	return notice, nil
}
