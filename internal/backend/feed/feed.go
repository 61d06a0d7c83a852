package feed

import (
	"context"

	"go.uber.org/zap"

	"noticehub/internal/backend"
	"noticehub/internal/entity"
	"noticehub/internal/model"
	"noticehub/internal/repository"
)

// MediumID 站内信通道标识
const MediumID byte = 'f'

// Backend 站内信通道：把通知持久化为 Notice 记录，供宿主的通知列表页查询
type Backend struct {
	notices     repository.NoticeRepository
	sensitivity int
	logger      *zap.Logger
}

var _ backend.FeedBackend = (*Backend)(nil)

// New 创建站内信通道
func New(notices repository.NoticeRepository, sensitivity int, logger *zap.Logger) *Backend {
	return &Backend{notices: notices, sensitivity: sensitivity, logger: logger}
}

func (b *Backend) MediumID() byte       { return MediumID }
func (b *Backend) Label() string        { return "feed" }
func (b *Backend) SpamSensitivity() int { return b.sensitivity }

func (b *Backend) CanSend(_ context.Context, user *model.User, _ *model.NoticeType) bool {
	return user != nil
}

// Deliver 满足 Backend 契约；派发管线实际走 DeliverFeed 以拿到落库记录
func (b *Backend) Deliver(ctx context.Context, user *model.User, sender any, nt *model.NoticeType, dctx map[string]any) error {
	_, err := b.DeliverFeed(ctx, user, sender, nt, dctx)
	return err
}

// DeliverFeed 持久化通知记录并返回
func (b *Backend) DeliverFeed(ctx context.Context, user *model.User, sender any, nt *model.NoticeType, dctx map[string]any) (*model.Notice, error) {
	notice := &model.Notice{
		RecipientID:  user.ID,
		NoticeTypeID: nt.ID,
		Unseen:       true,
	}

	if ref, ok := entity.RefOf(sender); ok {
		notice.SenderType = &ref.Type
		notice.SenderID = &ref.ID
	}
	if path, ok := dctx[backend.CtxSenderPath].(string); ok {
		notice.SenderPath = path
	}

	if err := b.notices.Create(ctx, notice); err != nil {
		b.logger.Error("站内信落库失败",
			zap.Uint("user_id", user.ID),
			zap.String("label", nt.Label),
			zap.Error(err),
		)
		return nil, err
	}

	return notice, nil
}

// NoticeContext 落库记录派生的上下文，供其他通道引用站内信
func (b *Backend) NoticeContext(n *model.Notice) map[string]any {
	return map[string]any{
		backend.CtxNoticeID: n.ID,
		"notice_added":      n.Added,
	}
}
