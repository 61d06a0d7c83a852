package backend

import (
	"context"

	"noticehub/internal/model"
)

// ── 投递上下文键 ──
// 上下文是一个普通 map，派发管线逐收件人组装后原样交给各通道。

const (
	CtxRecipient      = "recipient"        // *model.User 收件人
	CtxSender         = "sender"           // 触发通知的实体（可为 nil）
	CtxNotice         = "notice"           // *model.NoticeType
	CtxNoticesURL     = "notices_url"      // 通知列表页绝对地址
	CtxRootURL        = "root_url"         // 站点根地址
	CtxUnsubscribeURL = "unsubscribe_link" // 退订绝对地址
	CtxSenderPath     = "sender_path"      // sender 的站内路径，可为空
	CtxSenderURL      = "sender_url"       // sender 的绝对地址
	CtxNoticeID       = "notice_id"        // feed 落库后的通知 ID；feed 未投递时不存在
	CtxObserved       = "observed"         // 被观察对象（观察触发的通知才有）
	CtxAlterDesc      = "alter_desc"       // 提示展示层改用"你观察的对象发生了X"措辞
	CtxLocale         = "locale"           // 收件人通知语言码，可为空
)

// Backend 投递通道契约
// 每个通道以 (MediumID, Label) 标识自身，并声明垃圾敏感度阈值；
// 投递失败由通道自行处理与记录，管线不重试。
type Backend interface {
	// MediumID 通道单字符标识
	MediumID() byte
	// Label 通道名称（退订接口用它定位 MediumID）
	Label() string
	// SpamSensitivity 垃圾敏感度阈值，参与默认偏好计算
	SpamSensitivity() int
	// CanSend 偏好之外的通道级门控（如全局退订、无邮箱地址）
	CanSend(ctx context.Context, user *model.User, nt *model.NoticeType) bool
	// Deliver 执行投递
	Deliver(ctx context.Context, user *model.User, sender any, nt *model.NoticeType, dctx map[string]any) error
}

// FeedBackend 站内信通道的扩展契约
// 派发管线特判它：先投递并拿到落库的通知记录，再据此丰富其他通道的上下文。
type FeedBackend interface {
	Backend
	// DeliverFeed 投递并返回持久化的通知记录
	DeliverFeed(ctx context.Context, user *model.User, sender any, nt *model.NoticeType, dctx map[string]any) (*model.Notice, error)
	// NoticeContext 从落库记录派生通道相关上下文
	NoticeContext(n *model.Notice) map[string]any
}
