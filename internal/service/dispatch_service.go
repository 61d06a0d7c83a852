package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"noticehub/internal/backend"
	"noticehub/internal/entity"
	"noticehub/internal/model"
	"noticehub/internal/repository"
	"noticehub/pkg/routes"
	"noticehub/pkg/signing"
)

// Host 宿主应用注入的协作者
// 任一字段可为 nil：对应能力按"不可用"降级，不影响派发。
type Host struct {
	Resolver  entity.Resolver
	Routes    routes.Resolver
	Languages entity.LanguageStore
}

// DispatchService 派发管线业务接口
type DispatchService interface {
	// Send 向一组收件人派发 label 类型的通知
	// label 未注册是硬失败；单个收件人 / 单个通道的失败互相隔离，不中断整体派发。
	Send(ctx context.Context, recipients []model.User, label string, extra map[string]any, sender any) error
	// Broadcast 向除 exclude 外的全部用户派发
	Broadcast(ctx context.Context, label string, extra map[string]any, sender any, exclude []uint) error
}

type dispatchService struct {
	repo        *repository.Repository
	registry    *backend.Registry
	types       RegistryService
	prefs       PreferenceService
	signer      *signing.Manager
	host        Host
	baseURL     string
	noticesPath string
	logger      *zap.Logger
}

// NewDispatchService 创建 DispatchService 实例
func NewDispatchService(
	repo *repository.Repository,
	registry *backend.Registry,
	types RegistryService,
	prefs PreferenceService,
	signer *signing.Manager,
	host Host,
	baseURL, noticesPath string,
	logger *zap.Logger,
) DispatchService {
	if noticesPath == "" {
		noticesPath = "/notices/"
	}
	return &dispatchService{
		repo:        repo,
		registry:    registry,
		types:       types,
		prefs:       prefs,
		signer:      signer,
		host:        host,
		baseURL:     strings.TrimRight(baseURL, "/"),
		noticesPath: noticesPath,
		logger:      logger,
	}
}

// ────────────────────── Send ──────────────────────

func (s *dispatchService) Send(ctx context.Context, recipients []model.User, label string, extra map[string]any, sender any) error {
	// label 未注册时立即失败，不做任何部分投递
	nt, err := s.types.GetByLabel(ctx, label)
	if err != nil {
		return err
	}

	senderPath := s.senderPath(ctx, extra, sender)
	noticesURL := s.absURL(s.noticesPath)

	for i := range recipients {
		s.sendOne(ctx, &recipients[i], nt, senderPath, noticesURL, extra, sender)
	}
	return nil
}

// sendOne 处理单个收件人；任何失败只记录日志，绝不向外传播
func (s *dispatchService) sendOne(ctx context.Context, user *model.User, nt *model.NoticeType, senderPath, noticesURL string, extra map[string]any, sender any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("收件人派发异常中断",
				zap.Uint("user_id", user.ID),
				zap.String("label", nt.Label),
				zap.Any("panic", r),
			)
		}
	}()

	// 每个收件人独立一份上下文，避免跨收件人串写
	dctx := make(map[string]any, len(extra)+12)
	for k, v := range extra {
		dctx[k] = v
	}

	// 通知语言：查不到就保持缺省，不致命
	if s.host.Languages != nil {
		lang, err := s.host.Languages.NotificationLanguage(ctx, user.ID)
		switch {
		case err == nil:
			dctx[backend.CtxLocale] = lang
		case errors.Is(err, entity.ErrLanguageUnavailable):
			// 宿主未配置该用户语言，降级
		default:
			s.logger.Warn("查询通知语言失败", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}

	// 退订令牌
	unsubURL := ""
	if token, err := s.signer.SignUnsubscribe(user.ID); err != nil {
		s.logger.Error("签发退订令牌失败", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		unsubURL = s.absURL(s.noticesPath + "unsubscribe/email/" + token + "/")
	}

	dctx[backend.CtxRecipient] = user
	dctx[backend.CtxSender] = sender
	dctx[backend.CtxNotice] = nt
	dctx[backend.CtxNoticesURL] = noticesURL
	dctx[backend.CtxRootURL] = s.baseURL
	dctx[backend.CtxUnsubscribeURL] = unsubURL

	// 站内信通道优先：先落库，再把通知记录相关上下文提供给其他通道引用
	feed := s.registry.Feed()
	deliveredToFeed := false
	if feed != nil {
		ok, err := s.prefs.ShouldSend(ctx, user.ID, nt, feed.MediumID())
		if err != nil {
			s.logger.Error("查询站内信偏好失败", zap.Uint("user_id", user.ID), zap.String("label", nt.Label), zap.Error(err))
		} else if ok && feed.CanSend(ctx, user, nt) {
			if senderPath != "" {
				dctx[backend.CtxSenderPath] = senderPath
			}
			notice, err := feed.DeliverFeed(ctx, user, sender, nt, dctx)
			if err != nil {
				s.logger.Error("站内信投递失败", zap.Uint("user_id", user.ID), zap.String("label", nt.Label), zap.Error(err))
			} else {
				deliveredToFeed = true
				dctx[backend.CtxSenderURL] = s.absURL(s.noticesPath + "view/" + strconv.FormatUint(uint64(notice.ID), 10) + "/")
				for k, v := range feed.NoticeContext(notice) {
					dctx[k] = v
				}
			}
		}
	}
	if !deliveredToFeed {
		// 无站内信记录可引用时直接由 sender_path 合成 sender_url
		dctx[backend.CtxSenderURL] = s.absURL(senderPath)
	}

	for _, b := range s.registry.Backends() {
		if feed != nil && b == feed {
			continue // 已特判处理
		}
		ok, err := s.prefs.ShouldSend(ctx, user.ID, nt, b.MediumID())
		if err != nil {
			s.logger.Error("查询投递偏好失败",
				zap.Uint("user_id", user.ID),
				zap.String("label", nt.Label),
				zap.String("medium", string(b.MediumID())),
				zap.Error(err),
			)
			continue
		}
		if !ok || !b.CanSend(ctx, user, nt) {
			continue
		}
		if err := b.Deliver(ctx, user, sender, nt, dctx); err != nil {
			// 通道失败互相隔离：记录后继续
			s.logger.Error("通道投递失败",
				zap.Uint("user_id", user.ID),
				zap.String("label", nt.Label),
				zap.String("medium", string(b.MediumID())),
				zap.Error(err),
			)
		}
	}
}

// ────────────────────── Broadcast ──────────────────────

func (s *dispatchService) Broadcast(ctx context.Context, label string, extra map[string]any, sender any, exclude []uint) error {
	users, err := s.repo.User.List(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return err
	}

	excluded := make(map[uint]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	recipients := make([]model.User, 0, len(users))
	for _, u := range users {
		if !excluded[u.ID] {
			recipients = append(recipients, u)
		}
	}

	return s.Send(ctx, recipients, label, extra, sender)
}

// ────────────────────── 路径辅助 ──────────────────────

// senderPath 解析 sender 的站内路径
// extra 显式提供时规范化后原样使用；否则按 /<type>/<id>/ 约定推导并校验路由，
// 任何解析失败都回退为空路径，绝不让整次派发失败。
func (s *dispatchService) senderPath(_ context.Context, extra map[string]any, sender any) string {
	if p, ok := extra[backend.CtxSenderPath].(string); ok && p != "" {
		return normalizePath(p)
	}

	ref, ok := entity.RefOf(sender)
	if !ok {
		return ""
	}
	p := ref.Path()
	if s.host.Routes == nil || !s.host.Routes.Resolve(p) {
		return ""
	}
	return p
}

func (s *dispatchService) absURL(path string) string {
	if path == "" {
		return s.baseURL
	}
	return s.baseURL + normalizePath(path)
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// ── 默认 LanguageStore 实现 ──

// userLanguageStore 用本地用户镜像的 language 字段实现语言查询
type userLanguageStore struct {
	users repository.UserRepository
}

// NewUserLanguageStore 创建基于用户表的 LanguageStore
func NewUserLanguageStore(users repository.UserRepository) entity.LanguageStore {
	return &userLanguageStore{users: users}
}

func (s *userLanguageStore) NotificationLanguage(ctx context.Context, userID uint) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", entity.ErrLanguageUnavailable
	}
	if user.Language == nil || *user.Language == "" {
		return "", entity.ErrLanguageUnavailable
	}
	return *user.Language, nil
}
