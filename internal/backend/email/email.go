package email

import (
	"context"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"noticehub/internal/backend"
	"noticehub/internal/model"
)

// MediumID 邮件通道标识
const MediumID byte = 'e'

// Transport 邮件发送传输，由宿主提供（SMTP、第三方服务等）
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Backend 邮件通道：渲染文本正文后交给宿主 Transport 投递
type Backend struct {
	transport   Transport
	from        string
	sensitivity int
	tmpl        *template.Template
	logger      *zap.Logger
}

var _ backend.Backend = (*Backend)(nil)

// defaultBody 默认正文模板；宿主可用 WithTemplate 覆盖
const defaultBody = `{{.display}}

{{.description}}
{{if .sender_url}}
查看详情: {{.sender_url}}
{{end}}
通知中心: {{.notices_url}}
退订本类邮件: {{.unsubscribe_link}}
`

// New 创建邮件通道
func New(transport Transport, from string, sensitivity int, logger *zap.Logger) *Backend {
	return &Backend{
		transport:   transport,
		from:        from,
		sensitivity: sensitivity,
		tmpl:        template.Must(template.New("email").Parse(defaultBody)),
		logger:      logger,
	}
}

// WithTemplate 覆盖正文模板
func (b *Backend) WithTemplate(tmpl *template.Template) *Backend {
	b.tmpl = tmpl
	return b
}

func (b *Backend) MediumID() byte       { return MediumID }
func (b *Backend) Label() string        { return "email" }
func (b *Backend) SpamSensitivity() int { return b.sensitivity }

// CanSend 无邮箱地址的用户不可投递
func (b *Backend) CanSend(_ context.Context, user *model.User, _ *model.NoticeType) bool {
	return user != nil && user.Email != ""
}

func (b *Backend) Deliver(ctx context.Context, user *model.User, _ any, nt *model.NoticeType, dctx map[string]any) error {
	data := map[string]any{
		"display":     nt.Display,
		"description": nt.Description,
	}
	for _, key := range []string{
		backend.CtxSenderURL, backend.CtxNoticesURL,
		backend.CtxUnsubscribeURL, backend.CtxRootURL,
	} {
		data[key] = dctx[key]
	}

	var body strings.Builder
	if err := b.tmpl.Execute(&body, data); err != nil {
		b.logger.Error("邮件正文渲染失败",
			zap.Uint("user_id", user.ID),
			zap.String("label", nt.Label),
			zap.Error(err),
		)
		return err
	}

	if err := b.transport.Send(ctx, user.Email, nt.Display, body.String()); err != nil {
		b.logger.Error("邮件投递失败",
			zap.Uint("user_id", user.ID),
			zap.String("label", nt.Label),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// ── 开发用 Transport ──

// LogTransport 把邮件写入日志的 Transport，用于本地开发与管理 CLI 验证
type LogTransport struct {
	Logger *zap.Logger
}

// Send 记录而不真正发送
func (t *LogTransport) Send(_ context.Context, to, subject, body string) error {
	t.Logger.Info("模拟邮件投递",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
