package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"noticehub/config"
	"noticehub/internal/backend"
	"noticehub/internal/entity"
	"noticehub/internal/model"
	"noticehub/internal/repository"
	"noticehub/pkg/routes"
	"noticehub/pkg/signing"
)

const testSecret = "test-secret-0123456789"

// ── 测试用实体 ──

// testPost 可被观察 / 可作为 sender 的宿主实体
type testPost struct {
	ID    uint
	Title string
}

func (p *testPost) EntityRef() entity.Ref {
	return entity.Ref{Type: "posts", ID: p.ID}
}

// ── 测试用通道 ──

type deliveredCall struct {
	UserID uint
	Dctx   map[string]any
}

// mockBackend 可配置失败行为的记录型通道
type mockBackend struct {
	mediumID    byte
	label       string
	sensitivity int
	failFor     map[uint]error // 指定用户投递失败
	canSend     func(user *model.User) bool
	delivered   []deliveredCall
}

func (b *mockBackend) MediumID() byte       { return b.mediumID }
func (b *mockBackend) Label() string        { return b.label }
func (b *mockBackend) SpamSensitivity() int { return b.sensitivity }

func (b *mockBackend) CanSend(_ context.Context, user *model.User, _ *model.NoticeType) bool {
	if b.canSend != nil {
		return b.canSend(user)
	}
	return true
}

func (b *mockBackend) Deliver(_ context.Context, user *model.User, _ any, _ *model.NoticeType, dctx map[string]any) error {
	if err, ok := b.failFor[user.ID]; ok {
		return err
	}
	// 快照上下文，供断言
	snapshot := make(map[string]any, len(dctx))
	for k, v := range dctx {
		snapshot[k] = v
	}
	b.delivered = append(b.delivered, deliveredCall{UserID: user.ID, Dctx: snapshot})
	return nil
}

func (b *mockBackend) deliveredTo() []uint {
	ids := make([]uint, 0, len(b.delivered))
	for _, c := range b.delivered {
		ids = append(ids, c.UserID)
	}
	return ids
}

// ── 测试环境 ──

type testEnv struct {
	repo         *repository.Repository
	users        *mockUserRepo
	types        *mockNoticeTypeRepo
	settings     *mockNoticeSettingRepo
	observations *mockObservationRepo
	notices      *mockNoticeRepo
	registry     *backend.Registry
	signer       *signing.Manager
	svc          *Service
}

// withBackends 直接注入现成的通道实例
func withBackends(backends ...backend.Backend) func(*repository.Repository) []backend.Backend {
	return func(*repository.Repository) []backend.Backend { return backends }
}

// newTestEnv 组装内存版依赖；build 收到仓储聚合后返回要注册的通道，
// 便于把真实 feed 通道接到内存 Notice 仓储上。
func newTestEnv(t *testing.T, build func(repo *repository.Repository) []backend.Backend) *testEnv {
	t.Helper()

	clock := newMockClock()
	users := newMockUserRepo()
	types := newMockNoticeTypeRepo()
	settings := newMockNoticeSettingRepo()
	observations := newMockObservationRepo(types, clock)
	notices := newMockNoticeRepo(types, clock)

	repo := &repository.Repository{
		User:          users,
		NoticeType:    types,
		NoticeSetting: settings,
		Observation:   observations,
		Notice:        notices,
	}

	registry, err := backend.NewRegistry(build(repo)...)
	if err != nil {
		t.Fatalf("构建通道注册表失败: %v", err)
	}

	resolver := entity.NewMapResolver()
	resolver.Register("posts", func(_ context.Context, id uint) (any, error) {
		return &testPost{ID: id}, nil
	})
	resolver.Register("user", func(ctx context.Context, id uint) (any, error) {
		return users.GetByID(ctx, id)
	})

	host := Host{
		Resolver: resolver,
		Routes:   routes.NewStaticResolver("/posts/:id/", "/user/:id/"),
	}

	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://example.com"
	cfg.Notification.NoticesPath = "/notices/"

	signer := signing.NewManager(testSecret)
	svc := NewService(cfg, repo, registry, signer, nil, host, zap.NewNop())

	return &testEnv{
		repo:         repo,
		users:        users,
		types:        types,
		settings:     settings,
		observations: observations,
		notices:      notices,
		registry:     registry,
		signer:       signer,
		svc:          svc,
	}
}

func (e *testEnv) addUser(id uint, username, email string) *model.User {
	user := &model.User{ID: id, Username: username, Email: email}
	e.users.users[id] = user
	return user
}

func (e *testEnv) addNoticeType(t *testing.T, label string, defaultSensitivity int) *model.NoticeType {
	t.Helper()
	if _, err := e.svc.Registry.CreateOrUpdate(context.Background(), label, label+" display", label+" description", defaultSensitivity); err != nil {
		t.Fatalf("注册通知类型 %s 失败: %v", label, err)
	}
	nt, err := e.svc.Registry.GetByLabel(context.Background(), label)
	if err != nil {
		t.Fatalf("读取通知类型 %s 失败: %v", label, err)
	}
	return nt
}
