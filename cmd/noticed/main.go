package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"noticehub/config"
	"noticehub/internal/backend"
	"noticehub/internal/backend/email"
	"noticehub/internal/backend/feed"
	"noticehub/internal/entity"
	"noticehub/internal/model"
	"noticehub/internal/repository"
	"noticehub/internal/service"
	"noticehub/pkg/database"
	applogger "noticehub/pkg/logger"
	"noticehub/pkg/redis"
	"noticehub/pkg/routes"
	"noticehub/pkg/signing"
)

// app 管理命令共享的运行时依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	repo   *repository.Repository
	svc    *service.Service
}

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "noticed",
		Short: "noticehub 通知引擎管理命令",
		// 管理命令本身不监听端口：HTTP 接入由宿主应用负责
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件路径（默认 ./config/config.yaml）")

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newSendCmd(),
		newBroadcastCmd(),
		newUnsubscribeCmd(),
		newTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap 按 配置 → 日志 → 数据库 → 迁移 → Redis（可选） → 依赖注入 的顺序组装
func bootstrap() (*app, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Sync()
		return nil, nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Sync()
		return nil, nil, err
	}

	// Redis 连接失败时降级运行，通知类型缓存不可用
	cache, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，通知类型缓存不可用", zap.Error(err))
		cache = nil
	}

	repo := repository.NewRepository(db)

	// 通道注册：启动期一次性完成，此后只读
	var backends []backend.Backend
	if cfg.Notification.Feed.Enabled {
		backends = append(backends, feed.New(repo.Notice, cfg.Notification.Feed.Sensitivity, logger))
	}
	if cfg.Notification.Email.Enabled {
		transport := &email.LogTransport{Logger: logger}
		backends = append(backends, email.New(transport, cfg.Mail.From, cfg.Notification.Email.Sensitivity, logger))
	}
	registry, err := backend.NewRegistry(backends...)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}

	// 宿主协作者：CLI 场景下路由表来自配置，实体解析只注册 user 类型
	resolver := entity.NewMapResolver()
	resolver.Register("user", func(ctx context.Context, id uint) (any, error) {
		return repo.User.GetByID(ctx, id)
	})
	host := service.Host{
		Resolver: resolver,
		Routes:   routes.NewStaticResolver(cfg.Notification.SenderRoutes...),
	}

	signer := signing.NewManager(cfg.Signing.Secret)
	svc := service.NewService(cfg, repo, registry, signer, cache, host, logger)

	cleanup := func() {
		if cache != nil {
			cache.Close()
		}
		if closeDB, err := db.DB(); err == nil {
			closeDB.Close()
		}
		logger.Sync()
	}

	return &app{cfg: cfg, logger: logger, repo: repo, svc: svc}, cleanup, nil
}

func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return run(ctx, a, cmd, args)
	}
}

// ────────────────────── migrate ──────────────────────

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: withApp(func(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
			// bootstrap 已执行迁移
			a.logger.Info("迁移完成")
			return nil
		}),
	}
}

// ────────────────────── seed ──────────────────────

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "注册配置中声明的通知类型（幂等）",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			for _, t := range a.cfg.Notification.Types {
				def := t.Default
				if def == 0 {
					def = 2
				}
				written, err := a.svc.Registry.CreateOrUpdate(ctx, t.Label, t.Display, t.Description, def)
				if err != nil {
					return err
				}
				if written {
					a.logger.Info("通知类型已写入", zap.String("label", t.Label))
				} else {
					a.logger.Info("通知类型无变更", zap.String("label", t.Label))
				}
			}
			return nil
		}),
	}
}

// ────────────────────── send ──────────────────────

func newSendCmd() *cobra.Command {
	var (
		userID     uint
		label      string
		senderPath string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "向单个用户派发一条测试通知",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			user, err := a.repo.User.GetByID(ctx, userID)
			if err != nil {
				return fmt.Errorf("用户 %d 不存在: %w", userID, err)
			}

			extra := map[string]any{}
			if senderPath != "" {
				extra[backend.CtxSenderPath] = senderPath
			}
			return a.svc.Dispatch.Send(ctx, []model.User{*user}, label, extra, nil)
		}),
	}
	cmd.Flags().UintVar(&userID, "user", 0, "收件人用户 ID")
	cmd.Flags().StringVar(&label, "label", "", "通知类型 label")
	cmd.Flags().StringVar(&senderPath, "sender-path", "", "显式 sender 路径（可选）")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("label")
	return cmd
}

// ────────────────────── broadcast ──────────────────────

func newBroadcastCmd() *cobra.Command {
	var (
		label   string
		exclude []uint
	)

	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "向全部用户广播一条通知",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			return a.svc.Dispatch.Broadcast(ctx, label, map[string]any{}, nil, exclude)
		}),
	}
	cmd.Flags().StringVar(&label, "label", "", "通知类型 label")
	cmd.Flags().UintSliceVar(&exclude, "exclude", nil, "排除的用户 ID")
	cmd.MarkFlagRequired("label")
	return cmd
}

// ────────────────────── unsubscribe ──────────────────────

func newUnsubscribeCmd() *cobra.Command {
	var (
		medium string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "按退订令牌关闭用户在某通道的全部偏好",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			return a.svc.Preference.Unsubscribe(ctx, medium, token)
		}),
	}
	cmd.Flags().StringVar(&medium, "medium", "email", "通道名称")
	cmd.Flags().StringVar(&token, "token", "", "签名退订令牌")
	cmd.MarkFlagRequired("token")
	return cmd
}

// ────────────────────── token ──────────────────────

func newTokenCmd() *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "token",
		Short: "为用户签发退订令牌（排障用）",
		RunE: withApp(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
			signer := signing.NewManager(a.cfg.Signing.Secret)
			token, err := signer.SignUnsubscribe(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}),
	}
	cmd.Flags().UintVar(&userID, "user", 0, "用户 ID")
	cmd.MarkFlagRequired("user")
	return cmd
}
