package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"noticehub/config"
	"noticehub/internal/model"
)

// Client Redis 客户端封装
// 当前用于通知类型缓存；后续可扩展分布式锁等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 通知类型缓存 ──
// 通知类型注册后基本不变、按 label 高频读取，适合整条缓存。

const (
	noticeTypePrefix = "noticehub:noticetype:"
	noticeTypeTTL    = time.Hour
)

// GetNoticeType 按 label 读取缓存；未命中返回 (nil, nil)
func (c *Client) GetNoticeType(ctx context.Context, label string) (*model.NoticeType, error) {
	raw, err := c.rdb.Get(ctx, noticeTypePrefix+label).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var nt model.NoticeType
	if err := json.Unmarshal(raw, &nt); err != nil {
		// 缓存内容损坏按未命中处理，同时清掉脏数据
		c.rdb.Del(ctx, noticeTypePrefix+label)
		return nil, nil
	}
	return &nt, nil
}

// SetNoticeType 写入通知类型缓存
func (c *Client) SetNoticeType(ctx context.Context, nt *model.NoticeType) error {
	raw, err := json.Marshal(nt)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, noticeTypePrefix+nt.Label, raw, noticeTypeTTL).Err()
}

// InvalidateNoticeType 删除缓存（upsert 改写后调用）
func (c *Client) InvalidateNoticeType(ctx context.Context, label string) error {
	return c.rdb.Del(ctx, noticeTypePrefix+label).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
