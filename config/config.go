package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Signing      SigningConfig      `mapstructure:"signing"`
	Mail         MailConfig         `mapstructure:"mail"`
	Log          LogConfig          `mapstructure:"log"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig 宿主站点配置
type ServerConfig struct {
	// BaseURL 站点根地址，用于拼接通知列表 / 退订等绝对链接
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SigningConfig 退订令牌签名配置
type SigningConfig struct {
	Secret string `mapstructure:"secret"`
}

// MailConfig 邮件通道配置（实际投递由宿主注入的 Transport 完成）
type MailConfig struct {
	From string `mapstructure:"from"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotificationConfig 通知引擎配置
type NotificationConfig struct {
	// NoticesPath 通知列表页在宿主站点中的路径
	NoticesPath string `mapstructure:"notices_path"`
	// SenderRoutes 宿主应用已知路由模式（gin 风格，如 /posts/:id/），用于校验 sender_path
	SenderRoutes []string           `mapstructure:"sender_routes"`
	Feed         BackendConfig      `mapstructure:"feed"`
	Email        BackendConfig      `mapstructure:"email"`
	Types        []NoticeTypeConfig `mapstructure:"types"`
}

// BackendConfig 单个投递通道的开关与垃圾敏感度阈值
type BackendConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Sensitivity int  `mapstructure:"sensitivity"`
}

// NoticeTypeConfig 启动时注册的通知类型（seed 命令使用）
type NoticeTypeConfig struct {
	Label       string `mapstructure:"label"`
	Display     string `mapstructure:"display"`
	Description string `mapstructure:"description"`
	Default     int    `mapstructure:"default"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "noticehub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mail.from", "noreply@localhost")

	v.SetDefault("notification.notices_path", "/notices/")
	v.SetDefault("notification.feed.enabled", true)
	v.SetDefault("notification.feed.sensitivity", 1)
	v.SetDefault("notification.email.enabled", true)
	v.SetDefault("notification.email.sensitivity", 2)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("NOTICEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Signing.Secret == "" {
		return fmt.Errorf("配置校验失败: signing.secret 不能为空")
	}
	if len(c.Signing.Secret) < 16 {
		return fmt.Errorf("配置校验失败: signing.secret 长度不能少于 16 字符")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("配置校验失败: server.base_url 不能为空")
	}
	return nil
}
