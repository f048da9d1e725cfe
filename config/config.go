package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	App       AppConfig       `mapstructure:"app"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	ICal      ICalConfig      `mapstructure:"ical"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
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

// RedisConfig Redis 配置（驱动锁 / 投递占位）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"` // 为空时仅输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AppConfig 业务全局配置
type AppConfig struct {
	// Timezone 所有时间比较统一使用的时区
	Timezone string `mapstructure:"timezone"`
}

// SchedulerConfig 周期驱动配置（cron 表达式，支持 @every 语法）
type SchedulerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ReminderSpec      string        `mapstructure:"reminder_spec"`
	WorkGenerateSpec  string        `mapstructure:"work_generate_spec"`
	WorkSendSpec      string        `mapstructure:"work_send_spec"`
	ScheduleSyncSpec  string        `mapstructure:"schedule_sync_spec"`
	TickTimeout       time.Duration `mapstructure:"tick_timeout"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	GeneratingTimeout time.Duration `mapstructure:"generating_timeout"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	DispatchBatchSize int           `mapstructure:"dispatch_batch_size"` // 单次提醒派发上限，0 表示不限
}

// TelegramConfig 机器人通知配置
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// DryRun 未配置 bot_token 时只写日志并视为投递成功；关闭时缺少 token 的投递返回失败
	DryRun bool `mapstructure:"dry_run"`
}

// LLMConfig 文本生成服务配置（OpenAI 兼容接口）
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig 生成文件存储配置
type StorageConfig struct {
	GeneratedDir string `mapstructure:"generated_dir"`
	TemplatesDir string `mapstructure:"templates_dir"` // 用户上传的封面模板
}

// ICalConfig 日历源拉取配置
type ICalConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "deadline_desk")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Moscow")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "168h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 30)
	v.SetDefault("log.max_age_days", 90)

	v.SetDefault("app.timezone", "Europe/Moscow")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_spec", "@every 5m")
	v.SetDefault("scheduler.work_generate_spec", "@every 15m")
	v.SetDefault("scheduler.work_send_spec", "@every 5m")
	v.SetDefault("scheduler.schedule_sync_spec", "@every 6h")
	v.SetDefault("scheduler.tick_timeout", "4m")
	v.SetDefault("scheduler.call_timeout", "90s")
	v.SetDefault("scheduler.generating_timeout", "30m")
	v.SetDefault("scheduler.lock_ttl", "5m")
	v.SetDefault("scheduler.dispatch_batch_size", 200)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.timeout", "15s")
	v.SetDefault("telegram.dry_run", false)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("storage.generated_dir", "./generated")
	v.SetDefault("storage.templates_dir", "./templates")

	v.SetDefault("ical.fetch_timeout", "30s")
	v.SetDefault("ical.max_size_bytes", 5*1024*1024)

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
	v.SetEnvPrefix("DESK")
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
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: app.timezone 无效: %w", err)
	}
	if c.Scheduler.GeneratingTimeout <= 0 {
		return fmt.Errorf("配置校验失败: scheduler.generating_timeout 必须大于 0")
	}
	if c.Scheduler.DispatchBatchSize < 0 {
		return fmt.Errorf("配置校验失败: scheduler.dispatch_batch_size 不能为负")
	}
	return nil
}
