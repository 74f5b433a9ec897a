package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"smart-timetable/internal/schema"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"db"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Auth      AuthConfig     `mapstructure:"auth"`
	Log       LogConfig      `mapstructure:"log"`
	Timetable schema.Config  `mapstructure:"timetable"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Comment   CommentConfig  `mapstructure:"comment"`
	Request   RequestConfig  `mapstructure:"request"`
	Feature   FeatureConfig  `mapstructure:"feature"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	Mode      string     `mapstructure:"mode"` // gin 运行模式: debug / release / test
	BaseURL   string     `mapstructure:"base_url"`
	BodyLimit int64      `mapstructure:"body_limit"` // 请求体上限（字节）
	HSTS      bool       `mapstructure:"hsts"`       // 仅在 HTTPS 部署时开启
	CORS      CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"` // 刷新令牌走 Cookie 时需开启
	MaxAge           time.Duration `mapstructure:"max_age"`
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
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	LoginRateLimit  int           `mapstructure:"login_rate_limit"` // 每 IP 每分钟登录次数上限，0 不限制
	// 是否允许通过公开注册接口创建 admin 账号
	AllowAdminSignup bool `mapstructure:"allow_admin_signup"`
	// Refresh Token Cookie 是否仅限 HTTPS
	SecureCookie bool `mapstructure:"secure_cookie"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig 课表缓存配置
type CacheConfig struct {
	TimetableTTL time.Duration `mapstructure:"timetable_ttl"`
}

// CommentConfig 评论配置
type CommentConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

// RequestConfig 审批申请配置
type RequestConfig struct {
	// 已处理申请的保留时长，超过后由定时任务清理
	Retention   time.Duration `mapstructure:"retention"`
	CleanupCron string        `mapstructure:"cleanup_cron"`
}

// FeatureConfig 功能开关配置
type FeatureConfig struct {
	RealtimeEnabled bool `mapstructure:"realtime_enabled"`
	CleanupEnabled  bool `mapstructure:"cleanup_enabled"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量（含 .env）> 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

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
	v.SetEnvPrefix("TIMETABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit", 2<<20)
	v.SetDefault("server.hsts", false)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.cors.allow_credentials", true)
	v.SetDefault("server.cors.max_age", "12h")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "smart_timetable")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.allow_admin_signup", false)
	v.SetDefault("auth.secure_cookie", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 课表规范结构
	def := schema.DefaultConfig()
	v.SetDefault("timetable.days", def.Days)
	v.SetDefault("timetable.time_slots", def.TimeSlots)
	v.SetDefault("timetable.session_types", def.SessionTypes)
	v.SetDefault("timetable.max_subject_length", def.MaxSubjectLength)
	v.SetDefault("timetable.max_teacher_length", def.MaxTeacherLength)
	v.SetDefault("timetable.max_room_length", def.MaxRoomLength)
	v.SetDefault("timetable.max_section_length", def.MaxSectionLength)
	v.SetDefault("timetable.max_metadata_length", def.MaxMetadataLength)
	v.SetDefault("timetable.min_duration", def.MinDuration)
	v.SetDefault("timetable.max_duration", def.MaxDuration)
	v.SetDefault("timetable.strict_keys", false)

	v.SetDefault("cache.timetable_ttl", "10m")

	v.SetDefault("comment.max_length", 1000)

	v.SetDefault("request.retention", "720h")
	v.SetDefault("request.cleanup_cron", "0 3 * * *")

	v.SetDefault("feature.realtime_enabled", true)
	v.SetDefault("feature.cleanup_enabled", true)
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
	if err := c.Timetable.Check(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Comment.MaxLength <= 0 {
		return fmt.Errorf("配置校验失败: comment.max_length 必须为正数")
	}
	if c.Feature.CleanupEnabled && c.Request.CleanupCron == "" {
		return fmt.Errorf("配置校验失败: 启用清理任务时 request.cleanup_cron 不能为空")
	}
	return nil
}
