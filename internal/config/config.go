package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config chrono-core（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Auth      AuthConfig
	MailRelay MailRelayConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	SecretKey  string        // JWT HMAC 密钥（生产环境必须覆盖）
	SessionTTL time.Duration // 会话有效期
	OtpTTL     time.Duration // 验证码有效期
}

// MailRelayConfig 邮件中继服务配置（OTP 验证码投递）
type MailRelayConfig struct {
	BaseURL string // 中继服务地址
	APIKey  string // API Key（可选）
	From    string // 发件人地址
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "chrono")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 认证配置
	cfg.Auth.SecretKey = getEnv("AUTH_SECRET_KEY", "dev-secret-change-me")
	cfg.Auth.SessionTTL = parseDuration(getEnv("AUTH_SESSION_TTL", "24h"), 24*time.Hour)
	cfg.Auth.OtpTTL = parseDuration(getEnv("AUTH_OTP_TTL", "5m"), 5*time.Minute)

	// 邮件中继配置（OTP 投递；投递失败会使登录第一步整体失败）
	cfg.MailRelay.BaseURL = getEnv("MAIL_RELAY_BASE_URL", "http://localhost:8025")
	cfg.MailRelay.APIKey = getEnv("MAIL_RELAY_API_KEY", "")
	cfg.MailRelay.From = getEnv("MAIL_RELAY_FROM", "no-reply@chrono.local")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
