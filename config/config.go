package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 结构体用于存储应用程序的配置信息
type Config struct {
	Port         string        `env:"PORT" envDefault:"4000"`
	DBDriver     string        `env:"DB_DRIVER" envDefault:"mysql"`
	DBHost       string        `env:"DB_HOST"`
	DBPort       string        `env:"DB_PORT" envDefault:"3306"`
	DBUser       string        `env:"DB_USER"`
	DBPassword   string        `env:"DB_PASSWORD"`
	DBName       string        `env:"DB_NAME"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"./social-feed.db"`
	AutoMigrate  bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"2h"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL  string        `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	LikeRetries  int           `env:"LIKE_MAX_RETRIES" envDefault:"5"`
	ShutdownWait time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Debug        bool          `env:"DEBUG" envDefault:"false"` // 是否开启调试模式
}

// Load 读取 .env 文件和环境变量并校验配置
func Load() (Config, error) {
	// .env 文件是可选的
	if err := godotenv.Load(); err != nil {
		log.Printf("警告：无法加载 .env 文件: %v", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("解析环境变量失败: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg, nil
}

// Validate 校验必填配置
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("错误：JWT密钥未设置")
	}
	if c.TokenTTL <= 0 {
		return errors.New("错误：TOKEN_TTL 必须大于0")
	}
	if c.LikeRetries < 1 {
		return errors.New("错误：LIKE_MAX_RETRIES 必须大于0")
	}

	switch c.DBDriver {
	case DriverMySQL:
		if c.DBHost == "" || c.DBPort == "" || c.DBUser == "" || c.DBName == "" {
			return errors.New("错误：数据库配置不完整")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("错误：SQLITE_PATH 未设置")
		}
	default:
		return fmt.Errorf("错误：不支持的数据库驱动 %q", c.DBDriver)
	}
	return nil
}

// DSN 返回当前驱动对应的连接字符串
func (c Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return SQLiteDSN(c.SQLitePath)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName)
}

// SQLiteDSN 为 SQLite 文件启用外键和忙等待
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Addr 返回 HTTP 监听地址
func (c Config) Addr() string {
	return ":" + c.Port
}
