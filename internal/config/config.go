package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认配置文件
const DefaultFile = "config.yaml"

// 存储驱动
const (
	DriverGCS    = "gcs"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Config 应用配置
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"` // debug / release / test
		TLS  struct {
			Enabled  bool   `yaml:"enabled"`
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Auth struct {
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"password_hash"` // bcrypt，优先于明文密码
	} `yaml:"auth"`

	JWT struct {
		Secret string `yaml:"secret"` // 为空时不签发 token
		Expire int    `yaml:"expire"` // 过期时间（小时）
	} `yaml:"jwt"`

	Storage StorageConfig `yaml:"storage"`

	Watch struct {
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"watch"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console / json
	} `yaml:"log"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Root   string `yaml:"root"`  // 桶内前缀，可为空
	Codec  string `yaml:"codec"` // edn / json

	GCS struct {
		Bucket          string `yaml:"bucket"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"gcs"`

	Redis struct {
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	MySQL struct {
		DSN string `yaml:"dsn"` // Data Source Name
	} `yaml:"mysql"`

	File struct {
		Dir string `yaml:"dir"`
	} `yaml:"file"`
}

// Load 读取配置：YAML 文件 -> .env -> 环境变量，最后补默认值并校验。
// path 为空时尝试 CONFIG_FILE 和 config.yaml，文件不存在不算错误。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Metrics.Enabled = true

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}

	if err := cfg.loadFile(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, err
		}
	}

	// 开发环境的 .env 文件，不存在时忽略
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	return nil
}

// applyEnv 环境变量覆盖，变量名沿用旧网关
func (c *Config) applyEnv() {
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		c.Storage.GCS.Bucket = v
	}
	if v := os.Getenv("GATEWAY_USER"); v != "" {
		c.Auth.Username = v
	}
	if v := os.Getenv("GATEWAY_PASS"); v != "" {
		// 环境变量中的密码同时替换文件里的哈希
		c.Auth.Password = v
		c.Auth.PasswordHash = ""
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Storage.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Storage.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.Storage.MySQL.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Auth.Username == "" {
		c.Auth.Username = "claude"
	}
	if c.JWT.Expire <= 0 {
		c.JWT.Expire = 24
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverGCS
	}
	if c.Storage.Codec == "" {
		c.Storage.Codec = "edn"
	}
	c.Storage.Root = strings.Trim(c.Storage.Root, "/")

	// 确保Redis配置有值
	if c.Storage.Redis.Host == "" {
		c.Storage.Redis.Host = "127.0.0.1"
	}
	if c.Storage.Redis.Port == 0 {
		c.Storage.Redis.Port = 6379
	}
	if c.Storage.File.Dir == "" {
		c.Storage.File.Dir = "./data"
	}

	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 2 * time.Second
	}
	if c.Watch.Timeout <= 0 {
		c.Watch.Timeout = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		return errors.New("未配置网关密码: 设置 auth.password、auth.password_hash 或 GATEWAY_PASS")
	}

	switch c.Storage.Driver {
	case DriverGCS:
		if c.Storage.GCS.Bucket == "" {
			return errors.New("gcs 驱动需要 storage.gcs.bucket 或 GCS_BUCKET")
		}
	case DriverMySQL:
		if c.Storage.MySQL.DSN == "" {
			return errors.New("mysql 驱动需要 storage.mysql.dsn 或 MYSQL_DSN")
		}
	case DriverRedis, DriverFile, DriverMemory:
	default:
		return fmt.Errorf("不支持的存储驱动: %s", c.Storage.Driver)
	}

	switch c.Storage.Codec {
	case "edn", "json":
	default:
		return fmt.Errorf("不支持的编码类型: %s", c.Storage.Codec)
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("无效的服务器模式: %s", c.Server.Mode)
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return errors.New("启用 TLS 时必须配置 cert_file 和 key_file")
	}
	return nil
}

// BucketName 去掉 gs:// 前缀后的桶名
func (c *Config) BucketName() string {
	return strings.TrimSuffix(strings.TrimPrefix(c.Storage.GCS.Bucket, "gs://"), "/")
}

// RedisAddr Redis 地址
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Storage.Redis.Host, c.Storage.Redis.Port)
}

// TokenTTL token 有效期
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.Expire) * time.Hour
}
