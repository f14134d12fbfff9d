// Package storage 定义邮箱依赖的对象存储契约以及各个驱动实现。
//
// 契约只有三种原语：整对象写入、按路径读取、按前缀递归列举。
// 读取不存在的对象返回 ErrObjectNotFound，这是正常结果而非故障；
// 列举失败返回 error，与“没有对象”的空结果明确区分。
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"mailboxgw/internal/config"
)

// ErrObjectNotFound 路径上没有对象
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectStore 对象存储接口
type ObjectStore interface {
	// Put 创建或覆盖一个对象，整对象原子可见
	Put(ctx context.Context, key string, data []byte) error
	// Get 读取对象，不存在时返回 ErrObjectNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// List 递归列举前缀下的所有对象键
	List(ctx context.Context, prefix string) ([]string, error)
	// URL 对象的展示地址，如 gs://bucket/key
	URL(key string) string
	Driver() string
	Close() error
}

// IsNotFound 判断是否为对象不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// Open 按配置打开对象存储，并包上指标采集
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)

	sc := cfg.Storage
	switch sc.Driver {
	case config.DriverGCS:
		store, err = NewGCSStore(ctx, cfg.BucketName(), sc.GCS.CredentialsFile)
	case config.DriverRedis:
		store, err = NewRedisStore(ctx, cfg.RedisAddr(), sc.Redis.Password, sc.Redis.DB, sc.Redis.KeyPrefix)
	case config.DriverMySQL:
		store, err = NewMySQLStore(sc.MySQL.DSN, log)
	case config.DriverFile:
		store, err = NewFileStore(sc.File.Dir)
	case config.DriverMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", sc.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("打开 %s 存储失败: %w", sc.Driver, err)
	}

	log.Info().Str("driver", store.Driver()).Str("location", store.URL("")).Msg("对象存储已就绪")
	return Instrument(store), nil
}

// joinURL 拼接展示地址
func joinURL(base, key string) string {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
