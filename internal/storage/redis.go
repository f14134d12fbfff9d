package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// scanBatch 每次 SCAN 的建议数量
const scanBatch = 500

// RedisStore 以 Redis 字符串键模拟对象存储，键为 keyPrefix+对象路径
type RedisStore struct {
	client    *redis.Client
	addr      string
	keyPrefix string
}

// NewRedisStore 创建 Redis 存储并测试连接
func NewRedisStore(ctx context.Context, addr, password string, db int, keyPrefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	return NewRedisStoreFromClient(client, addr, keyPrefix), nil
}

// NewRedisStoreFromClient 使用已有客户端
func NewRedisStoreFromClient(client *redis.Client, addr, keyPrefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		addr:      addr,
		keyPrefix: keyPrefix,
	}
}

// Put 单条 SET，天然整对象原子
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", s.URL(key), err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("读取 %s 失败: %w", s.URL(key), err)
	}
	return data, nil
}

// List 使用 SCAN 遍历，不阻塞 Redis
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.keyPrefix+prefix) + "*"

	keys := []string{}
	iter := s.client.Scan(ctx, 0, match, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("列举 %s 失败: %w", s.URL(prefix), err)
	}
	return keys, nil
}

func (s *RedisStore) URL(key string) string {
	return joinURL("redis://"+s.addr, s.keyPrefix+key)
}

func (s *RedisStore) Driver() string {
	return "redis"
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// escapeGlob 转义 MATCH 模式中的特殊字符
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
