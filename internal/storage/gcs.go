package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"mailboxgw/internal/protocol"
)

// GCSStore 直接调用 Cloud Storage API，取代 gsutil 子进程。
// 设置 STORAGE_EMULATOR_HOST 时客户端自动连接模拟器。
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStore 创建 GCS 存储
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket 不能为空")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 GCS 客户端失败: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// Put 上传对象，Writer 关闭时对象才整体可见
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = protocol.ContentTypeFor(key)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("写入 %s 失败: %w", s.URL(key), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("提交 %s 失败: %w", s.URL(key), err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("读取 %s 失败: %w", s.URL(key), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", s.URL(key), err)
	}
	return data, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	keys := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("列举 %s 失败: %w", s.URL(prefix), err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *GCSStore) URL(key string) string {
	return joinURL("gs://"+s.name, key)
}

func (s *GCSStore) Driver() string {
	return "gcs"
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
