package storage

import (
	"context"
	"time"

	"mailboxgw/internal/metrics"
)

// instrumented 为任意驱动记录延迟和结果
type instrumented struct {
	ObjectStore
}

// Instrument 包装存储，采集 prometheus 指标
func Instrument(store ObjectStore) ObjectStore {
	if _, ok := store.(*instrumented); ok {
		return store
	}
	return &instrumented{ObjectStore: store}
}

func (s *instrumented) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.ObjectStore.Put(ctx, key, data)
	s.observe("put", start, err)
	return err
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.ObjectStore.Get(ctx, key)
	s.observe("get", start, err)
	return data, err
}

func (s *instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.ObjectStore.List(ctx, prefix)
	s.observe("list", start, err)
	return keys, err
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsNotFound(err):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.StoreLatency.WithLabelValues(s.Driver(), op, result).Observe(time.Since(start).Seconds())
}
