// Package testutil 测试辅助：可计数、可注入故障的对象存储
package testutil

import (
	"context"
	"errors"
	"sync"

	"mailboxgw/internal/storage"
)

// ErrInjected 注入的存储故障
var ErrInjected = errors.New("testutil: injected store failure")

// CountingStore 包装内存存储，记录调用次数并按需返回故障
type CountingStore struct {
	storage.ObjectStore

	mu       sync.Mutex
	puts     int
	gets     int
	lists    int
	failPut  bool
	failGet  bool
	failList bool
}

// NewCountingStore 基于内存存储创建
func NewCountingStore() *CountingStore {
	return &CountingStore{ObjectStore: storage.NewMemoryStore()}
}

// FailPuts 之后的 Put 全部失败
func (s *CountingStore) FailPuts(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = fail
}

// FailGets 之后的 Get 全部失败
func (s *CountingStore) FailGets(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = fail
}

// FailLists 之后的 List 全部失败
func (s *CountingStore) FailLists(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = fail
}

func (s *CountingStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	s.puts++
	fail := s.failPut
	s.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return s.ObjectStore.Put(ctx, key, data)
}

func (s *CountingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	s.gets++
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return s.ObjectStore.Get(ctx, key)
}

func (s *CountingStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	s.lists++
	fail := s.failList
	s.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return s.ObjectStore.List(ctx, prefix)
}

// Calls 总调用次数
func (s *CountingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts + s.gets + s.lists
}

// Puts Put 调用次数
func (s *CountingStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Keys 当前所有对象键（不计入调用次数）
func (s *CountingStore) Keys(t interface{ Fatalf(string, ...any) }) []string {
	keys, err := s.ObjectStore.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	return keys
}
