package aft

import (
	"context"
	"sync"
)

// MemoryHistoryStore 内存历史存储（用于测试和无数据库模式）
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	snapshot *HistorySnapshot
	saves    int
	failNext error
}

// NewMemoryHistoryStore 创建内存历史存储
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

// Load 读取快照副本
func (s *MemoryHistoryStore) Load(ctx context.Context) (*HistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, nil
	}
	snapshotCopy := *s.snapshot
	return &snapshotCopy, nil
}

// Save 整体替换快照
func (s *MemoryHistoryStore) Save(ctx context.Context, snapshot *HistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	snapshotCopy := *snapshot
	s.snapshot = &snapshotCopy
	s.saves++
	return nil
}

// FailNextSave 让下一次保存返回错误
func (s *MemoryHistoryStore) FailNextSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Saves 成功保存次数
func (s *MemoryHistoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
