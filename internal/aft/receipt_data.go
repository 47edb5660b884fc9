package aft

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ReceiptField 收据数据字段编码（0x75）
type ReceiptField byte

const (
	ReceiptFieldLocation     ReceiptField = 0x00
	ReceiptFieldAddress1     ReceiptField = 0x01
	ReceiptFieldAddress2     ReceiptField = 0x02
	ReceiptFieldInHouseLine1 ReceiptField = 0x10
	ReceiptFieldInHouseLine2 ReceiptField = 0x11
	ReceiptFieldInHouseLine3 ReceiptField = 0x12
	ReceiptFieldInHouseLine4 ReceiptField = 0x13
	ReceiptFieldDebitLine1   ReceiptField = 0x20
	ReceiptFieldDebitLine2   ReceiptField = 0x21
	ReceiptFieldDebitLine3   ReceiptField = 0x22
	ReceiptFieldDebitLine4   ReceiptField = 0x23
)

// receiptFieldLimits 各字段最大长度
var receiptFieldLimits = map[ReceiptField]int{
	ReceiptFieldLocation:     40,
	ReceiptFieldAddress1:     40,
	ReceiptFieldAddress2:     40,
	ReceiptFieldInHouseLine1: 22,
	ReceiptFieldInHouseLine2: 22,
	ReceiptFieldInHouseLine3: 22,
	ReceiptFieldInHouseLine4: 22,
	ReceiptFieldDebitLine1:   22,
	ReceiptFieldDebitLine2:   22,
	ReceiptFieldDebitLine3:   22,
	ReceiptFieldDebitLine4:   22,
}

// ReceiptFieldLimit 字段最大长度，未知字段返回 false
func ReceiptFieldLimit(field ReceiptField) (int, bool) {
	limit, ok := receiptFieldLimits[field]
	return limit, ok
}

// ReceiptDataStore 收据数据持久化
type ReceiptDataStore interface {
	Load(ctx context.Context) (map[ReceiptField]string, error)
	Save(ctx context.Context, fields map[ReceiptField]string) error
}

// ReceiptBook 主机下发的收据抬头数据
type ReceiptBook struct {
	mu     sync.RWMutex
	fields map[ReceiptField]string
	store  ReceiptDataStore
	logger *zap.Logger
}

// NewReceiptBook 创建收据数据并从存储恢复
func NewReceiptBook(ctx context.Context, store ReceiptDataStore, logger *zap.Logger) (*ReceiptBook, error) {
	fields, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载收据数据失败: %w", err)
	}
	if fields == nil {
		fields = make(map[ReceiptField]string)
	}
	return &ReceiptBook{
		fields: fields,
		store:  store,
		logger: logger,
	}, nil
}

// Set 合并写入字段。未知字段或超长内容整体拒绝；空字符串清除该字段。
func (b *ReceiptBook) Set(ctx context.Context, updates map[ReceiptField]string) error {
	for field, value := range updates {
		limit, ok := receiptFieldLimits[field]
		if !ok {
			return fmt.Errorf("未知的收据字段: 0x%02X", byte(field))
		}
		if len(value) > limit {
			return fmt.Errorf("收据字段 0x%02X 超长: %d > %d", byte(field), len(value), limit)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[ReceiptField]string, len(b.fields)+len(updates))
	for field, value := range b.fields {
		next[field] = value
	}
	for field, value := range updates {
		if value == "" {
			delete(next, field)
			continue
		}
		next[field] = value
	}

	if err := b.store.Save(ctx, next); err != nil {
		return fmt.Errorf("保存收据数据失败: %w", err)
	}
	b.fields = next

	b.logger.Info("收据数据已更新", zap.Int("fields", len(updates)))
	return nil
}

// Get 读取字段
func (b *ReceiptBook) Get(field ReceiptField) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fields[field]
}

// Fields 全部字段副本
func (b *ReceiptBook) Fields() map[ReceiptField]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	fields := make(map[ReceiptField]string, len(b.fields))
	for field, value := range b.fields {
		fields[field] = value
	}
	return fields
}

// MemoryReceiptDataStore 内存收据数据存储
type MemoryReceiptDataStore struct {
	mu     sync.Mutex
	fields map[ReceiptField]string
}

// Load 读取
func (s *MemoryReceiptDataStore) Load(ctx context.Context) (map[ReceiptField]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make(map[ReceiptField]string, len(s.fields))
	for field, value := range s.fields {
		fields[field] = value
	}
	return fields, nil
}

// Save 整体替换
func (s *MemoryReceiptDataStore) Save(ctx context.Context, fields map[ReceiptField]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = make(map[ReceiptField]string, len(fields))
	for field, value := range fields {
		s.fields[field] = value
	}
	return nil
}
