package aft

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// HistorySize 历史缓冲区容量，槽位0保留
	HistorySize = 128
	// MaxHistoryIndex 最大绝对位置
	MaxHistoryIndex = HistorySize - 1
	historyMask     = 0x7F
)

// HistorySnapshot 历史缓冲区持久化文档
type HistorySnapshot struct {
	Cursor  byte                      `json:"cursor"`
	Entries [HistorySize]HistoryEntry `json:"entries"`
}

// HistoryStore 历史缓冲区持久化接口。
// Save 必须整体替换文档，不允许留下部分写入的状态。
type HistoryStore interface {
	Load(ctx context.Context) (*HistorySnapshot, error)
	Save(ctx context.Context, snapshot *HistorySnapshot) error
}

// HistoryBuffer 固定容量的环形转账历史
type HistoryBuffer struct {
	mu      sync.RWMutex
	cursor  byte
	entries [HistorySize]HistoryEntry
	store   HistoryStore
	logger  *zap.Logger
}

// NewHistoryBuffer 创建历史缓冲区并从持久化存储恢复
func NewHistoryBuffer(ctx context.Context, store HistoryStore, logger *zap.Logger) (*HistoryBuffer, error) {
	h := &HistoryBuffer{
		cursor: 1,
		store:  store,
		logger: logger,
	}
	for i := range h.entries {
		h.entries[i] = emptyEntry(byte(i))
	}

	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载转账历史失败: %w", err)
	}
	if snapshot != nil {
		h.entries = snapshot.Entries
		if snapshot.Cursor >= 1 && snapshot.Cursor <= MaxHistoryIndex {
			h.cursor = snapshot.Cursor
		}
		logger.Info("转账历史已恢复", zap.Uint8("cursor", h.cursor))
	}

	return h, nil
}

// Cursor 下一个写入位置
func (h *HistoryBuffer) Cursor() byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// AddEntry 写入一条历史并返回分配到的绝对位置。
// 新文档持久化成功后才更新内存状态。
func (h *HistoryBuffer) AddEntry(ctx context.Context, entry HistoryEntry) (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	position := h.cursor
	entry.Position = position

	next := &HistorySnapshot{
		Cursor:  nextPosition(position),
		Entries: h.entries,
	}
	next.Entries[position] = entry

	if err := h.store.Save(ctx, next); err != nil {
		h.logger.Error("保存转账历史失败",
			zap.Uint8("position", position),
			zap.String("transaction_id", entry.TransactionID),
			zap.Error(err))
		return 0, fmt.Errorf("保存转账历史失败: %w", err)
	}

	h.entries = next.Entries
	h.cursor = next.Cursor

	h.logger.Debug("转账历史已写入",
		zap.Uint8("position", position),
		zap.Uint8("cursor", h.cursor),
		zap.String("transaction_id", entry.TransactionID))

	return position, nil
}

// GetEntry 按索引读取历史。
// 1..127 为绝对位置，128..255 为相对位置（255 为最近一条）。
// 未写入的槽位返回 StatusNoTransferInfoAvailable，并回填请求的索引。
func (h *HistoryBuffer) GetEntry(index byte) HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	position := h.resolve(index)
	entry := h.entries[position]
	if position == 0 || entry.Status == StatusNoTransferInfoAvailable {
		return emptyEntry(index)
	}
	return entry
}

// ContainsTransactionID 交易号是否已出现在历史中
func (h *HistoryBuffer) ContainsTransactionID(transactionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := 1; i < HistorySize; i++ {
		entry := &h.entries[i]
		if entry.Status != StatusNoTransferInfoAvailable && entry.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// resolve 将主机索引换算为绝对位置（调用方持有锁）
func (h *HistoryBuffer) resolve(index byte) byte {
	if index <= MaxHistoryIndex {
		return index
	}

	offset := HistorySize*2 - int(index)
	position := (int(h.cursor) + int(index)) & historyMask
	if offset > int(h.cursor) {
		position--
	}
	if position == 0 {
		position = MaxHistoryIndex
	}
	return byte(position)
}

// nextPosition 游标前进一位，跳过槽位0
func nextPosition(position byte) byte {
	if position >= MaxHistoryIndex {
		return 1
	}
	return position + 1
}
