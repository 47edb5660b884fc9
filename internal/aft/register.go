package aft

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// RegistrationCode 注册指令码（0x73）
type RegistrationCode byte

const (
	RegistrationCodeInitialize RegistrationCode = 0x00
	RegistrationCodeRegister   RegistrationCode = 0x01
	RegistrationCodeRequestAck RegistrationCode = 0x40
	RegistrationCodeUnregister RegistrationCode = 0x80
	RegistrationCodeRead       RegistrationCode = 0xFF
)

// RegistrationStatus 注册状态
type RegistrationStatus byte

const (
	RegistrationStatusReady         RegistrationStatus = 0x00
	RegistrationStatusRegistered    RegistrationStatus = 0x01
	RegistrationStatusPending       RegistrationStatus = 0x40
	RegistrationStatusNotRegistered RegistrationStatus = 0x80
)

// String 返回状态名称
func (s RegistrationStatus) String() string {
	switch s {
	case RegistrationStatusReady:
		return "ready"
	case RegistrationStatusRegistered:
		return "registered"
	case RegistrationStatusPending:
		return "pending"
	case RegistrationStatusNotRegistered:
		return "not_registered"
	default:
		return "unknown"
	}
}

// RegistrationState 持久化的注册信息
type RegistrationState struct {
	Status RegistrationStatus `json:"status"`
	Key    RegistrationKey    `json:"key"`
	POSID  uint32             `json:"pos_id"`
}

// RegistrationStore 注册信息持久化，首次启动返回 nil
type RegistrationStore interface {
	Load(ctx context.Context) (*RegistrationState, error)
	Save(ctx context.Context, state RegistrationState) error
}

// RegistrationRequest 注册请求
type RegistrationRequest struct {
	Code        RegistrationCode `json:"registration_code"`
	AssetNumber uint32           `json:"asset_number"`
	Key         RegistrationKey  `json:"registration_key"`
	POSID       uint32           `json:"pos_id"`
}

// RegistrationResponse 注册应答
type RegistrationResponse struct {
	Status      RegistrationStatus `json:"registration_status"`
	AssetNumber uint32             `json:"asset_number"`
	Key         RegistrationKey    `json:"registration_key"`
	POSID       uint32             `json:"pos_id"`
}

// Registrar 机台注册（实现 RegistrationProvider）
type Registrar struct {
	mu       sync.RWMutex
	state    RegistrationState
	store    RegistrationStore
	features FeatureConfiguration
	logger   *zap.Logger
}

// NewRegistrar 创建注册管理并恢复持久化状态
func NewRegistrar(ctx context.Context, store RegistrationStore, features FeatureConfiguration, logger *zap.Logger) (*Registrar, error) {
	r := &Registrar{
		state:    RegistrationState{Status: RegistrationStatusNotRegistered},
		store:    store,
		features: features,
		logger:   logger,
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载注册信息失败: %w", err)
	}
	if state != nil {
		r.state = *state
	}
	return r, nil
}

// IsRegistered 是否已注册
func (r *Registrar) IsRegistered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Status == RegistrationStatusRegistered
}

// RegistrationKey 已保存的注册密钥
func (r *Registrar) RegistrationKey() RegistrationKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Key
}

// KeyMatches 已注册且密钥一致
func (r *Registrar) KeyMatches(key RegistrationKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Status == RegistrationStatusRegistered && r.state.Key == key
}

// POSID 注册时登记的POS编号
func (r *Registrar) POSID() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.POSID
}

// DebitTransfersEnabled 借记转账是否启用
func (r *Registrar) DebitTransfersEnabled() bool {
	return r.features.DebitTransfersEnabled()
}

// State 当前注册信息
func (r *Registrar) State() RegistrationState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Handle 处理注册指令，持久化成功后才更新内存状态
func (r *Registrar) Handle(ctx context.Context, request RegistrationRequest) RegistrationResponse {
	assetNumber := r.features.AssetNumber()

	if request.Code != RegistrationCodeRead {
		if request.AssetNumber != assetNumber {
			r.logger.Warn("注册请求资产编号不符，忽略",
				zap.Uint32("asset_number", request.AssetNumber),
				zap.Uint32("expected", assetNumber))
		} else if next, ok := r.transition(request); ok {
			r.apply(ctx, next)
		}
	}

	state := r.State()
	return RegistrationResponse{
		Status:      state.Status,
		AssetNumber: assetNumber,
		Key:         state.Key,
		POSID:       state.POSID,
	}
}

// transition 计算指令对应的新状态
func (r *Registrar) transition(request RegistrationRequest) (RegistrationState, bool) {
	switch request.Code {
	case RegistrationCodeInitialize:
		return RegistrationState{Status: RegistrationStatusReady}, true
	case RegistrationCodeRegister, RegistrationCodeRequestAck:
		return RegistrationState{
			Status: RegistrationStatusRegistered,
			Key:    request.Key,
			POSID:  request.POSID,
		}, true
	case RegistrationCodeUnregister:
		return RegistrationState{Status: RegistrationStatusNotRegistered}, true
	default:
		r.logger.Warn("未知的注册指令码", zap.Uint8("registration_code", uint8(request.Code)))
		return RegistrationState{}, false
	}
}

func (r *Registrar) apply(ctx context.Context, next RegistrationState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Save(ctx, next); err != nil {
		r.logger.Error("保存注册信息失败", zap.Error(err))
		return
	}
	r.state = next

	r.logger.Info("注册状态已更新",
		zap.String("status", next.Status.String()),
		zap.Uint32("pos_id", next.POSID))
}

// MemoryRegistrationStore 内存注册信息存储
type MemoryRegistrationStore struct {
	mu    sync.Mutex
	state *RegistrationState
}

// Load 读取注册信息
func (s *MemoryRegistrationStore) Load(ctx context.Context) (*RegistrationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	state := *s.state
	return &state, nil
}

// Save 保存注册信息
func (s *MemoryRegistrationStore) Save(ctx context.Context, state RegistrationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}
