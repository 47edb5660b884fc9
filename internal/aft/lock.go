package aft

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LockCode 锁机指令码
type LockCode byte

const (
	LockCodeRequest     LockCode = 0x00
	LockCodeCancel      LockCode = 0x80
	LockCodeInterrogate LockCode = 0xFF
)

// LockStatus 游戏锁状态
type LockStatus byte

const (
	LockStatusLocked    LockStatus = 0x00
	LockStatusPending   LockStatus = 0x40
	LockStatusNotLocked LockStatus = 0xFF
)

// DefaultLockTimeout 主机未给出超时时间时的锁定时长
const DefaultLockTimeout = 10 * time.Second

// LockRequest 锁机与状态查询请求（0x74）
type LockRequest struct {
	AssetNumber uint32         `json:"asset_number"`
	Code        LockCode       `json:"lock_code"`
	Conditions  LockConditions `json:"transfer_condition"`
	// Timeout 百分之一秒
	Timeout uint16 `json:"lock_timeout"`
}

// LockResponse 锁机与状态应答
type LockResponse struct {
	AssetNumber          uint32     `json:"asset_number"`
	LockStatus           LockStatus `json:"game_lock_status"`
	AvailableTransfers   byte       `json:"available_transfers"`
	HostCashOutStatus    byte       `json:"host_cashout_status"`
	AFTStatus            byte       `json:"aft_status"`
	MaxHistoryIndex      byte       `json:"max_buffer_index"`
	Balances             Amounts    `json:"balances"`
	TransferLimit        uint64     `json:"transfer_limit"`
	RestrictedExpiration uint32     `json:"restricted_expiration"`
	RestrictedPoolID     uint16     `json:"restricted_pool_id"`
}

// GameLock 主机锁机状态，超时自动释放
type GameLock struct {
	mu         sync.Mutex
	status     LockStatus
	timer      *time.Timer
	generation uint64

	deps     *Collaborators
	resolver *CapabilityResolver
	logger   *zap.Logger
}

// NewGameLock 创建游戏锁
func NewGameLock(deps *Collaborators, resolver *CapabilityResolver, logger *zap.Logger) *GameLock {
	return &GameLock{
		status:   LockStatusNotLocked,
		deps:     deps,
		resolver: resolver,
		logger:   logger,
	}
}

// IsLocked 是否处于锁定状态
func (g *GameLock) IsLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status == LockStatusLocked
}

// Status 当前锁状态
func (g *GameLock) Status() LockStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Release 解除锁定
func (g *GameLock) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

func (g *GameLock) releaseLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.generation++
	if g.status != LockStatusNotLocked {
		g.logger.Info("游戏锁已解除")
	}
	g.status = LockStatusNotLocked
}

// Handle 处理锁机请求并返回当前AFT状态
func (g *GameLock) Handle(ctx context.Context, request LockRequest) LockResponse {
	assetNumber := g.deps.Features.AssetNumber()

	switch {
	case request.Code == LockCodeInterrogate:
	case request.AssetNumber != assetNumber:
		g.logger.Warn("锁机请求资产编号不符，忽略",
			zap.Uint32("asset_number", request.AssetNumber),
			zap.Uint32("expected", assetNumber))
	case request.Code == LockCodeCancel:
		g.Release()
	case request.Code == LockCodeRequest:
		// 先推导能力再加锁，能力推导会读取调度器状态
		allowed := g.resolver.TransferAllowedUnderLock(request.Conditions)
		if allowed {
			g.lock(request.Timeout)
		} else {
			g.logger.Info("当前不满足锁机条件",
				zap.Uint8("conditions", uint8(request.Conditions)))
		}
	default:
		g.logger.Warn("未知的锁机指令码", zap.Uint8("lock_code", uint8(request.Code)))
	}

	return g.response(ctx, assetNumber)
}

// lock 加锁并启动超时计时
func (g *GameLock) lock(timeout uint16) {
	duration := time.Duration(timeout) * 10 * time.Millisecond
	if duration == 0 {
		duration = DefaultLockTimeout
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.generation++
	generation := g.generation
	g.status = LockStatusLocked
	g.timer = time.AfterFunc(duration, func() {
		g.expire(generation)
	})

	g.logger.Info("游戏已锁定", zap.Duration("timeout", duration))
}

// expire 超时释放，只处理本次加锁的计时器
func (g *GameLock) expire(generation uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if generation != g.generation || g.status != LockStatusLocked {
		return
	}
	g.timer = nil
	g.generation++
	g.status = LockStatusNotLocked
	g.logger.Info("游戏锁超时释放")
}

func (g *GameLock) response(ctx context.Context, assetNumber uint32) LockResponse {
	balances, err := g.deps.Ledger.Balances(ctx)
	if err != nil {
		g.logger.Error("查询余额失败", zap.Error(err))
	}

	return LockResponse{
		AssetNumber:          assetNumber,
		LockStatus:           g.Status(),
		AvailableTransfers:   g.resolver.AvailableTransfers().Bits(),
		HostCashOutStatus:    g.resolver.HostCashOutBits(),
		AFTStatus:            g.resolver.Status().Bits(),
		MaxHistoryIndex:      MaxHistoryIndex,
		Balances:             balances.Amounts,
		TransferLimit:        g.deps.Features.TransferLimit(),
		RestrictedExpiration: balances.RestrictedExpiration,
		RestrictedPoolID:     balances.RestrictedPoolID,
	}
}
