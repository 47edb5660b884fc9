package aft

import (
	"context"

	"go.uber.org/zap"
)

// Stores 引擎的持久化存储
type Stores struct {
	History      HistoryStore
	Registration RegistrationStore
	ReceiptData  ReceiptDataStore
}

// Engine 组装好的AFT协议引擎
type Engine struct {
	History      *HistoryBuffer
	Dispatcher   *Dispatcher
	Router       *Router
	Capabilities *CapabilityResolver
	Lock         *GameLock
	Registrar    *Registrar
	Receipts     *ReceiptBook
}

// NewEngine 创建AFT引擎。
// deps.Registration 为空时使用内置的 Registrar。
func NewEngine(ctx context.Context, deps Collaborators, stores Stores, logger *zap.Logger) (*Engine, error) {
	registrar, err := NewRegistrar(ctx, stores.Registration, deps.Features, logger)
	if err != nil {
		return nil, err
	}
	if deps.Registration == nil {
		deps.Registration = registrar
	}

	history, err := NewHistoryBuffer(ctx, stores.History, logger)
	if err != nil {
		return nil, err
	}

	receipts, err := NewReceiptBook(ctx, stores.ReceiptData, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := NewDispatcher(&deps, history, NewProcessorRegistry(&deps), logger)
	resolver := NewCapabilityResolver(&deps, dispatcher)
	lock := NewGameLock(&deps, resolver, logger)
	dispatcher.SetLock(lock)

	return &Engine{
		History:      history,
		Dispatcher:   dispatcher,
		Router:       NewRouter(dispatcher, history, deps.HostCashOut, logger),
		Capabilities: resolver,
		Lock:         lock,
		Registrar:    registrar,
		Receipts:     receipts,
	}, nil
}

// TransferFunds 转账指令（0x72）
func (e *Engine) TransferFunds(request Request) Record {
	return e.Router.Handle(request)
}

// RegisterGamingMachine 注册指令（0x73）
func (e *Engine) RegisterGamingMachine(ctx context.Context, request RegistrationRequest) RegistrationResponse {
	return e.Registrar.Handle(ctx, request)
}

// GameLockAndStatus 锁机与状态查询（0x74）
func (e *Engine) GameLockAndStatus(ctx context.Context, request LockRequest) LockResponse {
	return e.Lock.Handle(ctx, request)
}

// SetReceiptData 设置收据数据（0x75）
func (e *Engine) SetReceiptData(ctx context.Context, fields map[ReceiptField]string) error {
	return e.Receipts.Set(ctx, fields)
}

// Close 等待后台任务并释放游戏锁
func (e *Engine) Close() {
	e.Dispatcher.Wait()
	e.Lock.Release()
}
