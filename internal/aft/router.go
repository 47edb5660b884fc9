package aft

import (
	"go.uber.org/zap"
)

// Router 转账指令（0x72）入口：重发检测并按转账码路由
type Router struct {
	dispatcher *Dispatcher
	history    *HistoryBuffer
	hostCash   HostCashOutProvider
	logger     *zap.Logger
}

// NewRouter 创建指令路由
func NewRouter(dispatcher *Dispatcher, history *HistoryBuffer, hostCash HostCashOutProvider, logger *zap.Logger) *Router {
	return &Router{
		dispatcher: dispatcher,
		history:    history,
		hostCash:   hostCash,
		logger:     logger,
	}
}

// Handle 处理一条转账指令，总是返回带有明确状态码的记录
func (r *Router) Handle(request Request) Record {
	switch request.TransferCode {
	case TransferCodeFullOnly, TransferCodePartialAllowed:
		return r.transfer(request)
	case TransferCodeCancel:
		r.logger.Info("不支持取消进行中的转账，返回当前状态",
			zap.String("transaction_id", request.TransactionID))
		return r.interrogate(request.TransactionIndex, false)
	case TransferCodeInterrogateStatusOnly:
		return r.interrogate(request.TransactionIndex, false)
	case TransferCodeInterrogate:
		return r.interrogate(request.TransactionIndex, true)
	default:
		r.logger.Warn("不支持的转账码",
			zap.Uint8("transfer_code", uint8(request.TransferCode)),
			zap.String("transaction_id", request.TransactionID))
		return Record{
			Request:       request,
			Status:        StatusUnsupportedTransferCode,
			ReceiptStatus: ReceiptNotRequested,
		}
	}
}

// transfer 新的全额/部分转账
func (r *Router) transfer(request Request) Record {
	record, duplicate := r.dispatcher.Process(request)
	if duplicate || record.Status == StatusNotCompatibleWithCurrentTransfer {
		return record
	}

	if request.Flags.Has(FlagHostCashOutEnableControl) {
		r.hostCash.ApplyHostCashOutFlags(
			request.Flags.Has(FlagHostCashOutEnable),
			request.Flags.Has(FlagHostCashOutModeHard),
		)
	}
	return record
}

// interrogate 查询当前转账或历史条目
func (r *Router) interrogate(index byte, acknowledge bool) Record {
	if index != 0 {
		return r.history.GetEntry(index).Record()
	}

	record, ok := r.dispatcher.Interrogate(acknowledge)
	if !ok {
		return Record{
			Request: Request{
				TransferCode: TransferCodeInterrogate,
			},
			Status:        StatusNoTransferInfoAvailable,
			ReceiptStatus: ReceiptNotRequested,
		}
	}
	return record
}
