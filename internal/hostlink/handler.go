package hostlink

import (
	"context"

	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"go.uber.org/zap"
)

// Engine 主机链路调用的引擎操作
type Engine interface {
	TransferFunds(request aft.Request) aft.Record
	RegisterGamingMachine(ctx context.Context, request aft.RegistrationRequest) aft.RegistrationResponse
	GameLockAndStatus(ctx context.Context, request aft.LockRequest) aft.LockResponse
	SetReceiptData(ctx context.Context, fields map[aft.ReceiptField]string) error
}

// AssetSource 机台资产编号
type AssetSource interface {
	AssetNumber() uint32
}

// Handler 长轮询分发：解码请求、调用引擎、编码应答
type Handler struct {
	engine Engine
	assets AssetSource
	logger *zap.Logger
}

// NewHandler 创建长轮询分发器
func NewHandler(engine Engine, assets AssetSource, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, assets: assets, logger: logger}
}

// Handle 处理一帧请求，返回应答数据
func (h *Handler) Handle(ctx context.Context, frame *Frame) ([]byte, error) {
	switch frame.Command {
	case CmdTransferFunds:
		request, err := DecodeTransferRequest(frame.Data)
		if err != nil {
			return nil, err
		}
		record := h.engine.TransferFunds(request)
		h.logger.Debug("转账应答",
			zap.String("transaction_id", record.TransactionID),
			zap.Uint8("status", uint8(record.Status)),
			zap.Uint8("position", record.Position))
		return EncodeTransferResponse(record), nil

	case CmdRegister:
		request, err := DecodeRegistrationRequest(frame.Data)
		if err != nil {
			return nil, err
		}
		return EncodeRegistrationResponse(h.engine.RegisterGamingMachine(ctx, request)), nil

	case CmdGameLockStatus:
		request, err := DecodeLockRequest(frame.Data, h.assets.AssetNumber())
		if err != nil {
			return nil, err
		}
		return EncodeLockResponse(h.engine.GameLockAndStatus(ctx, request)), nil

	case CmdSetReceiptData:
		fields, err := DecodeReceiptFields(frame.Data)
		if err != nil {
			return nil, err
		}
		if err := h.engine.SetReceiptData(ctx, fields); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrReceiptData)
		}
		// 设置成功只回确认帧
		return nil, nil

	default:
		return nil, apperrors.Newf(apperrors.ErrUnsupportedCommand, "0x%02X", frame.Command)
	}
}
