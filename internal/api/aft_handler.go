package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/repository"
)

// assetSource 机台资产编号
type assetSource interface {
	AssetNumber() uint32
}

// AFTHandler AFT长轮询维护接口
type AFTHandler struct {
	engine    *aft.Engine
	assets    assetSource
	transfers *repository.TransferLogRepository
}

// NewAFTHandler 创建AFT处理器
func NewAFTHandler(engine *aft.Engine, assets assetSource, transfers *repository.TransferLogRepository) *AFTHandler {
	return &AFTHandler{
		engine:    engine,
		assets:    assets,
		transfers: transfers,
	}
}

// StatusResponse AFT状态
type StatusResponse struct {
	AssetNumber        uint32                 `json:"asset_number"`
	State              string                 `json:"state"`
	Cursor             byte                   `json:"history_cursor"`
	Locked             bool                   `json:"locked"`
	AvailableTransfers aft.CapabilityFlags    `json:"available_transfers"`
	AFTStatus          aft.StatusFlags        `json:"aft_status"`
	HostCashOutStatus  byte                   `json:"host_cashout_status"`
	Registration       aft.RegistrationStatus `json:"registration_status"`
}

// TransferRequest 转账请求（与0x72字段一致，注册密钥为十六进制）
type TransferRequest struct {
	TransferCode     aft.TransferCode    `json:"transfer_code"`
	TransactionIndex byte                `json:"transaction_index"`
	TransferType     aft.TransferType    `json:"transfer_type"`
	Cashable         uint64              `json:"cashable"`
	Restricted       uint64              `json:"restricted"`
	NonRestricted    uint64              `json:"non_restricted"`
	Flags            aft.TransferFlags   `json:"flags"`
	AssetNumber      uint32              `json:"asset_number"`
	RegistrationKey  aft.RegistrationKey `json:"registration_key"`
	TransactionID    string              `json:"transaction_id"`
	Expiration       uint32              `json:"expiration"`
	PoolID           uint16              `json:"pool_id"`
	LockTimeout      uint16              `json:"lock_timeout"`
	ReceiptData      aft.ReceiptData     `json:"receipt_data"`
}

// toRequest 未填写资产编号时使用本机编号
func (r *TransferRequest) toRequest(assetNumber uint32) aft.Request {
	if r.AssetNumber == 0 {
		r.AssetNumber = assetNumber
	}
	return aft.Request{
		TransferCode:     r.TransferCode,
		TransactionIndex: r.TransactionIndex,
		TransferType:     r.TransferType,
		Amounts: aft.Amounts{
			Cashable:      r.Cashable,
			Restricted:    r.Restricted,
			NonRestricted: r.NonRestricted,
		},
		Flags:           r.Flags,
		AssetNumber:     r.AssetNumber,
		RegistrationKey: r.RegistrationKey,
		TransactionID:   r.TransactionID,
		Expiration:      r.Expiration,
		PoolID:          r.PoolID,
		ReceiptData:     r.ReceiptData,
		LockTimeout:     r.LockTimeout,
	}
}

// ReceiptDataRequest 收据数据，键为字段编码
type ReceiptDataRequest struct {
	Fields map[aft.ReceiptField]string `json:"fields" binding:"required"`
}

// GetStatus 当前AFT状态
// @Summary 查询AFT状态
// @Tags AFT
// @Router /api/v1/aft/status [get]
func (h *AFTHandler) GetStatus(c *gin.Context) {
	respondOK(c, StatusResponse{
		AssetNumber:        h.assets.AssetNumber(),
		State:              h.engine.Dispatcher.State().String(),
		Cursor:             h.engine.History.Cursor(),
		Locked:             h.engine.Lock.IsLocked(),
		AvailableTransfers: h.engine.Capabilities.AvailableTransfers(),
		AFTStatus:          h.engine.Capabilities.Status(),
		HostCashOutStatus:  h.engine.Capabilities.HostCashOutBits(),
		Registration:       h.engine.Registrar.State().Status,
	})
}

// GetCurrent 当前转账记录
func (h *AFTHandler) GetCurrent(c *gin.Context) {
	record, ok := h.engine.Dispatcher.Current()
	if !ok {
		respondError(c, newError(apperrors.ErrNoTransferInfoAvailable, "当前没有转账"))
		return
	}
	respondOK(c, record)
}

// GetHistory 按主机索引读取历史（1..127 绝对，128..255 相对）
func (h *AFTHandler) GetHistory(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 8)
	if err != nil || index == 0 {
		respondError(c, newError(apperrors.ErrHistoryIndexOutOfRange, c.Param("index")))
		return
	}
	respondOK(c, h.engine.History.GetEntry(byte(index)))
}

// CreateTransfer 提交转账指令，走与主机相同的路由
// @Summary 提交转账
// @Tags AFT
// @Accept json
// @Produce json
// @Router /api/v1/aft/transfers [post]
func (h *AFTHandler) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidParam(err))
		return
	}
	respondOK(c, h.engine.TransferFunds(req.toRequest(h.assets.AssetNumber())))
}

// ListTransfers 分页查询已完成的转账
func (h *AFTHandler) ListTransfers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pagination := repository.NewPagination(page, pageSize)

	logs, err := h.transfers.List(c.Request.Context(), pagination)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, PageResponse{
		Items:    logs,
		Total:    pagination.Total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	})
}

// GetRegistration 当前注册信息
func (h *AFTHandler) GetRegistration(c *gin.Context) {
	state := h.engine.Registrar.State()
	respondOK(c, aft.RegistrationResponse{
		Status:      state.Status,
		AssetNumber: h.assets.AssetNumber(),
		Key:         state.Key,
		POSID:       state.POSID,
	})
}

// Register 注册指令（0x73）
func (h *AFTHandler) Register(c *gin.Context) {
	var req aft.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidParam(err))
		return
	}
	if req.AssetNumber == 0 {
		req.AssetNumber = h.assets.AssetNumber()
	}
	respondOK(c, h.engine.RegisterGamingMachine(c.Request.Context(), req))
}

// Lock 锁机与状态查询（0x74）
func (h *AFTHandler) Lock(c *gin.Context) {
	var req aft.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidParam(err))
		return
	}
	if req.AssetNumber == 0 {
		req.AssetNumber = h.assets.AssetNumber()
	}
	respondOK(c, h.engine.GameLockAndStatus(c.Request.Context(), req))
}

// SetReceiptData 设置收据数据（0x75）
func (h *AFTHandler) SetReceiptData(c *gin.Context) {
	var req ReceiptDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidParam(err))
		return
	}
	if err := h.engine.SetReceiptData(c.Request.Context(), req.Fields); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrReceiptData))
		return
	}
	respondOK(c, h.engine.Receipts.Fields())
}
