package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/machine"
)

// MachineHandler 机台侧调试接口
type MachineHandler struct {
	cabinet *machine.Cabinet
}

// NewMachineHandler 创建机台处理器
func NewMachineHandler(cabinet *machine.Cabinet) *MachineHandler {
	return &MachineHandler{cabinet: cabinet}
}

// StateRequest 机台状态更新，未填写的字段保持不变
type StateRequest struct {
	InGame              *bool `json:"in_game"`
	Tilt                *bool `json:"tilt"`
	Overlay             *bool `json:"overlay"`
	TransferOutDisabled *bool `json:"transfer_out_disabled"`
	PrinterReady        *bool `json:"printer_ready"`
	BonusAllowed        *bool `json:"bonus_allowed"`
	AutoPlay            *bool `json:"auto_play"`
	HostCashOutEnabled  *bool `json:"host_cashout_enabled"`
	HostCashOutHard     *bool `json:"host_cashout_hard"`
}

// WinResponse 赢分结果
type WinResponse struct {
	Pending bool                  `json:"pending"`
	Status  machine.CabinetStatus `json:"status"`
}

// GetStatus 机台状态与余额
func (h *MachineHandler) GetStatus(c *gin.Context) {
	status, err := h.cabinet.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}

// UpdateState 修改机台状态
func (h *MachineHandler) UpdateState(c *gin.Context) {
	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidParam(err))
		return
	}

	state := h.cabinet.State
	setters := []struct {
		value *bool
		set   func(bool)
	}{
		{req.InGame, state.SetInGame},
		{req.Tilt, state.SetTilt},
		{req.Overlay, state.SetOverlay},
		{req.TransferOutDisabled, state.SetTransferOutDisabled},
		{req.PrinterReady, state.SetPrinterReady},
		{req.BonusAllowed, state.SetBonusAllowed},
	}
	for _, s := range setters {
		if s.value != nil {
			s.set(*s.value)
		}
	}

	if req.AutoPlay != nil {
		if *req.AutoPlay {
			state.StartAutoPlay()
		} else {
			state.EndAutoPlayIfActive()
		}
	}

	if req.HostCashOutEnabled != nil || req.HostCashOutHard != nil {
		enabled, hard := state.HostCashOutEnabled(), state.HostCashOutHardMode()
		if req.HostCashOutEnabled != nil {
			enabled = *req.HostCashOutEnabled
		}
		if req.HostCashOutHard != nil {
			hard = *req.HostCashOutHard
		}
		state.ApplyHostCashOutFlags(enabled, hard)
	}

	h.GetStatus(c)
}

// AwardWin 模拟游戏赢分
func (h *MachineHandler) AwardWin(c *gin.Context) {
	var amounts aft.Amounts
	if err := c.ShouldBindJSON(&amounts); err != nil {
		respondError(c, invalidParam(err))
		return
	}
	if amounts.IsZero() {
		respondError(c, newError(apperrors.ErrInvalidParam, "赢分不能为零"))
		return
	}

	ctx := c.Request.Context()
	pending, err := h.cabinet.AwardWin(ctx, amounts)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := h.cabinet.Status(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, WinResponse{Pending: pending, Status: status})
}
