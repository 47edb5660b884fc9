package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/egm-aft/internal/models"
	"github.com/wfunc/egm-aft/internal/repository"
)

// HostLinkHandler 主机链路诊断接口
type HostLinkHandler struct {
	link   LinkStats
	frames *repository.HostFrameLogRepository
}

// NewHostLinkHandler 创建链路处理器，link 可为空
func NewHostLinkHandler(link LinkStats, frames *repository.HostFrameLogRepository) *HostLinkHandler {
	return &HostLinkHandler{
		link:   link,
		frames: frames,
	}
}

// GetStats 链路统计
func (h *HostLinkHandler) GetStats(c *gin.Context) {
	if h.link == nil {
		respondOK(c, gin.H{"enabled": false})
		return
	}
	respondOK(c, gin.H{"enabled": true, "stats": h.link.Stats()})
}

// QueryFrames 查询链路帧记录
func (h *HostLinkHandler) QueryFrames(c *gin.Context) {
	query := &models.HostFrameLogQuery{
		Direction: models.FrameDirection(c.Query("direction")),
		RequestID: c.Query("request_id"),
	}

	if command := c.Query("command"); command != "" {
		// 支持 0x72 与 114 两种写法
		v, err := strconv.ParseUint(command, 0, 8)
		if err != nil {
			respondError(c, invalidParam(err))
			return
		}
		cmd := uint8(v)
		query.Command = &cmd
	}

	// 时间范围
	if startTime := c.Query("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.StartTime = &t
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.EndTime = &t
		}
	}

	if hasError := c.Query("has_error"); hasError != "" {
		b := hasError == "true"
		query.HasError = &b
	}

	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := h.frames.Query(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"items":  logs,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}
