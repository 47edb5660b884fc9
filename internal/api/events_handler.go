package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	ws "github.com/wfunc/egm-aft/internal/websocket"
	"go.uber.org/zap"
)

// EventsHandler 转账事件流
type EventsHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventsHandler 创建事件流处理器
func NewEventsHandler(hub *ws.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 维护端部署在局域网，不校验Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve 升级为WebSocket并订阅转账事件
func (h *EventsHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn)
	if err := h.hub.Register(client); err != nil {
		h.logger.Warn("事件流已关闭，拒绝连接", zap.String("remote", client.Remote))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
