package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/config"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/hostlink"
	"github.com/wfunc/egm-aft/internal/machine"
	"github.com/wfunc/egm-aft/internal/middleware"
	"github.com/wfunc/egm-aft/internal/repository"
	"github.com/wfunc/egm-aft/internal/utils"
	ws "github.com/wfunc/egm-aft/internal/websocket"
	"go.uber.org/zap"
)

// LinkStats 主机链路统计来源
type LinkStats interface {
	Stats() hostlink.Stats
}

// Dependencies 路由依赖
type Dependencies struct {
	Engine   *aft.Engine
	Cabinet  *machine.Cabinet
	Repos    *repository.Manager
	Events   *ws.Hub
	Link     LinkStats // 串口未启用时为空
	Security config.SecurityConfig
}

// Router API路由器
type Router struct {
	engine *gin.Engine
	server *http.Server
	deps   Dependencies

	authMiddleware  *middleware.AuthMiddleware
	authHandler     *AuthHandler
	aftHandler      *AFTHandler
	machineHandler  *MachineHandler
	hostLinkHandler *HostLinkHandler
	eventsHandler   *EventsHandler

	log *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(cfg config.ServerConfig, deps Dependencies, log *zap.Logger) *Router {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Recovery(), middleware.Logger())

	// 未配置密钥时维护接口不鉴权
	var jwtManager *utils.JWTManager
	var validator middleware.TokenValidator
	if deps.Security.JWT.Secret != "" {
		expire := time.Duration(deps.Security.JWT.ExpireHours) * time.Hour
		if expire <= 0 {
			expire = 8 * time.Hour
		}
		jwtManager = utils.NewJWTManager(deps.Security.JWT.Secret, expire)
		validator = jwtManager
	}

	router := &Router{
		engine:          engine,
		deps:            deps,
		authMiddleware:  middleware.NewAuthMiddleware(validator),
		authHandler:     NewAuthHandler(deps.Security.Operator, jwtManager),
		aftHandler:      NewAFTHandler(deps.Engine, deps.Cabinet.Options, deps.Repos.TransferLog()),
		machineHandler:  NewMachineHandler(deps.Cabinet),
		hostLinkHandler: NewHostLinkHandler(deps.Link, deps.Repos.HostFrameLog()),
		eventsHandler:   NewEventsHandler(deps.Events, log.Named("events")),
		log:             log,
	}
	router.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/auth/login", r.authHandler.Login)

		secured := v1.Group("")
		secured.Use(r.authMiddleware.RequireAuth())

		aftGroup := secured.Group("/aft")
		{
			aftGroup.GET("/status", r.aftHandler.GetStatus)
			aftGroup.GET("/current", r.aftHandler.GetCurrent)
			aftGroup.GET("/history/:index", r.aftHandler.GetHistory)
			aftGroup.GET("/transfers", r.aftHandler.ListTransfers)
			aftGroup.POST("/transfers", r.aftHandler.CreateTransfer)
			aftGroup.GET("/registration", r.aftHandler.GetRegistration)
			aftGroup.POST("/registration", r.aftHandler.Register)
			aftGroup.POST("/lock", r.aftHandler.Lock)
			aftGroup.PUT("/receipt-data", r.aftHandler.SetReceiptData)
		}

		machineGroup := secured.Group("/machine")
		{
			machineGroup.GET("/status", r.machineHandler.GetStatus)
			machineGroup.PUT("/state", r.machineHandler.UpdateState)
			machineGroup.POST("/win", r.machineHandler.AwardWin)
		}

		linkGroup := secured.Group("/hostlink")
		{
			linkGroup.GET("/stats", r.hostLinkHandler.GetStats)
			linkGroup.GET("/frames", r.hostLinkHandler.QueryFrames)
		}
	}

	r.engine.GET("/ws/aft/events", r.authMiddleware.RequireAuth(), r.eventsHandler.Serve)

	r.engine.NoRoute(func(c *gin.Context) {
		respondError(c, newError(apperrors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.deps.Repos.GetDB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"message":    "服务运行正常",
		"aft_state":  r.deps.Engine.Dispatcher.State().String(),
		"ws_clients": r.deps.Events.ClientCount(),
	})
}

// Run 启动HTTP服务，Shutdown 后返回 nil
func (r *Router) Run() error {
	r.log.Info("维护接口启动", zap.String("address", r.server.Addr))
	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
