package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/api"
	"github.com/wfunc/egm-aft/internal/config"
	"github.com/wfunc/egm-aft/internal/database"
	"github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/hostlink"
	"github.com/wfunc/egm-aft/internal/logger"
	"github.com/wfunc/egm-aft/internal/machine"
	"github.com/wfunc/egm-aft/internal/repository"
	ws "github.com/wfunc/egm-aft/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	repos    *repository.Manager
	cabinet  *machine.Cabinet
	engine   *aft.Engine
	hub      *ws.Hub
	link     *hostlink.Link
	frameLog *hostlink.FrameLog
	router   *api.Router

	// 关闭控制
	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 初始化组件并启动服务
func (s *Server) Start() error {
	s.logger.Info("正在启动AFT服务...",
		zap.String("version", Version),
		zap.Uint32("asset_number", s.cfg.AFT.AssetNumber),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}
	if err := s.initEngine(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化AFT引擎失败")
	}
	s.initHostLink()
	s.startServices()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseUpdate, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.repos = repository.NewManager(database.GetDB())
	return nil
}

// initEngine 组装机台协作者和AFT引擎
func (s *Server) initEngine() error {
	cabinet, err := machine.NewCabinet(s.ctx, s.repos, s.cfg.AFT, s.cfg.Machine, logger.WithModule("machine"))
	if err != nil {
		return err
	}
	s.cabinet = cabinet

	engine, err := aft.NewEngine(s.ctx, cabinet.Collaborators(), aft.Stores{
		History:      s.repos.History(),
		Registration: s.repos.Registration(),
		ReceiptData:  s.repos.ReceiptData(),
	}, logger.WithModule("aft"))
	if err != nil {
		return err
	}
	s.engine = engine
	cabinet.Printer.BindReceiptHeaders(engine.Receipts)

	s.hub = ws.NewHub(logger.WithModule("websocket"))
	engine.Dispatcher.AddObserver(machine.NewJournal(s.repos.TransferLog(), logger.WithModule("journal")))
	engine.Dispatcher.AddObserver(s.hub)
	return nil
}

// initHostLink 初始化主机串口链路
func (s *Server) initHostLink() {
	if !s.cfg.Serial.Enabled {
		s.logger.Info("主机串口未启用")
		return
	}

	log := logger.WithModule("hostlink")
	handler := hostlink.NewHandler(s.engine, s.cabinet.Options, log)
	s.link = hostlink.NewLink(s.cfg.Serial, hostlink.SerialOpener(s.cfg.Serial), handler, log)

	if s.cfg.Serial.LogFrames {
		s.frameLog = hostlink.NewFrameLog(s.repos.HostFrameLog(), log.Named("frames"))
		s.link.SetRecorder(s.frameLog)
	}
}

// startServices 启动后台服务
func (s *Server) startServices() {
	s.wg.Go(func() { s.hub.Run(s.ctx) })

	if s.link != nil {
		s.wg.Go(func() {
			if err := s.link.Run(s.ctx); err != nil {
				s.logger.Error("主机链路已停止", zap.Error(err))
			}
		})
	}

	if s.cfg.Server.Enabled {
		deps := api.Dependencies{
			Engine:   s.engine,
			Cabinet:  s.cabinet,
			Repos:    s.repos,
			Events:   s.hub,
			Security: s.cfg.Security,
		}
		if s.link != nil {
			deps.Link = s.link
		}
		s.router = api.NewRouter(s.cfg.Server, deps, logger.WithModule("api"))
		s.wg.Go(func() {
			if err := s.router.Run(); err != nil {
				s.logger.Error("维护接口异常退出", zap.Error(err))
			}
		})
	}
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.router != nil {
		if err := s.router.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("维护接口关闭失败", zap.Error(err))
		}
	}

	// 取消主上下文，链路和事件流退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// closeComponents 按依赖顺序关闭组件
func (s *Server) closeComponents() {
	// 等待进行中的资金移动落库
	s.engine.Close()
	s.cabinet.Close()

	if s.frameLog != nil {
		s.frameLog.Close()
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
}

// reloadConfig 热更新AFT开关和日志级别
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg = newCfg
	s.cabinet.Options.Update(newCfg.AFT)
	logger.SetLevel(newCfg.Log.Level)

	s.logger.Info("配置重新加载完成",
		zap.Bool("aft_enabled", newCfg.AFT.Enabled),
		zap.String("log_level", newCfg.Log.Level))
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("EGM AFT 服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
