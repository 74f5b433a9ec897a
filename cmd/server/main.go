package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"smart-timetable/config"
	"smart-timetable/internal/api/handler"
	"smart-timetable/internal/api/router"
	"smart-timetable/internal/realtime"
	"smart-timetable/internal/repository"
	"smart-timetable/internal/schema"
	"smart-timetable/internal/service"
	"smart-timetable/internal/tasks"
	"smart-timetable/pkg/database"
	"smart-timetable/pkg/jwt"
	applogger "smart-timetable/pkg/logger"
	"smart-timetable/pkg/redis"
	appvalidator "smart-timetable/pkg/validator"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("realtime", cfg.Feature.RealtimeEnabled),
		zap.Bool("cleanup", cfg.Feature.CleanupEnabled),
	)

	// 2.1 注册自定义校验规则（doc_id / app_role / academic_year）
	if err := appvalidator.Init(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、登录限流与课表缓存将不可用", zap.Error(err))
		rdb = nil
	}

	// 后台组件共用的生命周期
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// 5. 评论实时推送
	var hub *realtime.Hub
	if cfg.Feature.RealtimeEnabled {
		hub = realtime.NewHub(cfg.Server.CORS.AllowOrigins, logger)
		go hub.Run(appCtx)
	}

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	validator := schema.New(cfg.Timetable)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, hub, validator, logger)

	var cachePing handler.PingFunc
	if rdb != nil {
		cachePing = rdb.Ping
	}
	health := handler.NewHealthHandler(sqlDB.PingContext, cachePing)
	h := handler.NewHandler(cfg, svc, hub, health, logger)

	// 7. 定时清理已处理的审批申请
	var scheduler *tasks.Scheduler
	if cfg.Feature.CleanupEnabled {
		scheduler = tasks.NewScheduler(logger)
		if err := scheduler.RegisterPurge(cfg.Request.CleanupCron, svc.Request, cfg.Request.Retention); err != nil {
			logger.Fatal("注册清理任务失败", zap.Error(err))
		}
		scheduler.Start()
	}

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待正在执行的清理任务结束
	if scheduler != nil {
		scheduler.Stop(ctx)
	}

	// 断开 WebSocket 订阅
	stopApp()

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Error("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
