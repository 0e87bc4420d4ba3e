package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dushixiang/kestrel/internal/config"
	"github.com/dushixiang/kestrel/internal/handler"
	"github.com/dushixiang/kestrel/internal/migrate"
	"github.com/dushixiang/kestrel/internal/service"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

// Run 启动服务端：打开数据库、迁移、装配服务与路由，阻塞直到收到退出信号
func Run(cfg *config.Config) error {
	logger := newLogger(cfg.Log)
	defer logger.Sync()

	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Error("打开数据库失败", zap.Error(err))
		return err
	}

	if err := migrate.Migrate(logger, db); err != nil {
		return err
	}

	evaluator := service.NewRuleEvaluator(logger)
	ingestService := service.NewIngestService(logger, db, evaluator)
	statsService := service.NewStatsService(logger, db)
	exportService := service.NewExportService(logger, db, statsService)
	computerService := service.NewComputerService(logger, db)

	e := newEcho(logger, ingestService, statsService, exportService, computerService)

	// 定时把仪表盘快照落盘，供外部渲染器消费
	var scheduler *cron.Cron
	if cfg.Export.Enabled {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Export.Cron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := exportService.WriteSnapshot(ctx, cfg.Export.Path, cfg.Export.Limit); err != nil {
				logger.Error("定时导出快照失败", zap.Error(err))
			}
		})
		if err != nil {
			logger.Error("注册快照导出任务失败", zap.String("cron", cfg.Export.Cron), zap.Error(err))
			return err
		}
		scheduler.Start()
		logger.Info("快照导出任务已启动",
			zap.String("cron", cfg.Export.Cron),
			zap.String("path", cfg.Export.Path))
	}

	go func() {
		logger.Info("服务启动", zap.String("addr", cfg.Server.Addr))
		if err := e.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			logger.Error("服务异常退出", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，开始关闭")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("关闭服务失败", zap.Error(err))
		return err
	}

	logger.Info("服务已退出")
	return nil
}

// newEcho 装配路由
func newEcho(logger *zap.Logger,
	ingestService *service.IngestService,
	statsService *service.StatsService,
	exportService *service.ExportService,
	computerService *service.ComputerService,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	ingestHandler := handler.NewIngestHandler(logger, ingestService)
	statsHandler := handler.NewStatsHandler(logger, statsService, exportService)
	computerHandler := handler.NewComputerHandler(logger, computerService)

	api := e.Group("/api")
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.POST("/measurements", ingestHandler.Ingest)
	api.GET("/measurements", statsHandler.ListMeasurements)
	api.GET("/warnings", statsHandler.ListWarnings)

	api.GET("/stats/summary", statsHandler.GetSummary)
	api.GET("/stats/cpu-7days", statsHandler.GetCPURollups)
	api.GET("/stats/ram-7days", statsHandler.GetRAMRollups)
	api.GET("/stats/warnings", statsHandler.GetWarningStats)
	api.GET("/stats/os", statsHandler.GetOSStats)
	api.GET("/export", statsHandler.GetSnapshot)

	api.GET("/computers", computerHandler.List)
	api.GET("/computers/:id", computerHandler.Get)
	api.DELETE("/computers/:id", computerHandler.Delete)

	return e
}

// openDatabase 打开数据库连接。
// TranslateError 把驱动层的唯一约束冲突翻译成 gorm.ErrDuplicatedKey，
// 告警去重的兜底路径依赖这个翻译。
func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{TranslateError: true})
}

// newLogger 创建服务端日志器，配置了日志文件时通过 lumberjack 滚动
func newLogger(cfg config.LogConfig) *zap.Logger {
	level := zapcore.InfoLevel
	_ = level.Set(cfg.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	syncer := zapcore.AddSync(os.Stdout)
	if cfg.File != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		syncer = zapcore.NewMultiWriteSyncer(syncer, rotated)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), syncer, level)
	return zap.New(core, zap.AddCaller())
}
