package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/handler"
	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/internal/repository"
	"github.com/mthirumalai2905/clubly-community-hub/internal/service"
	dbPkg "github.com/mthirumalai2905/clubly-community-hub/pkg/db"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"
	redisPkg "github.com/mthirumalai2905/clubly-community-hub/pkg/redis"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/response"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== Clubly 社交服务启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.String("realtime_driver", cfg.Realtime.Driver),
		zap.Bool("require_friendship", cfg.Messaging.RequireFriendship),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	if _, err := dbPkg.InitDB(cfg.Database); err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(model.AllModels()...); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 4. 变更推送：单实例用进程内总线，多实例通过 Redis 转发
	var (
		feed   realtime.Feed
		locker service.PairLocker
	)
	switch cfg.Realtime.Driver {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redisPkg.InitRedis(ctx, cfg.Redis)
		if err != nil {
			cancel()
			log.Fatal("Redis连接失败", zap.Error(err))
		}
		redisFeed, err := redisPkg.NewFeed(ctx, client, cfg.Realtime.ChannelPrefix)
		cancel()
		if err != nil {
			log.Fatal("订阅变更频道失败", zap.Error(err))
		}
		defer func() {
			_ = redisFeed.Close()
			if err := redisPkg.Close(); err != nil {
				log.Error("关闭Redis连接失败", zap.Error(err))
			}
		}()
		feed = redisFeed
		locker = redisPkg.NewLocker(client, cfg.Realtime.ChannelPrefix+"lock:", cfg.Realtime.LockTTL)
		log.Info("变更推送使用Redis", zap.String("prefix", cfg.Realtime.ChannelPrefix))
	default:
		feed = realtime.NewBus()
		log.Info("变更推送使用进程内总线")
	}

	// 5. 初始化业务服务
	db := dbPkg.GetDB()
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	relationshipRepo := repository.NewRelationshipRepository(db)
	notificationSvc := service.NewNotificationService(repository.NewNotificationRepository(db), relationshipRepo, feed)
	relationshipSvc := service.NewRelationshipService(relationshipRepo, notificationSvc, feed, locker)
	messageSvc := service.NewMessageService(repository.NewMessageRepository(db), relationshipRepo, notificationSvc, feed, cfg.Messaging)
	wsHandler := websocket.NewHandler(jwtSvc, feed, websocket.NewManager(), messageSvc, messageSvc, cfg.WebSocket)

	// 6. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 7. 创建Gin路由
	router := gin.New()
	router.Use(logger.RequestLogger())         // 请求日志（含认证后的用户ID）
	router.Use(logger.ErrorLoggerMiddleware()) // panic恢复

	setupBasicRoutes(router, cfg)
	handler.RegisterRoutes(router, jwtSvc, handler.Handlers{
		Relationships: handler.NewRelationshipHandler(relationshipSvc),
		Messages:      handler.NewMessageHandler(messageSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
	})

	// WebSocket路由
	router.GET("/ws", wsHandler.Serve)

	// 8. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

// setupBasicRoutes 健康检查
func setupBasicRoutes(router *gin.Engine, cfg *config.Config) {
	// 完整url为：http://localhost:8080/health
	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{"database": "ok"}
		var failed error
		if err := dbPkg.HealthCheck(); err != nil {
			checks["database"] = "down"
			failed = err
		}
		if cfg.Realtime.Driver == "redis" {
			checks["redis"] = "ok"
			if err := redisPkg.HealthCheck(c.Request.Context()); err != nil {
				checks["redis"] = "down"
				failed = errors.Join(failed, err)
			}
		}

		if failed != nil {
			logger.Warn("健康检查失败", zap.Any("checks", checks), zap.Error(failed))
			response.ErrorWithDetails(c, http.StatusServiceUnavailable, "服务不可用", failed)
			return
		}
		response.Success(c, gin.H{
			"status": "ok",
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}
