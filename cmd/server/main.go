package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/database"
	"rbacadmin/internal/router"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/config"
	"rbacadmin/pkg/jwt"
	"rbacadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting RBAC admin server...")

	// 初始化数据库
	db, err := database.Connect(cfg.Database)
	if err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := seedData(db, cfg.Bootstrap); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	// 审计流水线：持久化后推送给实时订阅者
	hub := audit.NewHub(64)
	store := audit.NewGormStore(db, hub)

	var (
		sink        audit.Sink = store
		redisClient *redis.Client
	)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	close(consumerDone)

	if cfg.Audit.Mode == config.AuditModeRedis {
		q, err := database.NewRedisQueue(cfg.Redis)
		if err != nil {
			appLogger.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer func() {
			if err := q.Close(); err != nil {
				appLogger.Error("Failed to close Redis:", err)
			}
		}()
		redisClient = q.Client()
		sink = audit.NewRedisSink(q)

		consumerDone = make(chan struct{})
		consumer := audit.NewConsumer(q, store)
		go func() {
			defer close(consumerDone)
			consumer.Run(consumerCtx)
		}()
		appLogger.Info("Audit events are queued through Redis")
	}

	dispatcher := audit.NewDispatcher(sink, cfg.Audit.Workers, cfg.Audit.BufferSize)

	// 服务
	jwtManager := jwt.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.TokenDuration, cfg.JWT.Issuer)
	authz := services.NewAuthorizationService(db)
	auditLogs := services.NewAuditLogService(db)

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Fatalf("Failed to get sql.DB: %v", err)
	}

	// 审计日志定时清理
	if cfg.Audit.PurgeCron != "" {
		retention := services.NewRetentionScheduler(auditLogs, cfg.Audit.PurgeCron, cfg.Audit.RetentionDays)
		if err := retention.Start(); err != nil {
			appLogger.Errorf("Failed to start audit retention scheduler: %v", err)
		} else {
			defer retention.Stop()
		}
	}

	r := router.SetupRouter(router.Dependencies{
		Sessions:    services.NewSessionService(db, jwtManager, authz, dispatcher),
		Authz:       authz,
		Users:       services.NewUserService(db),
		Groups:      services.NewGroupService(db),
		Menus:       services.NewMenuService(db),
		Permissions: services.NewPermissionService(db),
		AuditLogs:   auditLogs,
		MenuUsage:   services.NewMenuUsageService(db, store),
		Health:      services.NewHealthChecker(sqlDB, redisClient),
		Recorder:    dispatcher,
		Hub:         hub,
		CORS:        cfg.CORS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}

	// 先排空进程内缓冲，再停止Redis消费者
	if err := dispatcher.Close(ctx); err != nil {
		appLogger.Warnf("Audit dispatcher did not drain in time: %v", err)
	}
	stopConsumer()
	<-consumerDone

	appLogger.Info("Server exited")
}
