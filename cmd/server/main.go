package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"licensehub/backend/internal/auth"
	jwtpkg "licensehub/backend/internal/auth/jwt"
	"licensehub/backend/internal/config"
	"licensehub/backend/internal/health"
	"licensehub/backend/internal/logger"
	"licensehub/backend/internal/monitoring"
	"licensehub/backend/internal/service"
	"licensehub/backend/internal/storage"
	"licensehub/backend/internal/storage/hybrid"
	"licensehub/backend/internal/storage/memory"
	"licensehub/backend/internal/storage/postgres"
	sqlstore "licensehub/backend/internal/storage/sql"
	httptransport "licensehub/backend/internal/transport/http"
)

// main 启动授权服务的 HTTP API。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting license server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	// 初始化服务层
	authService := auth.NewService(store)
	apiKeyService := service.NewAPIKeyService(store, log)
	licenseService := service.NewLicenseService(store, cfg.License, log)
	shopLicenseService := service.NewShopLicenseService(store, cfg.License, log)
	catalogService := service.NewCatalogService(store)
	adminService := service.NewAdminService(store, authService, apiKeyService, log)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	log.Info("license policy",
		zap.Int("max_batch", cfg.License.MaxBatch),
		zap.Bool("quota_enabled", cfg.License.QuotaEnabled),
		zap.String("extend_policy", cfg.License.ExtendPolicy),
		zap.Bool("open_verify", cfg.License.OpenVerify),
	)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:             cfg,
		AuthService:        authService,
		LicenseService:     licenseService,
		ShopLicenseService: shopLicenseService,
		APIKeyService:      apiKeyService,
		CatalogService:     catalogService,
		AdminService:       adminService,
		JWTManager:         jwtManager,
		Store:              store,
		Metrics:            metrics,
		HealthChecker:      healthChecker,
		Logger:             log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时刷新授权总数指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if total, err := licenseService.Total(); err == nil {
					metrics.UpdateLicensesTotal(monitoring.KindPhone, total)
				}
				if total, err := shopLicenseService.Total(); err == nil {
					metrics.UpdateLicensesTotal(monitoring.KindShop, total)
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

// initializeStorage 根据配置选择存储后端
//
// 未配置数据库时使用内存存储（开发环境）；配置了数据库且
// Redis 地址非空时使用混合存储，否则使用纯数据库存储。
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	if cfg.Redis.Address != "" {
		store, err := hybrid.NewStore(&cfg.Database, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("using hybrid storage",
			zap.String("database", cfg.Database.Type),
			zap.String("redis", cfg.Redis.Address),
		)
		return store, nil
	}

	switch cfg.Database.Type {
	case "postgres", "postgresql":
		store, err := postgres.NewStore(&cfg.Database)
		if err != nil {
			return nil, err
		}
		log.Info("using postgres storage")
		return store, nil
	case "mysql":
		store, err := sqlstore.NewStore("mysql", cfg.Database.DSN,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		if err != nil {
			return nil, err
		}
		log.Info("using mysql storage")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}
