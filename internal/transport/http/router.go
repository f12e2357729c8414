package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"licensehub/backend/internal/auth"
	jwtpkg "licensehub/backend/internal/auth/jwt"
	"licensehub/backend/internal/config"
	"licensehub/backend/internal/health"
	"licensehub/backend/internal/middleware"
	"licensehub/backend/internal/monitoring"
	"licensehub/backend/internal/service"
	"licensehub/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config             *config.Config
	AuthService        *auth.Service
	LicenseService     *service.LicenseService
	ShopLicenseService *service.ShopLicenseService
	APIKeyService      *service.APIKeyService
	CatalogService     *service.CatalogService
	AdminService       *service.AdminService
	JWTManager         *jwtpkg.Manager
	Store              storage.Store
	Metrics            *monitoring.Metrics
	HealthChecker      *health.HealthChecker
	Logger             *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitoringMW := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitoringMW.PanicRecovery())
	router.Use(monitoringMW.RequestLogger())
	router.Use(monitoringMW.HTTPMetrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	licenseHandler := NewLicenseHandler(deps.LicenseService, deps.Metrics, deps.Logger)
	shopHandler := NewShopLicenseHandler(deps.ShopLicenseService, deps.Metrics, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.APIKeyService, deps.JWTManager, deps.Store, deps.Config.JWT.AccessExpiry, deps.Logger)
	apiKeyHandler := NewAPIKeyHandler(deps.APIKeyService, deps.Logger)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.Logger)
	adminHandler := NewAdminHandler(deps.AdminService, deps.Logger)

	// 创建中间件
	apiKeyAuth := middleware.NewAPIKeyAuth(deps.APIKeyService, deps.Metrics, deps.Logger)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Store, deps.Metrics, deps.Logger)
	adminAuth := middleware.NewAdminAuth(deps.AuthService)
	apiRateLimit := middleware.NewRateLimiter(rate.Limit(50), 100, deps.Metrics)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, deps.HealthChecker.CheckHealth())
	})
	router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint()))
	router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	v1 := router.Group("/v1")

	// ========== 机器 API（API Key 认证） ==========
	api := v1.Group("/api")
	api.Use(apiRateLimit.Limit())
	{
		// 验证端点按配置决定是否开放匿名调用
		if deps.Config.License.OpenVerify {
			api.POST("/verify", apiKeyAuth.OptionalAPIKey(), licenseHandler.Verify)
			api.POST("/tiktok/verify", apiKeyAuth.OptionalAPIKey(), shopHandler.Verify)
		} else {
			api.POST("/verify", apiKeyAuth.RequireAPIKey(), licenseHandler.Verify)
			api.POST("/tiktok/verify", apiKeyAuth.RequireAPIKey(), shopHandler.Verify)
		}

		keyed := api.Group("", apiKeyAuth.RequireAPIKey())
		{
			keyed.POST("/create", licenseHandler.Create)
			keyed.GET("/list", licenseHandler.List)
			keyed.PUT("/update", licenseHandler.Update)
			keyed.DELETE("/delete", licenseHandler.Delete)
			keyed.DELETE("/delete-all", licenseHandler.DeleteAll)

			keyed.POST("/tiktok/create", shopHandler.Create)
			keyed.GET("/tiktok/list", shopHandler.List)
			keyed.PUT("/tiktok/update", shopHandler.Update)
			keyed.DELETE("/tiktok/delete", shopHandler.Delete)
			keyed.DELETE("/tiktok/delete-all", shopHandler.DeleteAll)

			keyed.GET("/packages", catalogHandler.ListPackages)
			keyed.GET("/payment-info", catalogHandler.GetPaymentInfo)

			keyed.POST("/users/create", adminAuth.RequireSuper(), adminHandler.CreateUser)
		}
	}

	// ========== 控制台认证 ==========
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		authRoutes.POST("/change-password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		authRoutes.POST("/logout", jwtAuth.RequireAuth(), authHandler.Logout)
	}

	// ========== 控制台（JWT 认证） ==========
	dashboard := v1.Group("/dashboard", jwtAuth.RequireAuth(), adminAuth.LoadUser())
	{
		dashboard.GET("/licenses", licenseHandler.DashboardList)
		dashboard.POST("/licenses", licenseHandler.DashboardCreate)
		dashboard.POST("/licenses/:id/extend", licenseHandler.DashboardExtend)
		dashboard.DELETE("/licenses/:id", licenseHandler.DashboardDelete)
		dashboard.POST("/licenses/bulk-delete", licenseHandler.DashboardBulkDelete)

		dashboard.GET("/shop-licenses", shopHandler.DashboardList)
		dashboard.POST("/shop-licenses", shopHandler.DashboardCreate)
		dashboard.POST("/shop-licenses/:id/extend", shopHandler.DashboardExtend)
		dashboard.DELETE("/shop-licenses/:id", shopHandler.DashboardDelete)
		dashboard.POST("/shop-licenses/bulk-delete", shopHandler.DashboardBulkDelete)

		dashboard.GET("/api-key", apiKeyHandler.Get)
		dashboard.POST("/api-key/rotate", apiKeyHandler.Rotate)

		dashboard.GET("/packages", catalogHandler.ListPackages)
		dashboard.GET("/payment-info", catalogHandler.GetPaymentInfo)
	}

	// ========== 管理端（仅超级管理员） ==========
	admin := v1.Group("/admin", jwtAuth.RequireAuth(), adminAuth.RequireSuper())
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.POST("/users", adminHandler.CreateUser)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.PUT("/users/:id/active", adminHandler.SetUserActive)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)

		admin.GET("/packages", catalogHandler.AdminListPackages)
		admin.POST("/packages", catalogHandler.CreatePackage)
		admin.PUT("/packages/:id", catalogHandler.UpdatePackage)
		admin.DELETE("/packages/:id", catalogHandler.DeletePackage)

		admin.GET("/payment-info", catalogHandler.ListPaymentInfos)
		admin.POST("/payment-info", catalogHandler.CreatePaymentInfo)
		admin.PUT("/payment-info/:id", catalogHandler.UpdatePaymentInfo)
		admin.DELETE("/payment-info/:id", catalogHandler.DeletePaymentInfo)
	}

	return router
}
