package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "github.com/D4ffi/allay-app/api/v1"
	"github.com/D4ffi/allay-app/internal/config"
	"github.com/D4ffi/allay-app/internal/middleware"
	"github.com/D4ffi/allay-app/internal/properties"
	"github.com/D4ffi/allay-app/internal/service"
	"github.com/D4ffi/allay-app/pkg/mcremote"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, manager *mcremote.Manager, monitor *mcremote.Monitor, history *service.HistoryService, props *properties.Store) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 创建路由引擎
	r := gin.New()

	// 使用中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// 配置跨域
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 默认路由
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "欢迎使用Allay控制台API",
		})
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 创建控制器实例
	authController := v1.NewAuthController(cfg)
	rconController := v1.NewRconController(manager, monitor, history, props, cfg)
	monitorController := v1.NewMonitorController(monitor, manager)
	historyController := v1.NewHistoryController(history)
	realtimeController := v1.NewRealtimeController()

	// 命令接口限流器
	cmdLimiter := middleware.NewRateLimiter(cfg.CommandRateLimit, cfg.CommandRateBurst)

	// API v1 路由组
	api := r.Group("/api/v1")
	{
		// 公开路由
		api.POST("/auth/login", authController.Login)

		// 需要认证的路由
		auth := api.Group("")
		auth.Use(middleware.JWTAuth(cfg))
		{
			// 认证相关
			auth.POST("/auth/refresh", authController.Refresh)

			// 服务器管理
			auth.GET("/servers", rconController.ListServers)
			auth.GET("/servers/connected", rconController.GetConnectedServers)
			auth.POST("/server", rconController.AddServer)
			auth.DELETE("/server/:name", rconController.RemoveServer)

			// RCON连接与命令
			auth.POST("/server/:name/connect", rconController.Connect)
			auth.POST("/server/:name/disconnect", rconController.Disconnect)
			auth.POST("/server/:name/command", cmdLimiter.Middleware(), rconController.ExecuteCommand)
			auth.GET("/server/:name/test", rconController.TestConnection)
			auth.GET("/server/:name/info", rconController.GetServerInfo)
			auth.GET("/server/:name/logs", rconController.GetServerLogs)

			// 状态监控
			auth.GET("/statuses", monitorController.GetAllStatuses)
			auth.GET("/monitor/:name/status", monitorController.GetStatus)
			auth.PUT("/monitor/:name/status", monitorController.UpdateStatus)
			auth.POST("/monitor/:name/start", monitorController.StartMonitoring)
			auth.POST("/monitor/:name/stop", monitorController.StopMonitoring)
			auth.POST("/monitoring/start", monitorController.StartBackground)
			auth.POST("/monitoring/stop", monitorController.StopBackground)

			// 历史记录
			auth.GET("/history/commands", historyController.ListCommands)
			auth.GET("/history/statuses", historyController.ListStatusChanges)

			// 实时通信
			auth.GET("/ws", realtimeController.HandleWebSocket)
			auth.GET("/sse", realtimeController.HandleSSE)
			auth.POST("/ws/broadcast", realtimeController.BroadcastMessage)
			auth.POST("/sse/publish", realtimeController.PublishSSEEvent)
			auth.GET("/realtime/stats", realtimeController.GetRealtimeStats)
		}
	}

	return r
}
