package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/D4ffi/allay-app/internal/config"
	"github.com/D4ffi/allay-app/internal/db"
	"github.com/D4ffi/allay-app/internal/model"
	"github.com/D4ffi/allay-app/internal/properties"
	"github.com/D4ffi/allay-app/internal/router"
	"github.com/D4ffi/allay-app/internal/service"
	"github.com/D4ffi/allay-app/internal/sse"
	"github.com/D4ffi/allay-app/internal/websocket"
	"github.com/D4ffi/allay-app/pkg/mcremote"
)

// @title           Allay Console API
// @version         1.0
// @description     Minecraft服务器RCON远程控制与存活监控API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API 支持
// @contact.url    https://github.com/D4ffi/allay-app/issues
// @contact.email  support@d4ffi.dev

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer 认证, 例如: "Bearer {token}"

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化数据库
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer db.CloseDB()

	// 数据库模型自动迁移
	if err := db.AutoMigrate(&model.CommandRecord{}, &model.StatusRecord{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 启动WebSocket管理器
	websocket.GlobalManager.Start()

	// 启动SSE代理
	sse.GlobalBroker.Start()

	// 构建RCON连接管理器
	props := properties.NewStore(cfg.StorageDir)
	defaults := mcremote.RconConfig{
		Host:     cfg.DefaultRconHost,
		Port:     cfg.DefaultRconPort,
		Password: cfg.DefaultRconPassword,
	}
	manager := mcremote.NewManager(props, defaults, cfg.LogPath)

	// 状态变更事件同时推给SSE、WebSocket和历史记录
	history := service.NewHistoryService()
	sink := mcremote.MultiSink{
		sse.GlobalBroker,
		websocket.GlobalManager,
		service.NewStatusEventRecorder(history),
	}
	monitor := mcremote.NewMonitor(manager, sink, defaults)

	// WebSocket控制台通过管理器执行命令并写入历史
	websocket.Setup(manager, history)

	// 启动后台存活巡检
	if cfg.MonitorAutoStart {
		monitor.StartBackgroundMonitoring()
	}

	// 初始化路由
	r := router.SetupRouter(cfg, manager, monitor, history, props)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: r,
	}

	// 启动服务器（非阻塞）
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("监听失败: %v", err)
		}
	}()

	log.Printf("服务器开始运行，监听: %s:%d", cfg.ServerHost, cfg.ServerPort)

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 先停止巡检和心跳，再断开全部RCON连接
	monitor.StopBackgroundMonitoring()
	manager.Close()

	// 设置关闭超时
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务器被强制关闭:", err)
	}

	log.Println("服务器优雅退出")
}
