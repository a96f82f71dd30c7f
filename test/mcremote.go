package test

import (
	"fmt"

	"github.com/D4ffi/allay-app/internal/properties"
	"github.com/D4ffi/allay-app/pkg/mcremote"
	"github.com/D4ffi/allay-app/pkg/rcon"
)

// printSink 把状态事件打印到标准输出
type printSink struct{}

func (printSink) Emit(event string, payload interface{}) {
	fmt.Printf("事件 %s: %+v\n", event, payload)
}

// Example_directClient 展示直接使用RCON客户端
func Example_directClient() {
	client := rcon.NewClient("127.0.0.1", 25575, "minecraft-password")

	// 建立连接并完成认证
	if err := client.Connect(); err != nil {
		fmt.Printf("连接失败: %v\n", err)
		return
	}
	defer client.Disconnect()

	// 执行列出玩家的命令
	response, err := client.Command("list")
	if err != nil {
		fmt.Printf("执行RCON命令失败: %v\n", err)
	} else {
		fmt.Printf("命令响应: %s\n", response)
	}

	// 执行给玩家物品的命令
	playerName := "Steve"
	command := fmt.Sprintf("give %s diamond 64", playerName)
	response, err = client.Command(command)
	if err != nil {
		fmt.Printf("给予物品失败: %v\n", err)
	} else {
		fmt.Printf("给予物品成功: %s\n", response)
	}
}

// Example_managerUsage 展示连接管理器的常规用法
func Example_managerUsage() {
	// 配置自动生成时从storage/<server>/server.properties读取rcon.*
	props := properties.NewStore("storage")
	defaults := mcremote.RconConfig{
		Host:     "127.0.0.1",
		Port:     25575,
		Password: "minecraft",
	}

	manager := mcremote.NewManager(props, defaults, "storage/logs")
	defer manager.Close()

	// 注册一个服务器
	manager.AddServer("survival", mcremote.RconConfig{
		Host:     "127.0.0.1",
		Port:     25575,
		Password: "minecraft-password",
	})

	// 未注册的服务器也可以直接执行命令，管理器会自动生成配置、
	// 建立连接，失败且可重试时自动重连重试一次
	response, err := manager.ExecuteCommand("survival", "list")
	if err != nil {
		fmt.Printf("执行命令失败: %v\n", err)
	} else {
		fmt.Printf("命令响应: %s\n", response)
	}

	// 测试连通性，认证失败或无法连接返回false而不是错误
	ok, err := manager.TestConnection("survival")
	if err != nil {
		fmt.Printf("测试连接失败: %v\n", err)
	} else {
		fmt.Printf("服务器可达: %v\n", ok)
	}

	fmt.Printf("当前在线连接: %v\n", manager.GetConnectedServers())
}

// Example_monitoring 展示存活监控和状态事件
func Example_monitoring() {
	defaults := mcremote.RconConfig{
		Host:     "127.0.0.1",
		Port:     25575,
		Password: "minecraft",
	}
	manager := mcremote.NewManager(nil, defaults, "storage/logs")
	defer manager.Close()

	// 状态变更通过事件接收器对外广播
	monitor := mcremote.NewMonitor(manager, printSink{}, defaults)

	// 把服务器加入监控，初始状态为离线，
	// 后台巡检会按周期尝试连接并在成功后置为在线
	monitor.StartMonitoring("survival")
	monitor.StartBackgroundMonitoring()
	defer monitor.StopBackgroundMonitoring()

	// 手工强制状态变更，立刻触发事件
	monitor.UpdateServerStatus("survival", mcremote.StatusOnline)

	for name, status := range monitor.GetAllStatuses() {
		fmt.Printf("服务器 %s: %s\n", name, status)
	}
}

// Example_serverPing 展示通过游戏端口获取服务器信息
func Example_serverPing() {
	info, err := mcremote.PingServer("127.0.0.1", 25565)
	if err != nil {
		fmt.Printf("获取服务器信息失败: %v\n", err)
		return
	}

	if info.Online {
		fmt.Printf("服务器在线! 版本: %s, 玩家: %d/%d, 延迟: %dms\n",
			info.Version, info.Players, info.MaxPlayers, info.Latency)
	} else {
		fmt.Printf("服务器离线: %s\n", info.LastError)
	}
}
