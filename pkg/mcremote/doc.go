/*
Package mcremote 提供了对外部运行的Minecraft服务器的远程管理能力。

主要特性:

  - 连接管理：按服务器名维护RCON配置与会话，支持懒连接和自动重连
  - 命令执行：失败分类与单次重连重试，按服务器记录失败统计
  - 心跳保活：每个已连接服务器的周期健康检查，连续失败后升级为完整重连
  - 存活监控：后台轮询离线服务器并在状态变化时发布事件
  - 活动日志：每个服务器独立的RCON活动日志文件，超限自动轮转
  - 状态查询：通过列表Ping获取版本、在线人数等服务器信息

此包依赖github.com/D4ffi/allay-app/pkg/rcon实现RCON协议本身，
依赖github.com/xrjr/mcutils实现服务器状态Ping。

基本用法:

	store := properties.NewStore("storage")
	manager := mcremote.NewManager(store, mcremote.RconConfig{}, "storage/logs")
	defer manager.Close()

	monitor := mcremote.NewMonitor(manager, sink, mcremote.RconConfig{})
	monitor.StartMonitoring("survival")
	monitor.StartBackgroundMonitoring()

	// 执行命令（必要时自动生成配置并建立连接）
	response, err := manager.ExecuteCommand("survival", "list")
*/
package mcremote
