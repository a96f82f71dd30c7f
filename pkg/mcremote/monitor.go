package mcremote

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	monitorPollInterval = 15 * time.Second // 后台巡检周期
	monitorRetryWindow  = 15 * time.Second // 离线服务器两次重连尝试的最小间隔
)

// Monitor 服务器存活监控。
// 周期性巡检受监控的服务器：离线的尝试重连，在线的校验连接是否还在，
// 状态只有在线和离线两种，变更时通过事件出口对外广播。
type Monitor struct {
	manager  ConnectionManager
	sink     EventSink // 状态变更事件的出口，可以为nil
	defaults RconConfig

	mutex   sync.Mutex
	servers map[string]*serverState
	cancel  context.CancelFunc

	pollInterval time.Duration
	retryWindow  time.Duration
	logThrottle  int // 连接失败日志的节流计数，每10次输出一条
}

// NewMonitor 创建存活监控。manager提供连接操作，sink接收状态变更事件。
// defaults用于给未配置的服务器补一份RCON配置。
func NewMonitor(manager ConnectionManager, sink EventSink, defaults RconConfig) *Monitor {
	if defaults.Host == "" {
		defaults.Host = DefaultRconHost
	}
	if defaults.Port == 0 {
		defaults.Port = DefaultRconPort
	}
	if defaults.Password == "" {
		defaults.Password = DefaultRconPassword
	}
	return &Monitor{
		manager:      manager,
		sink:         sink,
		defaults:     defaults,
		servers:      make(map[string]*serverState),
		pollInterval: monitorPollInterval,
		retryWindow:  monitorRetryWindow,
	}
}

// StartMonitoring 把某个服务器加入监控，初始状态为离线
func (m *Monitor) StartMonitoring(name string) {
	m.mutex.Lock()
	m.servers[name] = &serverState{status: StatusOffline}
	m.mutex.Unlock()
	log.Printf("服务器 %s 已加入存活监控", name)
}

// StopMonitoring 把某个服务器移出监控，有连接时一并断开
func (m *Monitor) StopMonitoring(name string) {
	m.mutex.Lock()
	delete(m.servers, name)
	m.mutex.Unlock()

	if m.manager.IsConnected(name) {
		if err := m.manager.Disconnect(name); err != nil {
			log.Printf("移出监控时断开服务器 %s 失败: %v", name, err)
		}
	}
	log.Printf("服务器 %s 已移出存活监控", name)
}

// StartBackgroundMonitoring 启动后台巡检循环，重复调用只会生效一次
func (m *Monitor) StartBackgroundMonitoring() {
	m.mutex.Lock()
	if m.cancel != nil {
		m.mutex.Unlock()
		log.Println("后台存活监控已在运行")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mutex.Unlock()

	go m.run(ctx)
	log.Printf("后台存活监控已启动，巡检周期 %s", m.pollInterval)
}

// StopBackgroundMonitoring 停止后台巡检循环
func (m *Monitor) StopBackgroundMonitoring() {
	m.mutex.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	log.Println("后台存活监控已停止")
}

// IsBackgroundRunning 报告后台巡检循环是否在运行
func (m *Monitor) IsBackgroundRunning() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.cancel != nil
}

// GetServerStatus 返回某个服务器当前的存活状态，未监控的视为离线
func (m *Monitor) GetServerStatus(name string) ServerStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if state, ok := m.servers[name]; ok {
		return state.status
	}
	return StatusOffline
}

// GetAllStatuses 返回全部受监控服务器的状态快照
func (m *Monitor) GetAllStatuses() map[string]ServerStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	statuses := make(map[string]ServerStatus, len(m.servers))
	for name, state := range m.servers {
		statuses[name] = state.status
	}
	return statuses
}

// UpdateServerStatus 更新某个服务器的状态。
// 未监控的服务器会被就地纳入；状态没有变化时不产生事件。
func (m *Monitor) UpdateServerStatus(name string, status ServerStatus) {
	m.mutex.Lock()
	state, ok := m.servers[name]
	if !ok {
		state = &serverState{status: StatusOffline}
		m.servers[name] = state
	}
	old := state.status
	if old == status {
		m.mutex.Unlock()
		return
	}
	state.status = status
	m.mutex.Unlock()

	log.Printf("服务器 %s 状态变更: %s -> %s", name, old, status)
	if m.sink != nil {
		m.sink.Emit(StatusChangedEvent, StatusEvent{
			ServerName: name,
			OldStatus:  old,
			NewStatus:  status,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.monitorCycle()
		}
	}
}

// monitorCycle 巡检一轮全部受监控的服务器
func (m *Monitor) monitorCycle() {
	m.mutex.Lock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	m.mutex.Unlock()

	for _, name := range names {
		m.checkServer(name)
	}
}

// checkServer 巡检单个服务器。
// 离线的在重试窗口之外尝试一次重连，已有连接尝试在途时跳过；
// 在线的校验会话是否还在，掉线则降级为离线。
func (m *Monitor) checkServer(name string) {
	m.mutex.Lock()
	state, ok := m.servers[name]
	if !ok {
		m.mutex.Unlock()
		return
	}

	switch state.status {
	case StatusOffline:
		if state.isConnecting {
			m.mutex.Unlock()
			return
		}
		if !state.lastAttempt.IsZero() && time.Since(state.lastAttempt) < m.retryWindow {
			m.mutex.Unlock()
			return
		}
		state.isConnecting = true
		state.lastAttempt = time.Now()
		m.mutex.Unlock()

		ok := m.attemptConnection(name)

		m.mutex.Lock()
		if state, exists := m.servers[name]; exists {
			state.isConnecting = false
		}
		m.mutex.Unlock()

		if ok {
			m.UpdateServerStatus(name, StatusOnline)
		}

	case StatusOnline:
		m.mutex.Unlock()
		if !m.manager.IsConnected(name) {
			m.UpdateServerStatus(name, StatusOffline)
		}

	default:
		m.mutex.Unlock()
	}
}

// attemptConnection 尝试连接某个服务器，必要时先补一份默认RCON配置。
// 失败日志按次数节流，避免长期离线的服务器刷屏。
func (m *Monitor) attemptConnection(name string) bool {
	if !m.manager.HasServer(name) {
		m.manager.AddServer(name, m.defaults)
	}

	if err := m.manager.Connect(name); err != nil {
		m.mutex.Lock()
		m.logThrottle++
		throttle := m.logThrottle
		m.mutex.Unlock()
		if throttle%10 == 1 {
			log.Printf("存活监控连接服务器 %s 失败: %v", name, err)
		}
		return false
	}
	return true
}
