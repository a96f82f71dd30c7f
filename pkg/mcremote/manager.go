package mcremote

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/D4ffi/allay-app/pkg/rcon"
)

// Manager RCON连接管理器。
// 按服务器名维护配置、会话、失败统计和活动日志，四张表各自持锁，
// 阻塞的网络操作只在会话自身的锁下进行，不会占住任何一张表。
type Manager struct {
	configs   map[string]RconConfig
	configsMu sync.RWMutex

	sessions   map[string]session
	sessionsMu sync.Mutex

	trackers   map[string]*FailureTracker
	trackersMu sync.Mutex

	loggers   map[string]*ServerLogger
	loggersMu sync.Mutex

	props      PropertiesStore   // 自动生成配置时读取rcon.*配置项，可以为nil
	defaults   RconConfig        // 自动生成配置时的默认参数
	logDir     string            // 每服务器活动日志的根目录
	heartbeats *HeartbeatManager // 由管理器创建并持有
	newSession func(host string, port int, password string) session
}

// NewManager 创建RCON连接管理器，心跳管理器由它创建并持有。
// defaults中的空字段会回填为包默认值。
func NewManager(props PropertiesStore, defaults RconConfig, logDir string) *Manager {
	if defaults.Host == "" {
		defaults.Host = DefaultRconHost
	}
	if defaults.Port == 0 {
		defaults.Port = DefaultRconPort
	}
	if defaults.Password == "" {
		defaults.Password = DefaultRconPassword
	}

	m := &Manager{
		configs:  make(map[string]RconConfig),
		sessions: make(map[string]session),
		trackers: make(map[string]*FailureTracker),
		loggers:  make(map[string]*ServerLogger),
		props:    props,
		defaults: defaults,
		logDir:   logDir,
		newSession: func(host string, port int, password string) session {
			return rcon.NewClient(host, port, password)
		},
	}
	m.heartbeats = newHeartbeatManager(m)
	return m
}

// AddServer 保存或覆盖某个服务器的RCON配置
func (m *Manager) AddServer(name string, config RconConfig) {
	m.configsMu.Lock()
	m.configs[name] = config
	m.configsMu.Unlock()
	log.Printf("已保存服务器 %s 的RCON配置 (%s:%d)", name, config.Host, config.Port)
}

// HasServer 报告某个服务器是否已有RCON配置
func (m *Manager) HasServer(name string) bool {
	m.configsMu.RLock()
	defer m.configsMu.RUnlock()
	_, ok := m.configs[name]
	return ok
}

// GetConfig 返回某个服务器的RCON配置
func (m *Manager) GetConfig(name string) (RconConfig, bool) {
	m.configsMu.RLock()
	defer m.configsMu.RUnlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// Connect 为某个服务器建立RCON连接并认证。
// 已有存活会话时直接返回nil；连接失败时返回底层错误，本方法自身不重试。
func (m *Manager) Connect(name string) error {
	if existing, ok := m.getSession(name); ok {
		if existing.IsConnected() {
			return nil
		}
		// 清理失效的旧会话
		m.sessionsMu.Lock()
		if m.sessions[name] == existing {
			delete(m.sessions, name)
		}
		m.sessionsMu.Unlock()
		existing.Disconnect()
	}

	cfg, ok := m.GetConfig(name)
	if !ok {
		return fmt.Errorf("服务器 %s 没有RCON配置", name)
	}

	logger := m.getLogger(name)
	logger.Connection(fmt.Sprintf("正在连接 %s:%d", cfg.Host, cfg.Port))

	sess := m.newSession(cfg.Host, cfg.Port, cfg.Password)
	if err := sess.Connect(); err != nil {
		logger.Error(fmt.Sprintf("连接失败: %v", err))
		return err
	}
	logger.Authentication(len(cfg.Password))

	m.sessionsMu.Lock()
	if _, exists := m.sessions[name]; exists {
		// 并发连接中别人先完成，保留已存入的会话
		m.sessionsMu.Unlock()
		sess.Disconnect()
		return nil
	}
	m.sessions[name] = sess
	m.sessionsMu.Unlock()

	m.heartbeats.Start(name)
	logger.Connection("RCON连接已建立")
	log.Printf("服务器 %s 的RCON连接已建立", name)
	return nil
}

// ExecuteCommand 在某个服务器上执行命令。
// 没有配置时自动生成一份（见ensureServerConfigured），没有连接时先建立连接。
// 命令失败会记入失败统计；可重试的失败会触发一次重连加重试，
// 重试也失败时向调用方返回第一次的错误。
func (m *Manager) ExecuteCommand(name, cmd string) (string, error) {
	m.ensureServerConfigured(name)

	if !m.IsConnected(name) {
		if err := m.Connect(name); err != nil {
			m.recordFailure(name)
			return "", err
		}
	}

	sess, ok := m.getSession(name)
	if !ok {
		return "", &rcon.Error{Kind: rcon.ErrNotConnected, Message: fmt.Sprintf("服务器 %s 没有活跃的RCON连接", name)}
	}

	logger := m.getLogger(name)
	response, err := sess.Command(cmd)
	if err == nil {
		m.resetFailures(name)
		logger.Command(cmd, response)
		return response, nil
	}

	m.recordFailure(name)
	logger.CommandError(cmd, err)

	if !rcon.IsRetryable(err) {
		return "", err
	}

	// 按失败次数退避后重连，整个过程只重试一次
	time.Sleep(m.adaptiveDelay(name))
	logger.Reconnection(fmt.Sprintf("命令失败后尝试重连: %v", err))
	if rerr := m.Connect(name); rerr != nil {
		log.Printf("服务器 %s 命令失败后的重连未成功: %v", name, rerr)
		return "", err
	}

	retrySess, ok := m.getSession(name)
	if !ok {
		return "", err
	}
	retryResp, retryErr := retrySess.Command(cmd)
	if retryErr != nil {
		// 重试失败只记录，向调用方仍然返回第一次的错误
		m.recordFailure(name)
		logger.CommandError(cmd, retryErr)
		log.Printf("服务器 %s 重连后重试命令仍然失败: %v", name, retryErr)
		return "", err
	}

	m.resetFailures(name)
	logger.Command(cmd, retryResp)
	return retryResp, nil
}

// ExecuteHeartbeatCommand 心跳专用的受限命令执行：
// 不自动生成配置，也不做重连重试，没有活跃会话时立即返回未连接错误，
// 由心跳循环自己决定是否升级为完整重连。
func (m *Manager) ExecuteHeartbeatCommand(name, cmd string) (string, error) {
	sess, ok := m.getSession(name)
	if !ok {
		return "", &rcon.Error{Kind: rcon.ErrNotConnected, Message: fmt.Sprintf("服务器 %s 没有活跃的RCON连接", name)}
	}

	response, err := sess.Command(cmd)
	if err != nil {
		m.recordFailure(name)
		m.getLogger(name).HeartbeatError(err)
		return "", err
	}

	m.resetFailures(name)
	m.getLogger(name).Heartbeat(fmt.Sprintf("心跳正常: %s", cmd))
	return response, nil
}

// TestConnection 用list命令探测连通性。
// 认证失败和连接失败视为探测结果false而不是错误。
func (m *Manager) TestConnection(name string) (bool, error) {
	if _, err := m.ExecuteCommand(name, "list"); err != nil {
		switch rcon.KindOf(err) {
		case rcon.ErrAuthenticationFailed, rcon.ErrConnectionFailed:
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsConnected 报告某个服务器是否有存活的RCON会话
func (m *Manager) IsConnected(name string) bool {
	sess, ok := m.getSession(name)
	return ok && sess.IsConnected()
}

// GetConnectedServers 返回当前有存活会话的服务器名，按字典序排列
func (m *Manager) GetConnectedServers() []string {
	m.sessionsMu.Lock()
	snapshot := make(map[string]session, len(m.sessions))
	for name, sess := range m.sessions {
		snapshot[name] = sess
	}
	m.sessionsMu.Unlock()

	connected := make([]string, 0, len(snapshot))
	for name, sess := range snapshot {
		if sess.IsConnected() {
			connected = append(connected, name)
		}
	}
	sort.Strings(connected)
	return connected
}

// ListServers 返回全部已配置服务器的条目，按名称排列
func (m *Manager) ListServers() []ServerEntry {
	m.configsMu.RLock()
	entries := make([]ServerEntry, 0, len(m.configs))
	for name, cfg := range m.configs {
		entries = append(entries, ServerEntry{Name: name, Host: cfg.Host, Port: cfg.Port})
	}
	m.configsMu.RUnlock()

	for i := range entries {
		entries[i].Connected = m.IsConnected(entries[i].Name)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Disconnect 停止心跳并断开某个服务器的RCON连接
func (m *Manager) Disconnect(name string) error {
	m.heartbeats.Stop(name)

	m.sessionsMu.Lock()
	sess, ok := m.sessions[name]
	delete(m.sessions, name)
	m.sessionsMu.Unlock()

	if !ok {
		return nil
	}
	sess.Disconnect()
	m.getLogger(name).Disconnection("RCON连接已断开")
	log.Printf("服务器 %s 的RCON连接已断开", name)
	return nil
}

// RemoveServer 删除某个服务器：断开连接、停止心跳、清除配置和统计
func (m *Manager) RemoveServer(name string) error {
	if err := m.Disconnect(name); err != nil {
		return err
	}

	m.configsMu.Lock()
	delete(m.configs, name)
	m.configsMu.Unlock()

	m.trackersMu.Lock()
	delete(m.trackers, name)
	m.trackersMu.Unlock()

	m.loggersMu.Lock()
	delete(m.loggers, name)
	m.loggersMu.Unlock()

	log.Printf("服务器 %s 已从RCON管理器中移除", name)
	return nil
}

// HandleServerOffline 服务器已确认下线时的清理：停止心跳并断开会话
func (m *Manager) HandleServerOffline(name string) {
	if err := m.Disconnect(name); err != nil {
		log.Printf("清理下线服务器 %s 时断开连接失败: %v", name, err)
	}
	log.Printf("服务器 %s 已下线，RCON资源已清理", name)
}

// DisconnectAll 停止全部心跳并断开全部连接，进程退出时调用
func (m *Manager) DisconnectAll() {
	m.heartbeats.StopAll()

	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]session)
	m.sessionsMu.Unlock()

	for name, sess := range sessions {
		sess.Disconnect()
		m.getLogger(name).Disconnection("进程关闭，断开RCON连接")
	}
	if len(sessions) > 0 {
		log.Printf("已断开全部 %d 个RCON连接", len(sessions))
	}
}

// Close 断开全部连接并停止心跳管理器
func (m *Manager) Close() {
	m.DisconnectAll()
	m.heartbeats.Close()
}

// ActiveHeartbeats 返回当前有心跳任务的服务器名
func (m *Manager) ActiveHeartbeats() []string {
	return m.heartbeats.Active()
}

// FailureStats 返回某个服务器的失败统计副本
func (m *Manager) FailureStats(name string) (FailureTracker, bool) {
	m.trackersMu.Lock()
	defer m.trackersMu.Unlock()
	t, ok := m.trackers[name]
	if !ok {
		return FailureTracker{}, false
	}
	return *t, true
}

// TailLog 返回某个服务器RCON活动日志的最后n行
func (m *Manager) TailLog(name string, n int) ([]string, error) {
	return m.getLogger(name).Tail(n)
}

// ensureServerConfigured 确保某个服务器有RCON配置。
// 没有配置时自动生成一份：地址和端口用默认值，密码优先从
// server.properties的rcon.password读取，端口同理从rcon.port读取。
func (m *Manager) ensureServerConfigured(name string) {
	if m.HasServer(name) {
		return
	}

	cfg := m.defaults
	if m.props != nil {
		if v, err := m.props.GetProperty(name, "rcon.password"); err == nil && v != "" {
			cfg.Password = v
		}
		if v, err := m.props.GetProperty(name, "rcon.port"); err == nil && v != "" {
			if port, perr := strconv.Atoi(v); perr == nil && port > 0 {
				cfg.Port = port
			}
		}
	}

	m.AddServer(name, cfg)
	log.Printf("服务器 %s 没有RCON配置，已自动生成", name)
}

func (m *Manager) getSession(name string) (session, bool) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	sess, ok := m.sessions[name]
	return sess, ok
}

func (m *Manager) getLogger(name string) *ServerLogger {
	m.loggersMu.Lock()
	defer m.loggersMu.Unlock()
	l, ok := m.loggers[name]
	if !ok {
		l = NewServerLogger(m.logDir, name)
		m.loggers[name] = l
	}
	return l
}

// recordFailure 失败计数加一
func (m *Manager) recordFailure(name string) {
	m.trackersMu.Lock()
	defer m.trackersMu.Unlock()
	t, ok := m.trackers[name]
	if !ok {
		t = &FailureTracker{}
		m.trackers[name] = t
	}
	t.ConsecutiveFailures++
	t.TotalFailures++
	t.LastFailureTime = time.Now()
}

// resetFailures 任何一次成功都会清零连续失败计数
func (m *Manager) resetFailures(name string) {
	m.trackersMu.Lock()
	defer m.trackersMu.Unlock()
	if t, ok := m.trackers[name]; ok {
		t.ConsecutiveFailures = 0
	}
}

// adaptiveDelay 按连续失败次数决定重连前的等待时间
func (m *Manager) adaptiveDelay(name string) time.Duration {
	m.trackersMu.Lock()
	defer m.trackersMu.Unlock()
	t, ok := m.trackers[name]
	if !ok {
		return 200 * time.Millisecond
	}
	switch {
	case t.ConsecutiveFailures <= 1:
		return 200 * time.Millisecond
	case t.ConsecutiveFailures <= 4:
		return time.Second
	default:
		return 2 * time.Second
	}
}
