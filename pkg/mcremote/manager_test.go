package mcremote

import (
	"fmt"
	"sync"
	"testing"

	"github.com/D4ffi/allay-app/pkg/rcon"
)

// cmdResult 预设的一次Command调用结果
type cmdResult struct {
	resp string
	err  error
}

// mockSession 按脚本响应的会话替身。
// Command按队列顺序弹出结果，队列耗尽后默认成功；
// 出错时把自己标记为掉线，模拟真实客户端的connectionLost行为。
type mockSession struct {
	mu         sync.Mutex
	host       string
	port       int
	password   string
	connectErr error
	connected  bool
	queue      []cmdResult
	commands   []string
	disconnects int
}

func (s *mockSession) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *mockSession) Command(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	if !s.connected {
		return "", &rcon.Error{Kind: rcon.ErrNotConnected, Message: "未连接到服务器"}
	}
	if len(s.queue) == 0 {
		return "ok", nil
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	if r.err != nil {
		s.connected = false
		return "", r.err
	}
	return r.resp, nil
}

func (s *mockSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.disconnects++
}

func (s *mockSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// sessionFactory 记录每次创建，按预置顺序发放会话替身
type sessionFactory struct {
	mu      sync.Mutex
	queue   []*mockSession
	created []*mockSession
}

func (f *sessionFactory) new(host string, port int, password string) session {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s *mockSession
	if len(f.queue) > 0 {
		s = f.queue[0]
		f.queue = f.queue[1:]
	} else {
		s = &mockSession{}
	}
	s.host, s.port, s.password = host, port, password
	f.created = append(f.created, s)
	return s
}

func (f *sessionFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *sessionFactory) session(i int) *mockSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}

// mockProps 内存里的server.properties替身
type mockProps struct {
	values map[string]map[string]string
}

func (p *mockProps) GetProperty(server, key string) (string, error) {
	if vals, ok := p.values[server]; ok {
		if v, ok := vals[key]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("配置项 %s 不存在", key)
}

func (p *mockProps) UpdateProperty(server, key, value string) error {
	if p.values == nil {
		p.values = make(map[string]map[string]string)
	}
	if p.values[server] == nil {
		p.values[server] = make(map[string]string)
	}
	p.values[server][key] = value
	return nil
}

func newTestManager(t *testing.T, props PropertiesStore, f *sessionFactory) *Manager {
	t.Helper()
	m := NewManager(props, RconConfig{}, t.TempDir())
	m.newSession = f.new
	t.Cleanup(m.Close)
	return m
}

func TestManagerAutoProvisionFromProperties(t *testing.T) {
	props := &mockProps{values: map[string]map[string]string{
		"alpha": {"rcon.password": "from-props", "rcon.port": "25700"},
	}}
	f := &sessionFactory{}
	m := newTestManager(t, props, f)

	if _, err := m.ExecuteCommand("alpha", "list"); err != nil {
		t.Fatalf("ExecuteCommand() error: %v", err)
	}

	cfg, ok := m.GetConfig("alpha")
	if !ok {
		t.Fatal("自动生成的配置不存在")
	}
	if cfg.Password != "from-props" {
		t.Errorf("密码 = %q, want %q", cfg.Password, "from-props")
	}
	if cfg.Port != 25700 {
		t.Errorf("端口 = %d, want 25700", cfg.Port)
	}
	if cfg.Host != DefaultRconHost {
		t.Errorf("地址 = %q, want %q", cfg.Host, DefaultRconHost)
	}
	if got := f.session(0).password; got != "from-props" {
		t.Errorf("会话使用的密码 = %q, want %q", got, "from-props")
	}
}

func TestManagerAutoProvisionDefaults(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, &mockProps{}, f)

	if _, err := m.ExecuteCommand("beta", "list"); err != nil {
		t.Fatalf("ExecuteCommand() error: %v", err)
	}

	cfg, ok := m.GetConfig("beta")
	if !ok {
		t.Fatal("自动生成的配置不存在")
	}
	if cfg.Password != DefaultRconPassword {
		t.Errorf("密码 = %q, want 默认值 %q", cfg.Password, DefaultRconPassword)
	}
	if cfg.Port != DefaultRconPort {
		t.Errorf("端口 = %d, want 默认值 %d", cfg.Port, DefaultRconPort)
	}
}

func TestManagerConnectRequiresConfig(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)

	if err := m.Connect("ghost"); err == nil {
		t.Fatal("没有配置时 Connect() 应当失败")
	}
	if got := f.count(); got != 0 {
		t.Errorf("创建的会话数 = %d, want 0", got)
	}
}

func TestManagerConnectIdempotent(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)
	m.AddServer("alpha", RconConfig{Host: "127.0.0.1", Port: 25575, Password: "x"})

	if err := m.Connect("alpha"); err != nil {
		t.Fatalf("第一次 Connect() error: %v", err)
	}
	if err := m.Connect("alpha"); err != nil {
		t.Fatalf("第二次 Connect() error: %v", err)
	}
	if got := f.count(); got != 1 {
		t.Errorf("创建的会话数 = %d, want 1", got)
	}
}

func TestManagerConnectReplacesDeadSession(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)
	m.AddServer("alpha", RconConfig{Host: "127.0.0.1", Port: 25575, Password: "x"})

	if err := m.Connect("alpha"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	// 会话掉线后再连应当换一个新会话
	f.session(0).Disconnect()

	if err := m.Connect("alpha"); err != nil {
		t.Fatalf("重连 Connect() error: %v", err)
	}
	if got := f.count(); got != 2 {
		t.Errorf("创建的会话数 = %d, want 2", got)
	}
	if !m.IsConnected("alpha") {
		t.Error("重连后 IsConnected() = false, want true")
	}
}

func TestManagerExecuteCommandRetrySucceeds(t *testing.T) {
	retryable := &rcon.Error{Kind: rcon.ErrBufferError, Message: "读取响应失败"}
	f := &sessionFactory{queue: []*mockSession{
		{queue: []cmdResult{{err: retryable}}},
		{queue: []cmdResult{{resp: "retried"}}},
	}}
	m := newTestManager(t, nil, f)

	got, err := m.ExecuteCommand("alpha", "say hi")
	if err != nil {
		t.Fatalf("ExecuteCommand() error: %v", err)
	}
	if got != "retried" {
		t.Errorf("ExecuteCommand() = %q, want %q", got, "retried")
	}
	if got := f.count(); got != 2 {
		t.Errorf("创建的会话数 = %d, want 2", got)
	}

	stats, ok := m.FailureStats("alpha")
	if !ok {
		t.Fatal("失败统计不存在")
	}
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("重试成功后连续失败数 = %d, want 0", stats.ConsecutiveFailures)
	}
	if stats.TotalFailures != 1 {
		t.Errorf("累计失败数 = %d, want 1", stats.TotalFailures)
	}
}

func TestManagerExecuteCommandRetryFailsSurfacesOriginal(t *testing.T) {
	original := &rcon.Error{Kind: rcon.ErrBufferError, Message: "第一次失败"}
	second := &rcon.Error{Kind: rcon.ErrServerClosedConnection, Message: "第二次失败"}
	f := &sessionFactory{queue: []*mockSession{
		{queue: []cmdResult{{err: original}}},
		{queue: []cmdResult{{err: second}}},
	}}
	m := newTestManager(t, nil, f)

	_, err := m.ExecuteCommand("alpha", "say hi")
	if err == nil {
		t.Fatal("重试也失败时 ExecuteCommand() 应当失败")
	}
	if got, ok := err.(*rcon.Error); !ok || got != original {
		t.Errorf("返回的错误 = %v, want 第一次的错误 %v", err, original)
	}
}

func TestManagerExecuteCommandNonRetryable(t *testing.T) {
	plain := &rcon.Error{Kind: rcon.ErrCommandFailed, Message: "未知命令"}
	f := &sessionFactory{queue: []*mockSession{
		{queue: []cmdResult{{err: plain}}},
	}}
	m := newTestManager(t, nil, f)

	_, err := m.ExecuteCommand("alpha", "bogus")
	if got, ok := err.(*rcon.Error); !ok || got != plain {
		t.Fatalf("返回的错误 = %v, want %v", err, plain)
	}
	if got := f.count(); got != 1 {
		t.Errorf("创建的会话数 = %d, want 1 (不可重试的失败不应重连)", got)
	}
}

func TestManagerConnectErrorNotRetried(t *testing.T) {
	authErr := &rcon.Error{Kind: rcon.ErrAuthenticationFailed, Message: "RCON认证失败: 密码错误"}
	f := &sessionFactory{queue: []*mockSession{
		{connectErr: authErr},
	}}
	m := newTestManager(t, nil, f)

	_, err := m.ExecuteCommand("alpha", "list")
	if got := rcon.KindOf(err); got != rcon.ErrAuthenticationFailed {
		t.Fatalf("错误类别 = %v, want %v", got, rcon.ErrAuthenticationFailed)
	}
	if got := f.count(); got != 1 {
		t.Errorf("创建的会话数 = %d, want 1 (认证失败不应重试)", got)
	}
}

func TestManagerHeartbeatCommandRequiresSession(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)

	_, err := m.ExecuteHeartbeatCommand("ghost", "list")
	if got := rcon.KindOf(err); got != rcon.ErrNotConnected {
		t.Fatalf("错误类别 = %v, want %v", got, rcon.ErrNotConnected)
	}
	if m.HasServer("ghost") {
		t.Error("心跳命令不应自动生成配置")
	}
	if got := f.count(); got != 0 {
		t.Errorf("创建的会话数 = %d, want 0", got)
	}
}

func TestManagerHeartbeatCommandNoReconnect(t *testing.T) {
	retryable := &rcon.Error{Kind: rcon.ErrServerClosedConnection, Message: "服务器关闭了连接"}
	f := &sessionFactory{queue: []*mockSession{
		{queue: []cmdResult{{err: retryable}}},
	}}
	m := newTestManager(t, nil, f)
	m.AddServer("alpha", RconConfig{Host: "127.0.0.1", Port: 25575, Password: "x"})
	if err := m.Connect("alpha"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	_, err := m.ExecuteHeartbeatCommand("alpha", "list")
	if err == nil {
		t.Fatal("会话失败时心跳命令应当失败")
	}
	if got := f.count(); got != 1 {
		t.Errorf("创建的会话数 = %d, want 1 (心跳命令不应重连)", got)
	}

	stats, _ := m.FailureStats("alpha")
	if stats.ConsecutiveFailures != 1 {
		t.Errorf("连续失败数 = %d, want 1", stats.ConsecutiveFailures)
	}
}

func TestManagerTestConnection(t *testing.T) {
	authErr := &rcon.Error{Kind: rcon.ErrAuthenticationFailed, Message: "密码错误"}
	connErr := &rcon.Error{Kind: rcon.ErrConnectionFailed, Message: "连接被拒绝"}
	plainErr := &rcon.Error{Kind: rcon.ErrCommandFailed, Message: "内部错误"}

	cases := []struct {
		name    string
		sess    *mockSession
		wantOK  bool
		wantErr bool
	}{
		{"连接正常", &mockSession{}, true, false},
		{"认证失败", &mockSession{connectErr: authErr}, false, false},
		{"连接失败", &mockSession{connectErr: connErr}, false, false},
		{"其他错误", &mockSession{queue: []cmdResult{{err: plainErr}}}, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &sessionFactory{queue: []*mockSession{tc.sess}}
			m := newTestManager(t, nil, f)

			ok, err := m.TestConnection("alpha")
			if ok != tc.wantOK {
				t.Errorf("TestConnection() = %v, want %v", ok, tc.wantOK)
			}
			if (err != nil) != tc.wantErr {
				t.Errorf("TestConnection() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestManagerFailureTrackerLifecycle(t *testing.T) {
	plain := &rcon.Error{Kind: rcon.ErrCommandFailed, Message: "未知命令"}
	f := &sessionFactory{queue: []*mockSession{
		{queue: []cmdResult{{err: plain}}},
		{queue: []cmdResult{{err: plain}}},
		{},
	}}
	m := newTestManager(t, nil, f)

	m.ExecuteCommand("alpha", "bogus")
	m.ExecuteCommand("alpha", "bogus")

	stats, ok := m.FailureStats("alpha")
	if !ok {
		t.Fatal("失败统计不存在")
	}
	if stats.ConsecutiveFailures != 2 || stats.TotalFailures != 2 {
		t.Fatalf("失败统计 = %+v, want 连续2 累计2", stats)
	}
	if stats.LastFailureTime.IsZero() {
		t.Error("最后失败时间不应为零值")
	}

	if _, err := m.ExecuteCommand("alpha", "list"); err != nil {
		t.Fatalf("ExecuteCommand() error: %v", err)
	}
	stats, _ = m.FailureStats("alpha")
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("成功后连续失败数 = %d, want 0", stats.ConsecutiveFailures)
	}
	if stats.TotalFailures != 2 {
		t.Errorf("成功后累计失败数 = %d, want 2", stats.TotalFailures)
	}
}

func TestManagerDisconnectAndRemove(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)
	m.AddServer("alpha", RconConfig{Host: "127.0.0.1", Port: 25575, Password: "x"})

	if err := m.Connect("alpha"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := m.Disconnect("alpha"); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if m.IsConnected("alpha") {
		t.Error("断开后 IsConnected() = true, want false")
	}
	if got := f.session(0).disconnects; got == 0 {
		t.Error("底层会话未被断开")
	}
	waitUntil(t, func() bool { return len(m.ActiveHeartbeats()) == 0 })

	if err := m.RemoveServer("alpha"); err != nil {
		t.Fatalf("RemoveServer() error: %v", err)
	}
	if m.HasServer("alpha") {
		t.Error("移除后 HasServer() = true, want false")
	}
	if _, ok := m.FailureStats("alpha"); ok {
		t.Error("移除后失败统计应当被清除")
	}
}

func TestManagerConnectedServersSorted(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)
	m.AddServer("bravo", RconConfig{Host: "127.0.0.1", Port: 25576, Password: "x"})
	m.AddServer("alpha", RconConfig{Host: "127.0.0.1", Port: 25575, Password: "x"})

	for _, name := range []string{"bravo", "alpha"} {
		if err := m.Connect(name); err != nil {
			t.Fatalf("Connect(%s) error: %v", name, err)
		}
	}

	got := m.GetConnectedServers()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "bravo" {
		t.Errorf("GetConnectedServers() = %v, want [alpha bravo]", got)
	}

	entries := m.ListServers()
	if len(entries) != 2 {
		t.Fatalf("ListServers() 条目数 = %d, want 2", len(entries))
	}
	if entries[0].Name != "alpha" || !entries[0].Connected {
		t.Errorf("第一个条目 = %+v, want alpha已连接", entries[0])
	}
}

func TestManagerDisconnectAll(t *testing.T) {
	f := &sessionFactory{}
	m := newTestManager(t, nil, f)
	m.AddServer("alpha", RconConfig{Host: "127.0.0.1", Port: 25575, Password: "x"})
	m.AddServer("bravo", RconConfig{Host: "127.0.0.1", Port: 25576, Password: "x"})

	m.Connect("alpha")
	m.Connect("bravo")
	m.DisconnectAll()

	if got := m.GetConnectedServers(); len(got) != 0 {
		t.Errorf("断开全部后仍有连接: %v", got)
	}
	waitUntil(t, func() bool { return len(m.ActiveHeartbeats()) == 0 })
}
