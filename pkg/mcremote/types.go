package mcremote

import (
	"time"
)

// 未显式配置时使用的RCON默认参数
const (
	DefaultRconHost     = "127.0.0.1"
	DefaultRconPort     = 25575
	DefaultRconPassword = "minecraft"
)

// RconConfig 单个服务器的RCON连接配置
type RconConfig struct {
	Host     string `json:"host"` // 服务器地址
	Port     int    `json:"port"` // RCON端口
	Password string `json:"-"`    // RCON密码，不对外序列化
}

// FailureTracker 单个服务器的失败统计，重试退避策略的依据。
// 任何一次命令成功都会清零连续失败计数。
type FailureTracker struct {
	ConsecutiveFailures int       `json:"consecutive_failures"` // 连续失败次数
	TotalFailures       int       `json:"total_failures"`       // 累计失败次数
	LastFailureTime     time.Time `json:"last_failure_time"`    // 最近一次失败时间
}

// ServerEntry 对外展示的服务器条目
type ServerEntry struct {
	Name      string `json:"name"`      // 服务器名称
	Host      string `json:"host"`      // 服务器地址
	Port      int    `json:"port"`      // RCON端口
	Connected bool   `json:"connected"` // 当前是否有存活的RCON会话
}

// ServerStatus 监控视角下服务器的存活状态
type ServerStatus int

const (
	StatusOffline ServerStatus = iota // 离线
	StatusOnline                      // 在线
)

// String 返回状态的序列化名称
func (s ServerStatus) String() string {
	if s == StatusOnline {
		return "Online"
	}
	return "Offline"
}

// MarshalJSON 状态以字符串形式序列化
func (s ServerStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON 从字符串形式反序列化状态
func (s *ServerStatus) UnmarshalJSON(data []byte) error {
	parsed, err := ParseServerStatus(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseServerStatus 解析状态名称，接受带引号或不带引号的形式
func ParseServerStatus(raw string) (ServerStatus, error) {
	switch trimQuotes(raw) {
	case "Online", "online":
		return StatusOnline, nil
	case "Offline", "offline":
		return StatusOffline, nil
	}
	return StatusOffline, &statusParseError{raw: raw}
}

type statusParseError struct{ raw string }

func (e *statusParseError) Error() string {
	return "无法识别的服务器状态: " + e.raw
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// serverState 监控器内部维护的单个服务器状态
type serverState struct {
	status       ServerStatus // 当前状态
	isConnecting bool         // 是否正在尝试连接，防止重复发起
	lastAttempt  time.Time    // 最近一次连接尝试时间
}

// session RCON会话的最小能力集，由rcon.Client实现
type session interface {
	Connect() error
	Command(cmd string) (string, error)
	Disconnect()
	IsConnected() bool
}

// PropertiesStore 服务器配置文件的读写能力，
// 用于自动生成RCON配置时读取rcon.password等配置项
type PropertiesStore interface {
	GetProperty(server, key string) (string, error)
	UpdateProperty(server, key, value string) error
}

// ConnectionManager Monitor所依赖的连接管理能力，由Manager实现
type ConnectionManager interface {
	HasServer(name string) bool
	AddServer(name string, config RconConfig)
	Connect(name string) error
	IsConnected(name string) bool
	Disconnect(name string) error
}
