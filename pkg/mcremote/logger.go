package mcremote

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// 单个日志文件的大小上限，超过后轮转为.bak
const maxLogFileSize = 10 * 1024 * 1024

// ServerLogger 单个服务器的RCON活动日志，按行追加写入独立文件
type ServerLogger struct {
	server string // 服务器名称
	path   string // 日志文件路径
	mutex  sync.Mutex
}

// NewServerLogger 创建某个服务器的活动日志记录器，
// 日志写入 <logDir>/<server>/rcon.log
func NewServerLogger(logDir, server string) *ServerLogger {
	return &ServerLogger{
		server: server,
		path:   filepath.Join(logDir, server, "rcon.log"),
	}
}

// write 追加一行日志，格式: [时间] [级别] 内容
func (l *ServerLogger) write(level, message string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		log.Printf("创建服务器 %s 的日志目录失败: %v", l.server, err)
		return
	}
	l.rotateIfNeeded()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("打开服务器 %s 的RCON日志失败: %v", l.server, err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "[%s] [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, message)
}

// rotateIfNeeded 文件超过大小上限时轮转为.bak，调用方需持有锁
func (l *ServerLogger) rotateIfNeeded() {
	fi, err := os.Stat(l.path)
	if err != nil || fi.Size() <= maxLogFileSize {
		return
	}
	if err := os.Rename(l.path, l.path+".bak"); err != nil {
		log.Printf("轮转服务器 %s 的RCON日志失败: %v", l.server, err)
	}
}

// Connection 记录连接事件
func (l *ServerLogger) Connection(message string) {
	l.write("CONNECTION", message)
}

// Authentication 记录认证事件，只记录密码长度，绝不记录密码本身
func (l *ServerLogger) Authentication(passwordLen int) {
	l.write("AUTH", fmt.Sprintf("RCON认证通过 (密码长度: %d)", passwordLen))
}

// Command 记录命令及其响应
func (l *ServerLogger) Command(cmd, response string) {
	l.write("COMMAND", fmt.Sprintf("%s -> %s", cmd, response))
}

// CommandError 记录命令失败
func (l *ServerLogger) CommandError(cmd string, err error) {
	l.write("COMMAND_ERROR", fmt.Sprintf("%s: %v", cmd, err))
}

// Heartbeat 记录心跳事件
func (l *ServerLogger) Heartbeat(message string) {
	l.write("HEARTBEAT", message)
}

// HeartbeatError 记录心跳失败
func (l *ServerLogger) HeartbeatError(err error) {
	l.write("HEARTBEAT_ERROR", err.Error())
}

// Disconnection 记录断开事件
func (l *ServerLogger) Disconnection(message string) {
	l.write("DISCONNECTION", message)
}

// Reconnection 记录重连事件
func (l *ServerLogger) Reconnection(message string) {
	l.write("RECONNECTION", message)
}

// Info 记录一般信息
func (l *ServerLogger) Info(message string) {
	l.write("INFO", message)
}

// Warn 记录警告
func (l *ServerLogger) Warn(message string) {
	l.write("WARN", message)
}

// Error 记录错误
func (l *ServerLogger) Error(message string) {
	l.write("ERROR", message)
}

// Tail 返回日志文件最后n行，文件不存在时返回空切片
func (l *ServerLogger) Tail(n int) ([]string, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("读取RCON日志失败: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
