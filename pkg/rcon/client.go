package rcon

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// 连接时序参数，与Minecraft服务器实际联调后确定
const (
	connectTimeout  = 3 * time.Second        // 建立TCP连接的超时
	ioTimeout       = 60 * time.Second       // 单次读写的超时
	authSettleDelay = 100 * time.Millisecond // 认证成功后服务器的稳定窗口
	commandDelay    = 50 * time.Millisecond  // 发送命令前的稳定等待
)

// Client 与单个Minecraft服务器的RCON会话
type Client struct {
	host     string // 服务器地址
	port     int    // RCON端口
	password string // RCON密码

	// 会话状态
	conn           net.Conn  // 当前连接，未连接时为nil
	requestID      int32     // 最近分配的请求ID，从1开始单调递增
	authenticated  bool      // 是否已通过认证
	connectionLost bool      // 连接是否已失效
	lastUsed       time.Time // 上次成功往返的时间

	mutex sync.Mutex // 互斥锁，保护会话操作
}

// NewClient 创建一个未连接的RCON客户端
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

// Connect 建立TCP连接并立即认证。
// 已有存活会话时直接返回nil，不会重复建立连接。
func (c *Client) Connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.isConnectedLocked() {
		return nil
	}
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.host == "" {
		return newError(ErrConnectionFailed, "服务器地址不能为空")
	}
	if c.port == 0 {
		return newError(ErrConnectionFailed, "RCON端口不能为0")
	}

	// 替换掉可能残留的旧连接
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		// 带超时的拨号失败后回退为普通拨号再试一次
		conn, err = net.Dial("tcp", addr)
		if err != nil {
			return wrapError(ErrConnectionFailed, fmt.Sprintf("连接 %s 失败", addr), err)
		}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	c.conn = conn
	c.connectionLost = false
	c.authenticated = false

	return c.authenticateLocked()
}

// Authenticate 发送登录包并校验服务器的认证结果
func (c *Client) Authenticate() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.authenticateLocked()
}

func (c *Client) authenticateLocked() error {
	if c.conn == nil {
		return newError(ErrNotConnected, "尚未建立连接")
	}

	authID := c.nextRequestID()
	if err := c.writePacket(Packet{RequestID: authID, Type: PacketTypeLogin, Payload: c.password}); err != nil {
		return err
	}

	resp, err := c.readPacket()
	if err != nil {
		return err
	}

	// 服务器以request_id=-1表示密码被拒绝
	if resp.RequestID == -1 || resp.RequestID != authID {
		c.authenticated = false
		c.connectionLost = true
		return newError(ErrAuthenticationFailed, "RCON认证失败: 密码错误")
	}

	c.authenticated = true
	c.lastUsed = time.Now()

	// 服务器在认证成功后需要一个短暂的稳定窗口才能接受命令
	time.Sleep(authSettleDelay)
	return nil
}

// Command 执行一条命令并返回服务器的响应载荷
func (c *Client) Command(cmd string) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isConnectedLocked() {
		return "", newError(ErrNotConnected, "未连接到服务器")
	}

	// 连接稳定性等待
	time.Sleep(commandDelay)

	cmdID := c.nextRequestID()
	if err := c.writePacket(Packet{RequestID: cmdID, Type: PacketTypeCommand, Payload: cmd}); err != nil {
		return "", err
	}

	resp, err := c.readPacket()
	if err != nil {
		return "", err
	}

	if resp.RequestID != cmdID {
		// 部分服务器实现会主动发送Keep Alive包，此时真正的响应在下一个包里
		trimmed := strings.ToLower(strings.TrimSpace(resp.Payload))
		if trimmed == "" || trimmed == "keep alive" {
			next, err := c.readPacket()
			if err != nil {
				return "", err
			}
			if next.RequestID == cmdID {
				c.lastUsed = time.Now()
				return next.Payload, nil
			}
		}
		return "", newError(ErrInvalidResponse,
			fmt.Sprintf("响应ID不匹配: 期望 %d 实际 %d", cmdID, resp.RequestID))
	}

	c.lastUsed = time.Now()
	return resp.Payload, nil
}

// Disconnect 关闭连接并清理会话状态，重复调用没有副作用
func (c *Client) Disconnect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.authenticated = false
	c.connectionLost = false
}

// IsConnected 报告会话是否存活：连接存在、已认证且未失效
func (c *Client) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.isConnectedLocked()
}

func (c *Client) isConnectedLocked() bool {
	return c.conn != nil && c.authenticated && !c.connectionLost
}

// nextRequestID 分配下一个请求ID，每个会话从1开始
func (c *Client) nextRequestID() int32 {
	c.requestID++
	return c.requestID
}

// writePacket 写出一个数据包，任何写失败都会将会话标记为失效
func (c *Client) writePacket(p Packet) error {
	c.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if err := encodePacket(c.conn, p); err != nil {
		c.connectionLost = true
		return err
	}
	return nil
}

// readPacket 读入一个数据包，任何读失败都会将会话标记为失效
func (c *Client) readPacket() (Packet, error) {
	c.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	p, err := decodePacket(c.conn)
	if err != nil {
		c.connectionLost = true
		return Packet{}, err
	}
	return p, nil
}
