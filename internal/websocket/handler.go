package websocket

import (
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/D4ffi/allay-app/internal/model"
	"github.com/D4ffi/allay-app/pkg/rcon"
)

// MessageType 消息类型
const (
	MessageTypePing     = "ping"     // 心跳消息
	MessageTypePong     = "pong"     // 心跳响应
	MessageTypeJoin     = "join"     // 关注某个服务器
	MessageTypeLeave    = "leave"    // 取消关注
	MessageTypeNotify   = "notify"   // 通知
	MessageTypeError    = "error"    // 错误
	MessageTypeCommand  = "command"  // 控制台命令
	MessageTypeResponse = "response" // 命令响应
	MessageTypeEvent    = "event"    // 服务器事件
)

// Message WebSocket消息结构
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// CommandExecutor 控制台命令的执行入口
type CommandExecutor interface {
	ExecuteCommand(server, cmd string) (string, error)
}

// CommandRecorder 命令历史记录器
type CommandRecorder interface {
	RecordCommand(record model.CommandRecord)
}

var (
	executor CommandExecutor
	recorder CommandRecorder
)

// Setup 注入控制台依赖，必须在挂载路由之前调用
func Setup(exec CommandExecutor, rec CommandRecorder) {
	executor = exec
	recorder = rec
}

// HandleWebSocket 处理WebSocket控制台连接
func HandleWebSocket(c *gin.Context) {
	// 客户端可以在连接时就指定关注的服务器
	server := c.Query("server")

	// 升级HTTP连接为WebSocket连接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}

	// 创建客户端
	client := &Client{
		ID:         uuid.New().String(),
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Server:     server,
		LastPingAt: time.Now(),
		Manager:    GlobalManager,
		Closed:     false,
	}

	// 注册客户端
	GlobalManager.Register(client)

	// 发送欢迎消息
	welcomeMsg := map[string]interface{}{
		"message":  "控制台已连接",
		"clientID": client.ID,
		"server":   server,
	}
	client.safeSend(MarshalMessage(MessageTypeJoin, welcomeMsg))

	// 启动goroutine处理WebSocket通信
	go client.writePump()
	go client.readPump()
}

// safeSend 投递消息，客户端已关闭或缓冲已满时丢弃
func (c *Client) safeSend(message []byte) {
	c.ClosedMutex.Lock()
	defer c.ClosedMutex.Unlock()
	if c.Closed {
		return
	}
	select {
	case c.Send <- message:
	default:
	}
}

// readPump 从WebSocket连接读取消息
func (c *Client) readPump() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()

	// 设置读取超时
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.LastPingAt = time.Now()
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取WebSocket消息错误: %v", err)
			}
			break
		}

		// 处理接收到的消息
		c.handleMessage(message)
	}
}

// writePump 向WebSocket连接写入消息
func (c *Client) writePump() {
	// 创建ping定时器
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			// 设置写入超时
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// 通道已关闭
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 写入消息
			writer, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			writer.Write(message)

			// 添加可能排队的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				writer.Write([]byte("\n"))
				writer.Write(<-c.Send)
			}

			if err := writer.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// 发送ping消息
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			// 也发送自定义ping消息
			c.safeSend(MarshalMessage(MessageTypePing, nil))
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(data []byte) {
	// 更新最后ping时间
	c.LastPingAt = time.Now()

	// 解析消息
	var message Message
	if err := sonic.Unmarshal(data, &message); err != nil {
		log.Printf("解析消息失败: %v", err)
		c.safeSend(MarshalMessage(MessageTypeError, "无效的消息格式"))
		return
	}

	// 处理不同类型的消息
	switch message.Type {
	case MessageTypePing:
		// 响应ping
		c.safeSend(MarshalMessage(MessageTypePong, nil))

	case MessageTypeJoin:
		// 切换关注的服务器
		if content, ok := message.Content.(map[string]interface{}); ok {
			if serverName, exists := content["server"].(string); exists && serverName != "" {
				c.Manager.mutex.Lock()

				// 从旧分组移除
				if c.Server != "" {
					if group, ok := c.Manager.servers[c.Server]; ok {
						delete(group, c.ID)
						// 如果分组为空，删除分组
						if len(group) == 0 {
							delete(c.Manager.servers, c.Server)
						}
					}
				}

				// 加入新分组
				c.Server = serverName
				if _, ok := c.Manager.servers[serverName]; !ok {
					c.Manager.servers[serverName] = make(map[string]*Client)
				}
				c.Manager.servers[serverName][c.ID] = c

				c.Manager.mutex.Unlock()

				c.safeSend(MarshalMessage(MessageTypeJoin, map[string]string{
					"server":  serverName,
					"message": fmt.Sprintf("已切换到服务器: %s", serverName),
				}))
			}
		}

	case MessageTypeLeave:
		// 取消关注当前服务器
		if c.Server != "" {
			serverName := c.Server

			c.Manager.mutex.Lock()
			if group, ok := c.Manager.servers[serverName]; ok {
				delete(group, c.ID)
				if len(group) == 0 {
					delete(c.Manager.servers, serverName)
				}
			}
			c.Server = ""
			c.Manager.mutex.Unlock()

			c.safeSend(MarshalMessage(MessageTypeLeave, map[string]string{
				"server":  serverName,
				"message": fmt.Sprintf("已取消关注服务器: %s", serverName),
			}))
		}

	case MessageTypeCommand:
		c.handleCommand(message.Content)

	default:
		// 未知消息类型
		c.safeSend(MarshalMessage(MessageTypeError, "不支持的消息类型"))
	}
}

// handleCommand 处理控制台命令。
// 命令可能长时间阻塞，在独立goroutine里执行，不占住读循环。
func (c *Client) handleCommand(content interface{}) {
	params, ok := content.(map[string]interface{})
	if !ok {
		c.safeSend(MarshalMessage(MessageTypeError, "命令消息格式不正确"))
		return
	}
	command, _ := params["command"].(string)
	if command == "" {
		c.safeSend(MarshalMessage(MessageTypeError, "命令不能为空"))
		return
	}
	server, _ := params["server"].(string)
	if server == "" {
		server = c.Server
	}
	if server == "" {
		c.safeSend(MarshalMessage(MessageTypeError, "未指定目标服务器"))
		return
	}
	if executor == nil {
		c.safeSend(MarshalMessage(MessageTypeError, "控制台尚未就绪"))
		return
	}

	go func() {
		start := time.Now()
		response, err := executor.ExecuteCommand(server, command)
		took := time.Since(start).Milliseconds()

		if recorder != nil {
			record := model.CommandRecord{
				ServerName: server,
				Command:    command,
				Response:   response,
				Success:    err == nil,
				TookMs:     took,
				Source:     "websocket",
			}
			if err != nil {
				record.ErrorKind = rcon.KindOf(err).String()
			}
			recorder.RecordCommand(record)
		}

		if err != nil {
			c.safeSend(MarshalMessage(MessageTypeError, map[string]interface{}{
				"server":  server,
				"command": command,
				"message": err.Error(),
			}))
			return
		}
		c.safeSend(MarshalMessage(MessageTypeResponse, map[string]interface{}{
			"server":   server,
			"command":  command,
			"response": response,
			"took_ms":  took,
		}))
	}()
}

// MarshalMessage 将消息编码为JSON字符串
func MarshalMessage(msgType string, content interface{}) []byte {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("编码消息失败: %v", err)
		return []byte(`{"type":"error","content":"消息编码失败"}`)
	}
	return data
}
