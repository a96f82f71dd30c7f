package rcon

import (
	"net"
	"sync/atomic"
	"testing"
)

// fakeRcon 在环回地址上模拟一个最小的RCON服务器
type fakeRcon struct {
	ln       net.Listener
	accepted int32
}

func newFakeRcon(t *testing.T, handle func(conn net.Conn)) *fakeRcon {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("监听环回地址失败: %v", err)
	}
	f := &fakeRcon{ln: ln}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&f.accepted, 1)
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRcon) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeRcon) acceptCount() int32 {
	return atomic.LoadInt32(&f.accepted)
}

// replyAuth 读取登录包并按认证结果回包，id=-1表示拒绝
func replyAuth(conn net.Conn, accept bool) error {
	p, err := decodePacket(conn)
	if err != nil {
		return err
	}
	id := p.RequestID
	if !accept {
		id = -1
	}
	return encodePacket(conn, Packet{RequestID: id, Type: PacketTypeResponse})
}

// echoLoop 认证通过后把后续命令原样回显
func echoLoop(conn net.Conn) {
	if err := replyAuth(conn, true); err != nil {
		return
	}
	for {
		p, err := decodePacket(conn)
		if err != nil {
			return
		}
		if err := encodePacket(conn, Packet{RequestID: p.RequestID, Type: PacketTypeResponse, Payload: "echo:" + p.Payload}); err != nil {
			return
		}
	}
}

func TestClientConnectAndCommand(t *testing.T) {
	srv := newFakeRcon(t, echoLoop)

	c := NewClient("127.0.0.1", srv.port(), "secret")
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("连接后 IsConnected() = false, want true")
	}

	got, err := c.Command("list")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if got != "echo:list" {
		t.Errorf("Command() = %q, want %q", got, "echo:list")
	}

	c.Disconnect()
	if c.IsConnected() {
		t.Error("断开后 IsConnected() = true, want false")
	}
}

func TestClientAuthenticationRejected(t *testing.T) {
	srv := newFakeRcon(t, func(conn net.Conn) {
		replyAuth(conn, false)
	})

	c := NewClient("127.0.0.1", srv.port(), "wrong-password")
	err := c.Connect()
	if err == nil {
		t.Fatal("认证被拒绝时 Connect() 应当失败")
	}
	if got := KindOf(err); got != ErrAuthenticationFailed {
		t.Errorf("错误类别 = %v, want %v", got, ErrAuthenticationFailed)
	}
	if c.IsConnected() {
		t.Error("认证失败后 IsConnected() = true, want false")
	}
}

func TestClientCommandWithoutConnect(t *testing.T) {
	c := NewClient("127.0.0.1", 25575, "secret")

	_, err := c.Command("list")
	if err == nil {
		t.Fatal("未连接时 Command() 应当失败")
	}
	if got := KindOf(err); got != ErrNotConnected {
		t.Errorf("错误类别 = %v, want %v", got, ErrNotConnected)
	}
}

func TestClientConnectValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		c    *Client
	}{
		{"空地址", NewClient("", 25575, "x")},
		{"零端口", NewClient("127.0.0.1", 0, "x")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Connect()
			if err == nil {
				t.Fatal("非法配置时 Connect() 应当失败")
			}
			if got := KindOf(err); got != ErrConnectionFailed {
				t.Errorf("错误类别 = %v, want %v", got, ErrConnectionFailed)
			}
		})
	}
}

func TestClientConnectIdempotent(t *testing.T) {
	srv := newFakeRcon(t, echoLoop)

	c := NewClient("127.0.0.1", srv.port(), "secret")
	if err := c.Connect(); err != nil {
		t.Fatalf("第一次 Connect() error: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("第二次 Connect() error: %v", err)
	}
	if got := srv.acceptCount(); got != 1 {
		t.Errorf("服务器收到的连接数 = %d, want 1", got)
	}
}

func TestClientKeepAliveLookAhead(t *testing.T) {
	srv := newFakeRcon(t, func(conn net.Conn) {
		if err := replyAuth(conn, true); err != nil {
			return
		}
		for {
			p, err := decodePacket(conn)
			if err != nil {
				return
			}
			// 先塞一个保活包，真正的响应放在后面
			if err := encodePacket(conn, Packet{RequestID: 9999, Type: PacketTypeResponse, Payload: "Keep Alive"}); err != nil {
				return
			}
			if err := encodePacket(conn, Packet{RequestID: p.RequestID, Type: PacketTypeResponse, Payload: "players: 0"}); err != nil {
				return
			}
		}
	})

	c := NewClient("127.0.0.1", srv.port(), "secret")
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	got, err := c.Command("list")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if got != "players: 0" {
		t.Errorf("Command() = %q, want %q", got, "players: 0")
	}
}

func TestClientWrongIDIsInvalidResponse(t *testing.T) {
	srv := newFakeRcon(t, func(conn net.Conn) {
		if err := replyAuth(conn, true); err != nil {
			return
		}
		if _, err := decodePacket(conn); err != nil {
			return
		}
		// 错误ID且载荷不是保活内容，应当直接判定为无效响应
		encodePacket(conn, Packet{RequestID: 9999, Type: PacketTypeResponse, Payload: "garbage"})
	})

	c := NewClient("127.0.0.1", srv.port(), "secret")
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	_, err := c.Command("list")
	if err == nil {
		t.Fatal("响应ID不匹配时 Command() 应当失败")
	}
	if got := KindOf(err); got != ErrInvalidResponse {
		t.Errorf("错误类别 = %v, want %v", got, ErrInvalidResponse)
	}
}

func TestClientServerClosesDuringAuth(t *testing.T) {
	srv := newFakeRcon(t, func(conn net.Conn) {
		// 读完登录包直接关闭，不回包
		decodePacket(conn)
	})

	c := NewClient("127.0.0.1", srv.port(), "secret")
	err := c.Connect()
	if err == nil {
		t.Fatal("服务器不回包时 Connect() 应当失败")
	}
	if c.IsConnected() {
		t.Error("连接失败后 IsConnected() = true, want false")
	}
	if !IsRetryable(err) {
		t.Errorf("服务器中断的连接错误应当可重试, err = %v", err)
	}
}
