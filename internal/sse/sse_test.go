package sse

import (
	"strings"
	"testing"
	"time"
)

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("等待条件成立超时")
}

func newTestBroker() *Broker {
	b := NewBroker()
	b.Start()
	return b
}

func addClient(t *testing.T, b *Broker, id, topic string) *Client {
	t.Helper()
	c := &Client{
		ID:        id,
		Channel:   make(chan []byte, 256),
		Topic:     topic,
		CreatedAt: time.Now(),
	}
	b.newClients <- c
	waitUntil(t, func() bool {
		b.mutex.RLock()
		defer b.mutex.RUnlock()
		_, ok := b.clients[id]
		return ok
	})
	return c
}

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Channel:
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("等待SSE消息超时")
		return ""
	}
}

func TestBrokerTopicDispatch(t *testing.T) {
	b := newTestBroker()
	sub := addClient(t, b, "sub", "server-status-changed")
	all := addClient(t, b, "all", "")

	b.Publish(&Message{Topic: "server-status-changed", Event: "server-status-changed", Data: "payload"})

	if got := recv(t, sub); !strings.Contains(got, "event: server-status-changed\n") {
		t.Errorf("订阅客户端收到的消息缺少事件行: %q", got)
	}
	if got := recv(t, all); !strings.Contains(got, `data: "payload"`) {
		t.Errorf("无主题客户端应当收到全部事件: %q", got)
	}

	// 其他主题的消息不应该到达订阅了特定主题的客户端
	b.Publish(&Message{Topic: "other-topic", Event: "other-topic", Data: 1})
	if got := recv(t, all); !strings.Contains(got, "event: other-topic\n") {
		t.Errorf("无主题客户端未收到其他主题的消息: %q", got)
	}
	select {
	case msg := <-sub.Channel:
		t.Errorf("订阅客户端收到了不相关主题的消息: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerBroadcastWithoutTopic(t *testing.T) {
	b := newTestBroker()
	sub := addClient(t, b, "sub", "server-status-changed")
	all := addClient(t, b, "all", "")

	b.Publish(&Message{Event: "notice", Data: "大家好"})

	for _, c := range []*Client{sub, all} {
		if got := recv(t, c); !strings.Contains(got, "event: notice\n") {
			t.Errorf("客户端 %s 未收到广播: %q", c.ID, got)
		}
	}
}

func TestBrokerEmit(t *testing.T) {
	b := newTestBroker()
	c := addClient(t, b, "c1", "")

	b.Emit("server-status-changed", map[string]interface{}{"server_name": "alpha"})

	got := recv(t, c)
	if !strings.Contains(got, "event: server-status-changed\n") {
		t.Errorf("缺少事件行: %q", got)
	}
	if !strings.Contains(got, `"server_name":"alpha"`) {
		t.Errorf("缺少数据字段: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("SSE消息应当以空行结尾: %q", got)
	}
}

func TestBrokerClientLifecycle(t *testing.T) {
	b := newTestBroker()
	c := addClient(t, b, "c1", "server-status-changed")

	if got := b.GetClientCount(); got != 1 {
		t.Errorf("GetClientCount() = %d, want 1", got)
	}
	if got := b.GetTopicClientCount("server-status-changed"); got != 1 {
		t.Errorf("GetTopicClientCount() = %d, want 1", got)
	}

	b.closingClients <- "c1"
	waitUntil(t, func() bool { return b.GetClientCount() == 0 })

	if got := b.GetTopicClientCount("server-status-changed"); got != 0 {
		t.Errorf("注销后 GetTopicClientCount() = %d, want 0", got)
	}

	// 注销时客户端通道应当被关闭
	waitUntil(t, func() bool {
		select {
		case _, ok := <-c.Channel:
			return !ok
		default:
			return false
		}
	})
}

func TestBrokerSlowClientEvicted(t *testing.T) {
	b := newTestBroker()

	c := &Client{ID: "slow", Channel: make(chan []byte, 1), CreatedAt: time.Now()}
	b.newClients <- c
	waitUntil(t, func() bool { return b.GetClientCount() == 1 })

	// 第一条填满通道，第二条触发淘汰，代理不能因此卡死
	b.Publish(&Message{Event: "e", Data: 1})
	b.Publish(&Message{Event: "e", Data: 2})

	waitUntil(t, func() bool { return b.GetClientCount() == 0 })
}
