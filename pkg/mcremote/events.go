package mcremote

// StatusChangedEvent 服务器状态变更事件的名称
const StatusChangedEvent = "server-status-changed"

// StatusEvent 状态变更事件的载荷
type StatusEvent struct {
	ServerName string       `json:"server_name"` // 服务器名称
	OldStatus  ServerStatus `json:"old_status"`  // 变更前状态
	NewStatus  ServerStatus `json:"new_status"`  // 变更后状态
	Timestamp  int64        `json:"timestamp"`   // Unix毫秒时间戳
}

// EventSink 状态变更事件的接收方，由SSE、WebSocket等外层实现
type EventSink interface {
	Emit(event string, payload interface{})
}

// MultiSink 把事件依次分发给多个接收方
type MultiSink []EventSink

// Emit 实现EventSink
func (ms MultiSink) Emit(event string, payload interface{}) {
	for _, s := range ms {
		if s != nil {
			s.Emit(event, payload)
		}
	}
}
