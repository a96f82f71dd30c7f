package mcremote

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/xrjr/mcutils/pkg/ping"
)

// ServerInfo 服务器列表ping得到的公开信息
type ServerInfo struct {
	Online      bool   `json:"online"`
	Latency     int    `json:"latency_ms"`
	Version     string `json:"version"`
	Protocol    int    `json:"protocol"`
	Players     int    `json:"players"`
	MaxPlayers  int    `json:"max_players"`
	Description string `json:"description"`
	Favicon     string `json:"favicon,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	LastChecked int64  `json:"last_checked"`
}

// ping响应的JSON结构，字段随服务端实现略有出入，这里只取通用部分
type pingStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
	} `json:"players"`
	Description interface{} `json:"description"`
	Favicon     string      `json:"favicon"`
}

// descriptionText 提取描述文本。
// 老版本服务端直接给字符串，新版本给带text和extra的对象。
func (s *pingStatus) descriptionText() string {
	switch desc := s.Description.(type) {
	case string:
		return desc
	case map[string]interface{}:
		text := ""
		if t, ok := desc["text"].(string); ok {
			text = t
		}
		if extra, ok := desc["extra"].([]interface{}); ok {
			for _, part := range extra {
				switch p := part.(type) {
				case string:
					text += p
				case map[string]interface{}:
					if t, ok := p["text"].(string); ok {
						text += t
					}
				}
			}
		}
		return text
	}
	return ""
}

// PingServer 通过服务器列表ping获取某个服务器的公开信息。
// 服务器不可达不算错误，返回的信息里Online为false并附带原因；
// 只有响应无法解析时才返回非nil错误。
func PingServer(host string, port int) (*ServerInfo, error) {
	info := &ServerInfo{LastChecked: time.Now().UnixMilli()}

	properties, latency, err := ping.Ping(host, port)
	if err != nil {
		info.LastError = err.Error()
		return info, nil
	}

	data, err := sonic.Marshal(properties)
	if err != nil {
		info.LastError = err.Error()
		return info, fmt.Errorf("序列化ping响应失败: %v", err)
	}
	var status pingStatus
	if err := sonic.Unmarshal(data, &status); err != nil {
		info.LastError = err.Error()
		return info, fmt.Errorf("解析ping响应失败: %v", err)
	}

	info.Online = true
	info.Latency = latency
	info.Version = status.Version.Name
	info.Protocol = status.Version.Protocol
	info.Players = status.Players.Online
	info.MaxPlayers = status.Players.Max
	info.Description = status.descriptionText()
	info.Favicon = status.Favicon
	return info, nil
}
