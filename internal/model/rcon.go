package model

// AddServerRequest 注册服务器请求
type AddServerRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Host     string `json:"host"`
	Port     int    `json:"port" binding:"omitempty,min=1,max=65535"`
	Password string `json:"password"`
}

// CommandRequest 执行命令请求
type CommandRequest struct {
	Command string `json:"command" binding:"required,max=500"`
}

// CommandResponse 命令执行结果
type CommandResponse struct {
	ServerName string `json:"server_name"`
	Command    string `json:"command"`
	Response   string `json:"response"`
	TookMs     int64  `json:"took_ms"`
}

// StatusUpdateRequest 手工更新服务器状态请求
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// TestConnectionResponse 连通性探测结果
type TestConnectionResponse struct {
	ServerName string `json:"server_name"`
	Reachable  bool   `json:"reachable"`
}
