package model

import (
	"gorm.io/gorm"
)

// CommandRecord 一条已执行命令的历史记录
type CommandRecord struct {
	gorm.Model
	ServerName string `gorm:"size:100;not null;index" json:"server_name"`
	Command    string `gorm:"size:500;not null" json:"command"`
	Response   string `gorm:"type:text" json:"response"`
	Success    bool   `json:"success"`
	ErrorKind  string `gorm:"size:50" json:"error_kind,omitempty"`
	TookMs     int64  `json:"took_ms"`
	Source     string `gorm:"size:20" json:"source"` // api或websocket
}

// StatusRecord 一条服务器状态变更记录
type StatusRecord struct {
	gorm.Model
	ServerName string `gorm:"size:100;not null;index" json:"server_name"`
	OldStatus  string `gorm:"size:20" json:"old_status"`
	NewStatus  string `gorm:"size:20" json:"new_status"`
}
