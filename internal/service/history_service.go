package service

import (
	"log"

	"github.com/D4ffi/allay-app/internal/db"
	"github.com/D4ffi/allay-app/internal/model"
	"github.com/D4ffi/allay-app/pkg/mcremote"
)

// HistoryService 提供命令历史与状态变更历史的读写
type HistoryService struct{}

// NewHistoryService 创建历史服务实例
func NewHistoryService() *HistoryService {
	return &HistoryService{}
}

// RecordCommand 写入一条命令执行记录。
// 历史记录是旁路功能，写入失败只记日志，不影响命令本身的结果。
func (s *HistoryService) RecordCommand(record model.CommandRecord) {
	if err := db.DB.Create(&record).Error; err != nil {
		log.Printf("写入命令历史失败: %v", err)
	}
}

// RecordStatusChange 写入一条状态变更记录
func (s *HistoryService) RecordStatusChange(server, oldStatus, newStatus string) {
	record := model.StatusRecord{
		ServerName: server,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
	}
	if err := db.DB.Create(&record).Error; err != nil {
		log.Printf("写入状态变更历史失败: %v", err)
	}
}

// ListCommands 分页查询命令历史，server为空时查询全部服务器
func (s *HistoryService) ListCommands(page, pageSize int, server string) ([]model.CommandRecord, int64, error) {
	var records []model.CommandRecord
	var total int64

	query := db.DB.Model(&model.CommandRecord{})
	if server != "" {
		query = query.Where("server_name = ?", server)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 最新的记录排在前面
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListStatusChanges 分页查询状态变更历史，server为空时查询全部服务器
func (s *HistoryService) ListStatusChanges(page, pageSize int, server string) ([]model.StatusRecord, int64, error) {
	var records []model.StatusRecord
	var total int64

	query := db.DB.Model(&model.StatusRecord{})
	if server != "" {
		query = query.Where("server_name = ?", server)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// StatusEventRecorder 把监控器广播的状态变更事件写入历史库
type StatusEventRecorder struct {
	history *HistoryService
}

// NewStatusEventRecorder 创建状态变更落库的事件出口
func NewStatusEventRecorder(history *HistoryService) *StatusEventRecorder {
	return &StatusEventRecorder{history: history}
}

// Emit 实现mcremote.EventSink
func (r *StatusEventRecorder) Emit(event string, payload interface{}) {
	if event != mcremote.StatusChangedEvent {
		return
	}
	ev, ok := payload.(mcremote.StatusEvent)
	if !ok {
		return
	}
	r.history.RecordStatusChange(ev.ServerName, ev.OldStatus.String(), ev.NewStatus.String())
}
