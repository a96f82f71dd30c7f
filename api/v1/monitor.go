package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/D4ffi/allay-app/internal/model"
	"github.com/D4ffi/allay-app/pkg/mcremote"
)

// MonitorController 存活监控API控制器
type MonitorController struct {
	Monitor *mcremote.Monitor
	Manager *mcremote.Manager
}

// NewMonitorController 创建监控控制器
func NewMonitorController(monitor *mcremote.Monitor, manager *mcremote.Manager) *MonitorController {
	return &MonitorController{
		Monitor: monitor,
		Manager: manager,
	}
}

// GetAllStatuses 获取全部服务器状态
// @Summary 获取全部服务器状态
// @Description 返回全部受监控服务器的存活状态快照
// @Tags 存活监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/statuses [get]
func (c *MonitorController) GetAllStatuses(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"background_running": c.Monitor.IsBackgroundRunning(),
		"statuses":           c.Monitor.GetAllStatuses(),
	}))
}

// GetStatus 获取单个服务器状态
// @Summary 获取服务器状态
// @Description 返回指定服务器的存活状态，未受监控的服务器视为离线
// @Tags 存活监控
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/monitor/{name}/status [get]
func (c *MonitorController) GetStatus(ctx *gin.Context) {
	name := ctx.Param("name")
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"server": name,
		"status": c.Monitor.GetServerStatus(name),
	}))
}

// UpdateStatus 更新服务器状态
// @Summary 更新服务器状态
// @Description 手工把指定服务器置为在线或离线，状态变化会对外广播
// @Tags 存活监控
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Param status body model.StatusUpdateRequest true "目标状态"
// @Success 200 {object} model.Response "更新成功"
// @Failure 400 {object} model.Response "无法识别的状态"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/monitor/{name}/status [put]
func (c *MonitorController) UpdateStatus(ctx *gin.Context) {
	name := ctx.Param("name")

	var req model.StatusUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	status, err := mcremote.ParseServerStatus(req.Status)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	c.Monitor.UpdateServerStatus(name, status)

	// 手工置为离线时顺带清理RCON连接和心跳
	if status == mcremote.StatusOffline {
		c.Manager.HandleServerOffline(name)
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"server": name,
		"status": status,
	}))
}

// StartMonitoring 监控某个服务器
// @Summary 监控某个服务器
// @Description 把指定服务器加入存活监控，初始状态为离线
// @Tags 存活监控
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response "已加入监控"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/monitor/{name}/start [post]
func (c *MonitorController) StartMonitoring(ctx *gin.Context) {
	name := ctx.Param("name")
	c.Monitor.StartMonitoring(name)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// StopMonitoring 停止监控某个服务器
// @Summary 停止监控某个服务器
// @Description 把指定服务器移出存活监控，有连接时一并断开
// @Tags 存活监控
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response "已移出监控"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/monitor/{name}/stop [post]
func (c *MonitorController) StopMonitoring(ctx *gin.Context) {
	name := ctx.Param("name")
	c.Monitor.StopMonitoring(name)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// StartBackground 启动后台巡检
// @Summary 启动后台巡检
// @Description 启动周期性的存活巡检循环
// @Tags 存活监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "已启动"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/monitoring/start [post]
func (c *MonitorController) StartBackground(ctx *gin.Context) {
	c.Monitor.StartBackgroundMonitoring()
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// StopBackground 停止后台巡检
// @Summary 停止后台巡检
// @Description 停止周期性的存活巡检循环
// @Tags 存活监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "已停止"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/monitoring/stop [post]
func (c *MonitorController) StopBackground(ctx *gin.Context) {
	c.Monitor.StopBackgroundMonitoring()
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}
