package v1

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/D4ffi/allay-app/internal/config"
	"github.com/D4ffi/allay-app/internal/model"
	"github.com/D4ffi/allay-app/internal/properties"
	"github.com/D4ffi/allay-app/internal/service"
	"github.com/D4ffi/allay-app/pkg/mcremote"
	"github.com/D4ffi/allay-app/pkg/rcon"
)

// RconController RCON远程控制API控制器
type RconController struct {
	Manager *mcremote.Manager
	Monitor *mcremote.Monitor
	History *service.HistoryService
	Props   *properties.Store
	Config  *config.Config
}

// NewRconController 创建RCON控制器
func NewRconController(manager *mcremote.Manager, monitor *mcremote.Monitor, history *service.HistoryService, props *properties.Store, cfg *config.Config) *RconController {
	return &RconController{
		Manager: manager,
		Monitor: monitor,
		History: history,
		Props:   props,
		Config:  cfg,
	}
}

// ListServers 获取服务器列表
// @Summary 获取服务器列表
// @Description 列出全部已注册的服务器及其连接状态
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=[]mcremote.ServerEntry} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/servers [get]
func (c *RconController) ListServers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.SuccessResponse(c.Manager.ListServers()))
}

// GetConnectedServers 获取已连接的服务器
// @Summary 获取已连接的服务器
// @Description 列出当前有存活RCON会话的服务器名
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/servers/connected [get]
func (c *RconController) GetConnectedServers(ctx *gin.Context) {
	servers := c.Manager.GetConnectedServers()
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"servers": servers,
		"count":   len(servers),
	}))
}

// AddServer 注册服务器
// @Summary 注册服务器
// @Description 保存服务器的RCON配置，未填的字段使用默认值
// @Tags 服务器管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param server body model.AddServerRequest true "服务器信息"
// @Success 200 {object} model.Response{data=mcremote.ServerEntry} "注册成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/server [post]
func (c *RconController) AddServer(ctx *gin.Context) {
	var req model.AddServerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	if req.Host == "" {
		req.Host = c.Config.DefaultRconHost
	}
	if req.Port == 0 {
		req.Port = c.Config.DefaultRconPort
	}
	if req.Password == "" {
		req.Password = c.Config.DefaultRconPassword
	}

	c.Manager.AddServer(req.Name, mcremote.RconConfig{
		Host:     req.Host,
		Port:     req.Port,
		Password: req.Password,
	})

	// 同步写入server.properties，确保服务器端RCON开启，失败不影响注册
	if c.Props != nil {
		if err := c.Props.EnsureRconEnabled(req.Name, req.Port, req.Password); err != nil {
			log.Printf("写入服务器 %s 的server.properties失败: %v", req.Name, err)
		}
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(mcremote.ServerEntry{
		Name: req.Name,
		Host: req.Host,
		Port: req.Port,
	}))
}

// RemoveServer 删除服务器
// @Summary 删除服务器
// @Description 断开连接、停止监控并清除服务器的RCON配置
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response "删除成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/server/{name} [delete]
func (c *RconController) RemoveServer(ctx *gin.Context) {
	name := ctx.Param("name")

	c.Monitor.StopMonitoring(name)
	if err := c.Manager.RemoveServer(name); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "删除失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// Connect 建立RCON连接
// @Summary 建立RCON连接
// @Description 为指定服务器建立RCON连接并认证
// @Tags 远程控制
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response "连接成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "连接失败"
// @Router /api/v1/server/{name}/connect [post]
func (c *RconController) Connect(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := c.Manager.Connect(name); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "连接失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// Disconnect 断开RCON连接
// @Summary 断开RCON连接
// @Description 停止心跳并断开指定服务器的RCON连接
// @Tags 远程控制
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response "断开成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/server/{name}/disconnect [post]
func (c *RconController) Disconnect(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := c.Manager.Disconnect(name); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "断开失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// ExecuteCommand 执行RCON命令
// @Summary 执行RCON命令
// @Description 在指定服务器上执行命令并返回响应
// @Tags 远程控制
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Param command body model.CommandRequest true "命令"
// @Success 200 {object} model.Response{data=model.CommandResponse} "执行成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "执行失败"
// @Router /api/v1/server/{name}/command [post]
func (c *RconController) ExecuteCommand(ctx *gin.Context) {
	name := ctx.Param("name")

	var req model.CommandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	start := time.Now()
	response, err := c.Manager.ExecuteCommand(name, req.Command)
	took := time.Since(start).Milliseconds()

	// 无论成败都记一条历史
	record := model.CommandRecord{
		ServerName: name,
		Command:    req.Command,
		Response:   response,
		Success:    err == nil,
		TookMs:     took,
		Source:     "api",
	}
	if err != nil {
		record.ErrorKind = rcon.KindOf(err).String()
	}
	c.History.RecordCommand(record)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "命令执行失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(model.CommandResponse{
		ServerName: name,
		Command:    req.Command,
		Response:   response,
		TookMs:     took,
	}))
}

// TestConnection 测试RCON连通性
// @Summary 测试RCON连通性
// @Description 用list命令探测指定服务器是否可用
// @Tags 远程控制
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Success 200 {object} model.Response{data=model.TestConnectionResponse} "探测完成"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "探测出错"
// @Router /api/v1/server/{name}/test [get]
func (c *RconController) TestConnection(ctx *gin.Context) {
	name := ctx.Param("name")

	reachable, err := c.Manager.TestConnection(name)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "探测出错: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(model.TestConnectionResponse{
		ServerName: name,
		Reachable:  reachable,
	}))
}

// GetServerInfo 获取服务器公开信息
// @Summary 获取服务器公开信息
// @Description 通过服务器列表ping获取版本、在线人数等公开信息
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Param port query int false "游戏端口" default(25565)
// @Success 200 {object} model.Response{data=mcremote.ServerInfo} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "响应解析失败"
// @Router /api/v1/server/{name}/info [get]
func (c *RconController) GetServerInfo(ctx *gin.Context) {
	name := ctx.Param("name")

	// ping走游戏端口而不是RCON端口
	host := c.Config.DefaultRconHost
	if cfg, ok := c.Manager.GetConfig(name); ok {
		host = cfg.Host
	}
	port, _ := strconv.Atoi(ctx.DefaultQuery("port", "25565"))

	info, err := mcremote.PingServer(host, port)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取服务器信息失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(info))
}

// GetServerLogs 获取RCON活动日志
// @Summary 获取RCON活动日志
// @Description 返回指定服务器RCON活动日志的最后若干行
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "服务器名称"
// @Param lines query int false "行数" default(100)
// @Success 200 {object} model.Response "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "读取日志失败"
// @Router /api/v1/server/{name}/logs [get]
func (c *RconController) GetServerLogs(ctx *gin.Context) {
	name := ctx.Param("name")
	lines, _ := strconv.Atoi(ctx.DefaultQuery("lines", "100"))

	entries, err := c.Manager.TailLog(name, lines)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "读取日志失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"server": name,
		"lines":  entries,
		"count":  len(entries),
	}))
}
