package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/D4ffi/allay-app/internal/model"
	"github.com/D4ffi/allay-app/internal/service"
)

// HistoryController 历史记录API控制器
type HistoryController struct {
	History *service.HistoryService
}

// NewHistoryController 创建历史控制器
func NewHistoryController(history *service.HistoryService) *HistoryController {
	return &HistoryController{
		History: history,
	}
}

// ListCommands 查询命令历史
// @Summary 查询命令历史
// @Description 分页查询已执行命令的历史记录，最新的在前
// @Tags 历史记录
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Param server query string false "按服务器过滤"
// @Success 200 {object} model.PagedResponse "查询成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/history/commands [get]
func (c *HistoryController) ListCommands(ctx *gin.Context) {
	page, pageSize := parsePaging(ctx)
	server := ctx.Query("server")

	records, total, err := c.History.ListCommands(page, pageSize, server)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "查询命令历史失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, pageSize, page, records))
}

// ListStatusChanges 查询状态变更历史
// @Summary 查询状态变更历史
// @Description 分页查询服务器状态变更记录，最新的在前
// @Tags 历史记录
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Param server query string false "按服务器过滤"
// @Success 200 {object} model.PagedResponse "查询成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/history/statuses [get]
func (c *HistoryController) ListStatusChanges(ctx *gin.Context) {
	page, pageSize := parsePaging(ctx)
	server := ctx.Query("server")

	records, total, err := c.History.ListStatusChanges(page, pageSize, server)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "查询状态历史失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, pageSize, page, records))
}

// parsePaging 解析分页参数并约束在合理范围内
func parsePaging(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
