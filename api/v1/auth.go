package v1

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/D4ffi/allay-app/internal/config"
	"github.com/D4ffi/allay-app/internal/middleware"
	"github.com/D4ffi/allay-app/internal/model"
)

// AuthController 控制台认证API控制器
type AuthController struct {
	Config *config.Config
}

// NewAuthController 创建认证控制器
func NewAuthController(cfg *config.Config) *AuthController {
	return &AuthController{
		Config: cfg,
	}
}

// Login 控制台登录
// @Summary 控制台登录
// @Description 用控制台密码换取访问Token
// @Tags 认证
// @Accept json
// @Produce json
// @Param login body model.LoginRequest true "登录信息"
// @Success 200 {object} model.Response{data=model.LoginResponse} "登录成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 401 {object} model.Response "密码错误"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req model.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	if !c.verifyPassword(req.Password) {
		ctx.JSON(http.StatusUnauthorized, model.ErrorResponse(http.StatusUnauthorized, "密码错误"))
		return
	}

	token, expiresAt, err := middleware.GenerateToken(c.Config)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "签发Token失败: "+err.Error()))
		return
	}

	// 设置JWT Token到Cookie
	ctx.SetCookie(
		"token",
		token,
		int(c.Config.JWTExpireTime.Seconds()),
		"/",
		"",
		c.Config.JWTCookieSecure,
		c.Config.JWTCookieHTTPOnly,
	)

	ctx.JSON(http.StatusOK, model.SuccessResponse(model.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	}))
}

// Refresh 刷新令牌
// @Summary 刷新令牌
// @Description 在旧Token还有效时换取一个新Token
// @Tags 认证
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=model.LoginResponse} "刷新成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/auth/refresh [post]
func (c *AuthController) Refresh(ctx *gin.Context) {
	token, expiresAt, err := middleware.RefreshToken(c.Config)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "签发Token失败: "+err.Error()))
		return
	}

	ctx.SetCookie(
		"token",
		token,
		int(c.Config.JWTExpireTime.Seconds()),
		"/",
		"",
		c.Config.JWTCookieSecure,
		c.Config.JWTCookieHTTPOnly,
	)

	ctx.JSON(http.StatusOK, model.SuccessResponse(model.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	}))
}

// verifyPassword 校验控制台密码，配置了bcrypt哈希时优先使用
func (c *AuthController) verifyPassword(password string) bool {
	if c.Config.ConsolePasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.Config.ConsolePasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Config.ConsolePassword), []byte(password)) == 1
}
