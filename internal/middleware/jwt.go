package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/D4ffi/allay-app/internal/config"
	"github.com/D4ffi/allay-app/internal/model"
)

// JWTClaims 控制台令牌载荷
type JWTClaims struct {
	jwt.RegisteredClaims
	TokenID string `json:"token_id"`
}

// GenerateToken 签发控制台访问令牌
func GenerateToken(cfg *config.Config) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.JWTExpireTime)

	// 设置JWT声明
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    cfg.JWTIssuer,
			Subject:   "console",
		},
		TokenID: uuid.New().String(),
	}

	// 创建Token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseToken 解析JWT Token
func ParseToken(tokenString string, cfg *config.Config) (*JWTClaims, error) {
	// 解析Token
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	// 提取Claims
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的Token")
}

// JWTAuth JWT认证中间件。
// 依次尝试Authorization头、Cookie和token查询参数，
// 查询参数是给无法自定义请求头的SSE和WebSocket客户端用的。
func JWTAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString != "" {
			// 处理 Bearer Token
			if strings.HasPrefix(tokenString, "Bearer ") {
				tokenString = strings.TrimPrefix(tokenString, "Bearer ")
			}
		} else {
			// 尝试从Cookie获取
			if cookie, err := c.Cookie("token"); err == nil {
				tokenString = cookie
			} else {
				tokenString = c.Query("token")
			}
		}
		if tokenString == "" {
			c.JSON(401, model.ErrorResponse(401, "未授权: 缺少Token"))
			c.Abort()
			return
		}

		// 解析Token
		claims, err := ParseToken(tokenString, cfg)
		if err != nil {
			c.JSON(401, model.ErrorResponse(401, "未授权: "+err.Error()))
			c.Abort()
			return
		}

		// 将令牌信息保存到上下文中
		c.Set("token_id", claims.TokenID)

		c.Next()
	}
}

// GetCurrentTokenID 从上下文中获取当前令牌ID
func GetCurrentTokenID(c *gin.Context) string {
	tokenID, _ := c.Get("token_id")
	id, _ := tokenID.(string)
	return id
}

// RefreshToken 签发一个新的控制台令牌
func RefreshToken(cfg *config.Config) (string, time.Time, error) {
	return GenerateToken(cfg)
}
