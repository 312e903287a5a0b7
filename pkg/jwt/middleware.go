package jwt

import (
	"strings"

	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserIDKey 用户ID在gin.Context中的键名
const ContextUserIDKey = "user_id"

// BearerToken 从 Authorization: Bearer <token> 中提取令牌
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// AuthMiddleware JWT认证中间件
// 验证token并将用户ID存入gin.Context
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Unauthorized(c, "缺少Authorization请求头")
			c.Abort()
			return
		}

		tokenString, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "Authorization格式错误，应为Bearer <token>")
			c.Abort()
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("JWT验证失败",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			response.Unauthorized(c, "token无效或已过期")
			c.Abort()
			return
		}

		// 将用户ID存入Context
		c.Set(ContextUserIDKey, claims.Subject)

		c.Next()
	}
}

// GetUserID 从gin.Context中获取用户ID
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
