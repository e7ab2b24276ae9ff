package middleware

import (
	"net/http"
	"strings"

	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 解析请求方的用户与设备标识并写入上下文。
// 身份签发由外部服务负责，这里只信任令牌内容。
// 冲突检测和同步都按设备区分，缺 device_id 的令牌直接拒绝。
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(c, http.StatusUnauthorized, "未提供认证令牌")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.Error(c, http.StatusUnauthorized, "认证令牌格式错误")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "认证令牌无效或已过期")
			c.Abort()
			return
		}
		if claims.UserID == "" || claims.DeviceID == "" {
			utils.Error(c, http.StatusUnauthorized, "认证令牌缺少用户或设备标识")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("device_id", claims.DeviceID)
		c.Next()
	}
}
