package middleware

import (
	"time"

	"cloudsync/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger 在 debug 级别记录每个请求，带上认证后的用户和设备，方便排查多端同步问题。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !logger.IsDebugEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		rawQuery := c.Request.URL.RawQuery

		c.Next()

		if rawQuery != "" {
			path = path + "?" + rawQuery
		}

		userID := c.GetString("user_id")
		if userID == "" {
			userID = "-"
		}
		deviceID := c.GetString("device_id")
		if deviceID == "" {
			deviceID = "-"
		}

		logger.Debugf(
			"%s | %d | %s | %s/%s | %s",
			c.Request.Method,
			c.Writer.Status(),
			time.Since(start),
			userID,
			deviceID,
			path,
		)
	}
}
