package handlers

import (
	"net/http"

	"cloudsync/database"
	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

// HealthCheck 探活 MySQL 和 Redis，两者任一不可用时上传与同步都无法工作。
func HealthCheck(c *gin.Context) {
	deps := gin.H{"mysql": "ok", "redis": "ok"}
	healthy := true

	if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		deps["mysql"] = "down"
		healthy = false
	}
	if err := database.RedisClient.Ping(c.Request.Context()).Err(); err != nil {
		deps["redis"] = "down"
		healthy = false
	}

	if !healthy {
		utils.ErrorWithData(c, http.StatusServiceUnavailable, "服务依赖不可用", deps)
		return
	}
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "cloudsync",
		"deps":    deps,
	})
}
