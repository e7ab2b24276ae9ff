package handlers

import (
	"net/http"
	"time"

	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

func PollChanges(c *gin.Context) {
	userID := c.GetString("user_id")

	sinceStr := c.Query("since")
	if sinceStr == "" {
		utils.Error(c, http.StatusBadRequest, "缺少 since 参数")
		return
	}
	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "since 参数格式无效")
		return
	}
	token := c.Query("token")

	feed, err := getServices().Sync.Poll(c.Request.Context(), userID, since, token)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, feed)
}
