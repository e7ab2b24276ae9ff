package handlers

import (
	"net/http"

	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

func GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	user, err := getServices().User.GetProfile(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, user)
}

func UpdateProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	user, err := getServices().User.UpdateProfile(c.Request.Context(), userID, deviceID, req.Name)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, user)
}
