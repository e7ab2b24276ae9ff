package handlers

import (
	"net/http"

	"cloudsync/models"
	"cloudsync/services"
	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

type StartUploadRequest struct {
	Contents []services.StartContentInput `json:"contents" binding:"required,min=1"`
}

type CompleteUploadRequest struct {
	HasConflict bool                            `json:"has_conflict"`
	Contents    []services.CompleteContentInput `json:"contents" binding:"required,min=1"`
}

type AbortUploadRequest struct {
	Contents []services.AbortContentInput `json:"contents" binding:"required,min=1"`
}

type DetectConflictsRequest struct {
	Contents []services.ClaimedVersion `json:"contents" binding:"required,min=1"`
}

type ResolveConflictRequest struct {
	Resolution string                 `json:"resolution" binding:"required"`
	Items      []services.ResolveItem `json:"items" binding:"required,min=1"`
}

func StartUpload(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	fileID := c.Param("id")

	var req StartUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	plans, err := getServices().Upload.StartUpload(c.Request.Context(), userID, deviceID, fileID, req.Contents)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, plans)
}

func CompleteUpload(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	fileID := c.Param("id")

	var req CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	output, err := getServices().Conflict.CompleteUpload(c.Request.Context(), userID, fileID, deviceID, req.HasConflict, req.Contents)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, output)
}

func AbortUpload(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	fileID := c.Param("id")

	var req AbortUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	err := getServices().Upload.AbortUpload(c.Request.Context(), userID, deviceID, fileID, req.Contents)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{"aborted": len(req.Contents)})
}

func DetectConflicts(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	fileID := c.Param("id")

	var req DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	conflicts, err := getServices().Conflict.DetectConflicts(c.Request.Context(), userID, deviceID, fileID, req.Contents)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{
		"has_conflict": len(conflicts) > 0,
		"conflicts":    conflicts,
	})
}

func ResolveConflict(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	fileID := c.Param("id")

	var req ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	if req.Resolution != models.ResolutionKeepBoth && req.Resolution != models.ResolutionKeepOneVersion {
		utils.Error(c, http.StatusBadRequest, "不支持的冲突解决方式")
		return
	}

	err := getServices().Conflict.ResolveConflict(c.Request.Context(), userID, fileID, deviceID, req.Resolution, req.Items)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{"resolved": len(req.Items)})
}

func DownloadFile(c *gin.Context) {
	userID := c.GetString("user_id")
	fileID := c.Param("id")

	output, err := getServices().Upload.Download(c.Request.Context(), userID, fileID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, output)
}
