package handlers

import (
	"net/http"

	"cloudsync/services"
	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

type CreateHierarchyRequest struct {
	Path string  `json:"path" binding:"required,max=1000"`
	Size int64   `json:"size"`
	Type *string `json:"type"`
}

type MoveHierarchyRequest struct {
	OldPath string `json:"old_path" binding:"required,max=1000"`
	NewPath string `json:"new_path" binding:"required,max=1000"`
	IsFile  bool   `json:"is_file"`
}

type BatchImportRequest struct {
	OrganizationID string                     `json:"organization_id"`
	Items          []services.BatchImportItem `json:"items" binding:"required,min=1"`
}

func GetTree(c *gin.Context) {
	userID := c.GetString("user_id")
	tree, err := getServices().Hierarchy.GetTree(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, tree)
}

func GetTrashTree(c *gin.Context) {
	userID := c.GetString("user_id")
	tree, err := getServices().Hierarchy.GetTrashTree(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, tree)
}

func GetHierarchy(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")
	entry, err := getServices().Hierarchy.GetByID(c.Request.Context(), userID, id)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, entry)
}

func GetHierarchyByPath(c *gin.Context) {
	userID := c.GetString("user_id")
	p := c.Query("path")
	if p == "" {
		utils.Error(c, http.StatusBadRequest, "缺少 path 参数")
		return
	}
	entry, err := getServices().Hierarchy.GetByPath(c.Request.Context(), userID, p)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, entry)
}

func CreateHierarchy(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")

	var req CreateHierarchyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	entry, err := getServices().Hierarchy.Create(c.Request.Context(), userID, deviceID, req.Path, req.Size, req.Type)
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, entry)
}

func MoveHierarchy(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")

	var req MoveHierarchyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	moved, err := getServices().Hierarchy.UpdatePath(c.Request.Context(), userID, deviceID, req.NewPath, req.OldPath, req.IsFile)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, moved)
}

func DeleteHierarchy(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	id := c.Param("id")
	permanent := c.Query("permanent") == "true"

	affected, err := getServices().Hierarchy.Delete(c.Request.Context(), userID, deviceID, id, permanent)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, affected)
}

func RecoverHierarchy(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")
	id := c.Param("id")

	affected, err := getServices().Hierarchy.Recover(c.Request.Context(), userID, deviceID, id)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, affected)
}

func BatchImportHierarchies(c *gin.Context) {
	userID := c.GetString("user_id")
	deviceID := c.GetString("device_id")

	var req BatchImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	err := getServices().Hierarchy.CreateBatch(c.Request.Context(), userID, deviceID, req.OrganizationID, req.Items)
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, gin.H{"imported": len(req.Items)})
}
