package handlers

import (
	"errors"

	"cloudsync/logger"
	"cloudsync/services"
	"cloudsync/utils"

	"github.com/gin-gonic/gin"
)

var appServices *services.Container

func SetServices(container *services.Container) {
	appServices = container
}

func getServices() *services.Container {
	if appServices == nil {
		panic("services container is not initialized")
	}
	return appServices
}

// respondServiceError 把服务层错误翻译成统一响应。
// 非 AppError 的错误一律 500，细节只进日志不出接口。
func respondServiceError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		if appErr.Data != nil {
			utils.ErrorWithData(c, appErr.HTTPCode, appErr.Message, appErr.Data)
		} else {
			utils.Error(c, appErr.HTTPCode, appErr.Message)
		}
		return true
	}
	logger.Warnf("未归类的服务错误: %v", err)
	utils.Error(c, 500, "服务内部错误")
	return true
}
