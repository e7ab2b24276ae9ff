package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloudsync/models"
	"cloudsync/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (models.User, error)
	UpdateProfile(ctx context.Context, userID string, deviceID string, name string) (models.User, error)
}

type userService struct {
	txManager TxManager
	users     repositories.UserRepository
	histories repositories.UserHistoryRepository
}

func NewUserService(txManager TxManager, users repositories.UserRepository, histories repositories.UserHistoryRepository) UserService {
	return &userService{txManager: txManager, users: users, histories: histories}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetLiveByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, newAppError(http.StatusNotFound, "用户不存在", nil)
		}
		return models.User{}, newAppError(http.StatusInternalServerError, "查询用户失败", err)
	}
	return user, nil
}

// UpdateProfile 更新用户资料并写入用户级审计流，
// 其他设备通过同步接口的首页感知到这次变更。
func (s *userService) UpdateProfile(ctx context.Context, userID string, deviceID string, name string) (models.User, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return models.User{}, err
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.users.UpdateByID(ctx, tx, userID, map[string]interface{}{"name": name}); err != nil {
			return err
		}
		return s.histories.Create(ctx, tx, &models.UserHistory{
			ID:        uuid.NewString(),
			UserID:    userID,
			Action:    models.ActionUpdate,
			DeviceID:  deviceID,
			CreatedAt: time.Now(),
		})
	})
	if err != nil {
		return models.User{}, newAppError(http.StatusInternalServerError, "更新用户资料失败", err)
	}

	return s.GetProfile(ctx, userID)
}
