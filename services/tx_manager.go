package services

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 把一次树变更、状态迁移和对应的历史记录圈进同一个事务。
// 仓储方法接收的 tx 为 nil 时走各自的默认连接。
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}
