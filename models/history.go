package models

import "time"

// 审计流只追加不更新，同步轮询接口以它们为唯一输入。

type HierarchyHistory struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	HierarchyID string    `gorm:"type:varchar(36);not null;index" json:"hierarchy_id"`
	UserID      string    `gorm:"type:varchar(36);not null;index:idx_hierarchy_history_feed" json:"user_id"`
	Action      string    `gorm:"type:varchar(50);not null" json:"action"`
	DeviceID    string    `gorm:"type:varchar(36)" json:"device_id"`
	Path        string    `gorm:"type:varchar(1000)" json:"path"`
	Status      string    `gorm:"type:varchar(30)" json:"status"`
	CreatedAt   time.Time `gorm:"index:idx_hierarchy_history_feed" json:"created_at"`
}

func (HierarchyHistory) TableName() string {
	return "hierarchy_histories"
}

type FileContentHistory struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FileID        string    `gorm:"type:varchar(36);not null;index" json:"file_id"`
	FileContentID string    `gorm:"type:varchar(36);not null;index" json:"file_content_id"`
	UserID        string    `gorm:"type:varchar(36);not null;index:idx_content_history_feed" json:"user_id"`
	Action        string    `gorm:"type:varchar(50);not null" json:"action"`
	DeviceID      string    `gorm:"type:varchar(36);index" json:"device_id"`
	Name          string    `gorm:"type:varchar(255)" json:"name"`
	Size          int64     `json:"size"`
	Version       string    `gorm:"type:varchar(255);index" json:"version"`
	Status        string    `gorm:"type:varchar(30);index" json:"status"`
	CreatedAt     time.Time `gorm:"index:idx_content_history_feed" json:"created_at"`
}

func (FileContentHistory) TableName() string {
	return "file_content_histories"
}

type UserHistory struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index:idx_user_history_feed" json:"user_id"`
	Action    string    `gorm:"type:varchar(50);not null" json:"action"`
	DeviceID  string    `gorm:"type:varchar(36)" json:"device_id"`
	CreatedAt time.Time `gorm:"index:idx_user_history_feed" json:"created_at"`
}

func (UserHistory) TableName() string {
	return "user_histories"
}
