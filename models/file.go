package models

import "time"

// File 表示文件内容的所有权，与其在目录树中的位置无关。
type File struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Size        int64      `gorm:"not null;default:0" json:"size"`
	Status      string     `gorm:"type:varchar(30);not null;default:CLOSED" json:"status"`
	HasConflict bool       `gorm:"not null;default:false" json:"has_conflict"`
	Type        *string    `gorm:"type:varchar(100)" json:"type,omitempty"`
	DeleteAt    *time.Time `gorm:"index" json:"delete_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Contents []FileContent `gorm:"foreignKey:FileID" json:"contents,omitempty"`
}

// FileContent 是文件内部的一个命名内容块（如主体数据、缩略图），
// version 为对象存储在每次成功完成上传时下发的版本令牌。
type FileContent struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	FileID    string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_content_file_name" json:"file_id"`
	Name      string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_content_file_name" json:"name"`
	Size      int64      `gorm:"not null;default:0" json:"size"`
	Version   string     `gorm:"type:varchar(255)" json:"version"`
	Status    string     `gorm:"type:varchar(30);not null;default:UPLOADING" json:"status"`
	DeviceID  string     `gorm:"type:varchar(36)" json:"device_id"`
	DeleteAt  *time.Time `gorm:"index" json:"delete_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (FileContent) TableName() string {
	return "file_contents"
}
