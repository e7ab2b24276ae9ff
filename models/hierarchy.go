package models

import "time"

// HierarchyEntry 是用户目录树中的一个节点。目录路径以 / 结尾，文件路径不以 / 结尾。
// 同一用户的存活（delete_at IS NULL）路径必须唯一，由服务层在写入前校验。
type HierarchyEntry struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string     `gorm:"type:varchar(36);not null;index:idx_hierarchy_user_path" json:"user_id"`
	Path      string     `gorm:"type:varchar(1000);not null;index:idx_hierarchy_user_path" json:"path"`
	FileID    *string    `gorm:"type:varchar(36);index" json:"file_id,omitempty"`
	Status    string     `gorm:"type:varchar(30);not null;default:ACTIVE" json:"status"`
	Type      *string    `gorm:"type:varchar(100)" json:"type,omitempty"`
	DeleteAt  *time.Time `gorm:"index" json:"delete_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	File *File `gorm:"foreignKey:FileID" json:"file,omitempty"`
}

func (HierarchyEntry) TableName() string {
	return "hierarchies"
}

// IsFile 表示该节点挂载了文件记录。
func (h *HierarchyEntry) IsFile() bool {
	return h.FileID != nil
}
