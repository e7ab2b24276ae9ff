package models

import "time"

type User struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name      string     `gorm:"type:varchar(255)" json:"name"`
	Status    string     `gorm:"type:varchar(30);default:ACTIVE;index" json:"status"`
	DeleteAt  *time.Time `gorm:"index" json:"delete_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
