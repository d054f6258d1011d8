package models

import (
	"time"

	"github.com/google/uuid"
)

// Application identifies a license-consuming client. The secret is issued
// once at creation and compared in constant time on every request.
type Application struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	AppKey      string    `gorm:"column:app_key;not null;uniqueIndex"`
	AppSecret   string    `gorm:"column:app_secret;not null"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
