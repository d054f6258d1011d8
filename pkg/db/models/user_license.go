package models

import (
	"time"

	"github.com/google/uuid"
)

// UserLicense binds a license to a user: the entitlement. A user holds at
// most one row per license; re-activation refreshes the existing row.
type UserLicense struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_user_licenses_user_license"`
	LicenseID     uuid.UUID  `gorm:"column:license_id;type:uuid;not null;uniqueIndex:idx_user_licenses_user_license"`
	ExpiresAt     time.Time  `gorm:"column:expires_at;not null"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	LastValidated *time.Time `gorm:"column:last_validated"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	License *License `gorm:"foreignKey:LicenseID"`
}
