package models

import (
	"time"

	"github.com/google/uuid"
)

// License is a mintable template defining duration and activation capacity.
// CurrentActivations never exceeds MaxActivations; the bound is enforced by
// a conditional update, not application-side reads.
type License struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseKey         string     `gorm:"column:license_key;not null;uniqueIndex"`
	DurationDays       int        `gorm:"column:duration_days;not null"`
	MaxActivations     int        `gorm:"column:max_activations;not null;default:1"`
	CurrentActivations int        `gorm:"column:current_activations;not null;default:0"`
	IsActive           bool       `gorm:"column:is_active;not null;default:true"`
	ApplicationID      *uuid.UUID `gorm:"column:application_id;type:uuid"`
	Notes              *string    `gorm:"column:notes"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
