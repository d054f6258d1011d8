package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/licensegate-backend/pkg/enums"
)

// PricingTier maps a payment signal to a license duration. Product tiers
// match on the external catalog code; donation tiers match on the highest
// threshold at or below the paid amount.
type PricingTier struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	TierType          enums.TierType  `gorm:"column:tier_type;type:tier_type;not null"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	DurationDays      int             `gorm:"column:duration_days;not null"`
	ProductIdentifier *string         `gorm:"column:product_identifier"`
	IsFlexiblePricing bool            `gorm:"column:is_flexible_pricing;not null;default:false"`
	DaysPerDollar     decimal.Decimal `gorm:"column:days_per_dollar;type:numeric(12,2);not null;default:0"`
	ApplicationID     *uuid.UUID      `gorm:"column:application_id;type:uuid"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
