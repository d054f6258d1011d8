package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/licensegate-backend/pkg/enums"
)

// KofiOrder is the audit record of a received Ko-fi payment. Every valid,
// deduplicated webhook is persisted here whether or not a tier matched.
// MessageID carries the unique constraint backing webhook idempotency;
// KofiTransactionID has a partial unique index (Ko-fi omits it sometimes).
type KofiOrder struct {
	ID                         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MessageID                  string                `gorm:"column:message_id;not null;uniqueIndex"`
	KofiTransactionID          *string               `gorm:"column:kofi_transaction_id"`
	Timestamp                  string                `gorm:"column:timestamp;not null"`
	Type                       enums.KofiPaymentType `gorm:"column:type;not null"`
	IsPublic                   bool                  `gorm:"column:is_public;not null;default:false"`
	FromName                   *string               `gorm:"column:from_name"`
	Message                    *string               `gorm:"column:message"`
	Amount                     decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	URL                        string                `gorm:"column:url;not null"`
	Email                      string                `gorm:"column:email;not null;index"`
	Currency                   string                `gorm:"column:currency;not null"`
	IsSubscriptionPayment      bool                  `gorm:"column:is_subscription_payment;not null;default:false"`
	IsFirstSubscriptionPayment bool                  `gorm:"column:is_first_subscription_payment;not null;default:false"`
	ShopItems                  json.RawMessage       `gorm:"column:shop_items;type:jsonb"`
	TierName                   *string               `gorm:"column:tier_name"`
	Shipping                   json.RawMessage       `gorm:"column:shipping;type:jsonb"`
	LicenseID                  *uuid.UUID            `gorm:"column:license_id;type:uuid"`
	UserID                     *uuid.UUID            `gorm:"column:user_id;type:uuid"`
	Processed                  bool                  `gorm:"column:processed;not null;default:false"`
	CreatedAt                  time.Time             `gorm:"column:created_at;autoCreateTime"`

	License *License `gorm:"foreignKey:LicenseID"`
}
