package payloads

import (
	"time"

	"github.com/google/uuid"
)

// AccountCreatedEvent is emitted when a new profile registers. The linker
// worker uses the lowercased email to claim unprocessed Ko-fi orders.
type AccountCreatedEvent struct {
	ProfileID uuid.UUID `json:"profileId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

// LicenseMintedEvent is emitted when the webhook pipeline mints a license.
type LicenseMintedEvent struct {
	LicenseID    uuid.UUID  `json:"licenseId"`
	LicenseKey   string     `json:"licenseKey"`
	DurationDays int        `json:"durationDays"`
	OrderID      uuid.UUID  `json:"orderId"`
	Application  *uuid.UUID `json:"applicationId,omitempty"`
}

// OrderLinkedEvent is emitted when a pending order is attached to a profile.
type OrderLinkedEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	ProfileID uuid.UUID `json:"profileId"`
	LicenseID uuid.UUID `json:"licenseId"`
	LinkedAt  time.Time `json:"linkedAt"`
}
