package licenses

import (
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/security"
	"github.com/google/uuid"
)

// DefaultSourceTag prefixes keys minted from payment webhooks.
const DefaultSourceTag = "KOFI"

// MintInput describes the license to mint. MaxActivations defaults to 1.
type MintInput struct {
	DurationDays   int
	MaxActivations int
	ApplicationID  *uuid.UUID
	Notes          *string
	SourceTag      string
}

// NewMintedLicense builds an unsaved license with a freshly generated key.
func NewMintedLicense(input MintInput) (*models.License, error) {
	if input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration_days must be positive")
	}

	tag := input.SourceTag
	if tag == "" {
		tag = DefaultSourceTag
	}
	key, err := security.GenerateLicenseKey(tag)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate license key")
	}

	maxActivations := input.MaxActivations
	if maxActivations <= 0 {
		maxActivations = 1
	}

	return &models.License{
		LicenseKey:         key,
		DurationDays:       input.DurationDays,
		MaxActivations:     maxActivations,
		CurrentActivations: 0,
		IsActive:           true,
		ApplicationID:      input.ApplicationID,
		Notes:              input.Notes,
	}, nil
}
