package entitlements

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type licensesRepository interface {
	FindByKeyForApplication(ctx context.Context, licenseKey string, applicationID uuid.UUID) (*models.License, error)
	IncrementActivationsTx(tx *gorm.DB, id uuid.UUID) (bool, error)
}

type entitlementsRepository interface {
	FindByUserAndLicense(ctx context.Context, userID, licenseID uuid.UUID) (*models.UserLicense, error)
	CreateTx(tx *gorm.DB, row *models.UserLicense) error
	Save(ctx context.Context, row *models.UserLicense) error
	FindCurrentForApplication(ctx context.Context, userID, applicationID uuid.UUID) (*models.UserLicense, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	TouchLastValidated(ctx context.Context, id uuid.UUID, at time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes license activation and validation semantics.
type Service interface {
	Activate(ctx context.Context, userID, applicationID uuid.UUID, licenseKey string) (*ActivationResult, error)
	Validate(ctx context.Context, userID, applicationID uuid.UUID, applicationName string) (*ValidationResult, error)
}

type service struct {
	licenses     licensesRepository
	entitlements entitlementsRepository
	tx           txRunner
	logg         *logger.Logger
	validations  *metrics.ValidationMetrics
	now          func() time.Time
}

// ActivationResult is the activation protocol outcome. A false Success is an
// expected outcome, not a fault.
type ActivationResult struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// LicenseInfo is the license portion of a successful validation response.
type LicenseInfo struct {
	ID           uuid.UUID `json:"id"`
	Key          string    `json:"key"`
	DurationDays int       `json:"durationDays"`
}

// ApplicationInfo is the application portion of a successful validation response.
type ApplicationInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ValidationResult answers whether the user is currently entitled for the
// application.
type ValidationResult struct {
	IsValid       bool             `json:"isValid"`
	Message       string           `json:"message,omitempty"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
	DaysRemaining int              `json:"daysRemaining,omitempty"`
	License       *LicenseInfo     `json:"license,omitempty"`
	Application   *ApplicationInfo `json:"application,omitempty"`
}

const (
	msgInvalidLicense  = "Invalid license or not for this application"
	msgMaxActivations  = "Maximum activations reached for this license"
	msgActivated       = "License activated successfully"
	msgNoActiveLicense = "No active license found for this application"
	msgLicenseExpired  = "License has expired"
)

// NewService builds an entitlement service backed by the provided repositories.
func NewService(licensesRepo licensesRepository, entitlementsRepo entitlementsRepository, tx txRunner, logg *logger.Logger, validations *metrics.ValidationMetrics) (Service, error) {
	if licensesRepo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if entitlementsRepo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		licenses:     licensesRepo,
		entitlements: entitlementsRepo,
		tx:           tx,
		logg:         logg,
		validations:  validations,
		now:          time.Now,
	}, nil
}

// Activate binds the license to the user. Re-activation of an existing
// binding refreshes it without consuming another activation slot; first
// activations claim a slot through a bounded atomic increment.
func (s *service) Activate(ctx context.Context, userID, applicationID uuid.UUID, licenseKey string) (*ActivationResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if applicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application identity missing")
	}
	licenseKey = strings.TrimSpace(licenseKey)
	if licenseKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "License key is required")
	}

	license, err := s.licenses.FindByKeyForApplication(ctx, licenseKey, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ActivationResult{Success: false, Message: msgInvalidLicense}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	if license.CurrentActivations >= license.MaxActivations {
		return &ActivationResult{Success: false, Message: msgMaxActivations}, nil
	}

	now := s.now()
	expiresAt := now.AddDate(0, 0, license.DurationDays)

	existing, err := s.entitlements.FindByUserAndLicense(ctx, userID, license.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup entitlement")
	}

	if existing != nil {
		existing.IsActive = true
		existing.ExpiresAt = expiresAt
		existing.LastValidated = &now
		if err := s.entitlements.Save(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh entitlement")
		}
		return &ActivationResult{Success: true, Message: msgActivated, ExpiresAt: &expiresAt}, nil
	}

	capped := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, incErr := s.licenses.IncrementActivationsTx(tx, license.ID)
		if incErr != nil {
			return incErr
		}
		if !claimed {
			capped = true
			return nil
		}
		return s.entitlements.CreateTx(tx, &models.UserLicense{
			UserID:    userID,
			LicenseID: license.ID,
			ExpiresAt: expiresAt,
			IsActive:  true,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate license")
	}
	if capped {
		return &ActivationResult{Success: false, Message: msgMaxActivations}, nil
	}

	return &ActivationResult{Success: true, Message: msgActivated, ExpiresAt: &expiresAt}, nil
}

// Validate reports the current entitlement for (user, application). Expiry
// is applied lazily here; the expiry flip and last_validated touch are both
// best-effort writes.
func (s *service) Validate(ctx context.Context, userID, applicationID uuid.UUID, applicationName string) (*ValidationResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if applicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application identity missing")
	}

	row, err := s.entitlements.FindCurrentForApplication(ctx, userID, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.validations.IncOutcome("missing")
			return &ValidationResult{IsValid: false, Message: msgNoActiveLicense}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup entitlement")
	}

	now := s.now()
	if row.ExpiresAt.Before(now) {
		if err := s.entitlements.Deactivate(ctx, row.ID); err != nil && s.logg != nil {
			s.logg.Error(ctx, "deactivate expired entitlement", err)
		}
		s.validations.IncOutcome("expired")
		expiresAt := row.ExpiresAt
		return &ValidationResult{IsValid: false, Message: msgLicenseExpired, ExpiresAt: &expiresAt}, nil
	}

	if err := s.entitlements.TouchLastValidated(ctx, row.ID, now); err != nil && s.logg != nil {
		s.logg.Error(ctx, "touch last_validated", err)
	}

	result := &ValidationResult{
		IsValid:       true,
		ExpiresAt:     &row.ExpiresAt,
		DaysRemaining: daysRemaining(now, row.ExpiresAt),
		Application:   &ApplicationInfo{ID: applicationID, Name: applicationName},
	}
	if row.License != nil {
		result.License = &LicenseInfo{
			ID:           row.License.ID,
			Key:          row.License.LicenseKey,
			DurationDays: row.License.DurationDays,
		}
	}
	s.validations.IncOutcome("valid")
	return result, nil
}

// daysRemaining uses ceiling semantics: a license expiring in 30 minutes
// reports 1, not 0.
func daysRemaining(now, expiresAt time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}
