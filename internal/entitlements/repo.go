package entitlements

import (
	"context"
	"time"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes entitlement (user license) persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an entitlement repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUserAndLicense returns the entitlement binding a user to a license.
func (r *Repository) FindByUserAndLicense(ctx context.Context, userID, licenseID uuid.UUID) (*models.UserLicense, error) {
	var row models.UserLicense
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("license_id = ?", licenseID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a new entitlement row.
func (r *Repository) Create(ctx context.Context, row *models.UserLicense) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// CreateTx inserts a new entitlement row inside an existing transaction.
func (r *Repository) CreateTx(tx *gorm.DB, row *models.UserLicense) error {
	return tx.Create(row).Error
}

// Save persists the full entitlement row.
func (r *Repository) Save(ctx context.Context, row *models.UserLicense) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// FindCurrentForApplication returns the most-recently-expiring active
// entitlement whose license is usable by the application. Unscoped licenses
// match any application.
func (r *Repository) FindCurrentForApplication(ctx context.Context, userID, applicationID uuid.UUID) (*models.UserLicense, error) {
	var row models.UserLicense
	err := r.db.WithContext(ctx).
		Joins("JOIN licenses ON licenses.id = user_licenses.license_id").
		Where("user_licenses.user_id = ?", userID).
		Where("user_licenses.is_active = ?", true).
		Where("licenses.application_id IS NULL OR licenses.application_id = ?", applicationID).
		Order("user_licenses.expires_at DESC").
		Preload("License").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Deactivate flips the entitlement inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.UserLicense{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// TouchLastValidated records a successful validation check.
func (r *Repository) TouchLastValidated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UserLicense{}).
		Where("id = ?", id).
		Update("last_validated", at).Error
}
