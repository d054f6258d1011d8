package licenses

import (
	"context"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes license persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new license row.
func (r *Repository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// CreateTx inserts a new license row inside an existing transaction.
func (r *Repository) CreateTx(tx *gorm.DB, license *models.License) (*models.License, error) {
	if err := tx.Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// FindByID returns the license with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&license).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// FindByKeyForApplication returns the active license matching the key within
// the application scope. Unscoped licenses (null application_id) match any
// application; scoped licenses only match their own.
func (r *Repository) FindByKeyForApplication(ctx context.Context, licenseKey string, applicationID uuid.UUID) (*models.License, error) {
	var license models.License
	err := r.db.WithContext(ctx).
		Where("license_key = ?", licenseKey).
		Where("is_active = ?", true).
		Where("application_id IS NULL OR application_id = ?", applicationID).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// IncrementActivations bumps current_activations iff the cap allows it. The
// bound lives in the WHERE clause so concurrent activations cannot overshoot.
func (r *Repository) IncrementActivations(ctx context.Context, id uuid.UUID) (bool, error) {
	return incrementActivations(r.db.WithContext(ctx), id)
}

// IncrementActivationsTx is IncrementActivations inside an existing transaction.
func (r *Repository) IncrementActivationsTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	return incrementActivations(tx, id)
}

func incrementActivations(db *gorm.DB, id uuid.UUID) (bool, error) {
	res := db.Model(&models.License{}).
		Where("id = ?", id).
		Where("current_activations < max_activations").
		Update("current_activations", gorm.Expr("current_activations + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
