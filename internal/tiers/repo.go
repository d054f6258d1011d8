package tiers

import (
	"context"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository exposes pricing tier persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pricing tier repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pricing tier row.
func (r *Repository) Create(ctx context.Context, tier *models.PricingTier) (*models.PricingTier, error) {
	if err := r.db.WithContext(ctx).Create(tier).Error; err != nil {
		return nil, err
	}
	return tier, nil
}

// List returns all pricing tiers, newest first.
func (r *Repository) List(ctx context.Context) ([]models.PricingTier, error) {
	var rows []models.PricingTier
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns the pricing tier with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PricingTier, error) {
	var tier models.PricingTier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

// Update persists mutable pricing tier fields.
func (r *Repository) Update(ctx context.Context, tier *models.PricingTier) error {
	return r.db.WithContext(ctx).Save(tier).Error
}

// Delete removes the pricing tier row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PricingTier{}).Error
}

// FindProductTier returns the active product tier matching the external
// catalog code, or gorm.ErrRecordNotFound.
func (r *Repository) FindProductTier(ctx context.Context, productIdentifier string) (*models.PricingTier, error) {
	var tier models.PricingTier
	err := r.db.WithContext(ctx).
		Where("tier_type = ?", enums.TierProduct).
		Where("product_identifier = ?", productIdentifier).
		Where("is_active = ?", true).
		First(&tier).Error
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

// FindDonationTier returns the active donation tier with the highest
// threshold at or below the paid amount, or gorm.ErrRecordNotFound.
func (r *Repository) FindDonationTier(ctx context.Context, amount decimal.Decimal) (*models.PricingTier, error) {
	var tier models.PricingTier
	err := r.db.WithContext(ctx).
		Where("tier_type = ?", enums.TierDonation).
		Where("is_active = ?", true).
		Where("amount <= ?", amount).
		Order("amount DESC").
		Order("id ASC").
		First(&tier).Error
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
