package tiers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type tiersRepository interface {
	Create(ctx context.Context, tier *models.PricingTier) (*models.PricingTier, error)
	List(ctx context.Context) ([]models.PricingTier, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PricingTier, error)
	Update(ctx context.Context, tier *models.PricingTier) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindProductTier(ctx context.Context, productIdentifier string) (*models.PricingTier, error)
	FindDonationTier(ctx context.Context, amount decimal.Decimal) (*models.PricingTier, error)
}

// Service exposes pricing tier management and payment-to-duration resolution.
type Service interface {
	CreateTier(ctx context.Context, input TierInput) (*models.PricingTier, error)
	ListTiers(ctx context.Context) ([]models.PricingTier, error)
	GetTier(ctx context.Context, id uuid.UUID) (*models.PricingTier, error)
	UpdateTier(ctx context.Context, id uuid.UUID, input TierInput) (*models.PricingTier, error)
	DeleteTier(ctx context.Context, id uuid.UUID) error
	ResolveTier(ctx context.Context, input ResolveInput) (*ResolvedTier, error)
}

type service struct {
	repo tiersRepository
}

// TierInput holds the fields accepted when creating or updating a tier.
type TierInput struct {
	Name              string
	TierType          enums.TierType
	Amount            decimal.Decimal
	DurationDays      int
	ProductIdentifier *string
	IsFlexiblePricing bool
	DaysPerDollar     decimal.Decimal
	ApplicationID     *uuid.UUID
	IsActive          *bool
}

// ResolveInput describes a received payment for tier resolution. A non-empty
// ProductIdentifier routes to the product path; everything else is treated as
// a donation.
type ResolveInput struct {
	ProductIdentifier string
	Amount            decimal.Decimal
}

// ResolvedTier pairs the matched tier with the effective license duration.
// Flexible tiers scale the duration by the paid amount.
type ResolvedTier struct {
	Tier         *models.PricingTier
	DurationDays int
}

// NewService builds a pricing tier service backed by the provided repository.
func NewService(repo tiersRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tier repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateTier(ctx context.Context, input TierInput) (*models.PricingTier, error) {
	if err := validateTierInput(input); err != nil {
		return nil, err
	}

	tier := &models.PricingTier{
		Name:              strings.TrimSpace(input.Name),
		TierType:          input.TierType,
		Amount:            input.Amount,
		DurationDays:      input.DurationDays,
		ProductIdentifier: input.ProductIdentifier,
		IsFlexiblePricing: input.IsFlexiblePricing,
		DaysPerDollar:     input.DaysPerDollar,
		ApplicationID:     input.ApplicationID,
		IsActive:          true,
	}
	if input.IsActive != nil {
		tier.IsActive = *input.IsActive
	}

	created, err := s.repo.Create(ctx, tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pricing tier")
	}
	return created, nil
}

func (s *service) ListTiers(ctx context.Context) ([]models.PricingTier, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pricing tiers")
	}
	return rows, nil
}

func (s *service) GetTier(ctx context.Context, id uuid.UUID) (*models.PricingTier, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier id is required")
	}
	tier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pricing tier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup pricing tier")
	}
	return tier, nil
}

func (s *service) UpdateTier(ctx context.Context, id uuid.UUID, input TierInput) (*models.PricingTier, error) {
	if err := validateTierInput(input); err != nil {
		return nil, err
	}
	tier, err := s.GetTier(ctx, id)
	if err != nil {
		return nil, err
	}

	tier.Name = strings.TrimSpace(input.Name)
	tier.TierType = input.TierType
	tier.Amount = input.Amount
	tier.DurationDays = input.DurationDays
	tier.ProductIdentifier = input.ProductIdentifier
	tier.IsFlexiblePricing = input.IsFlexiblePricing
	tier.DaysPerDollar = input.DaysPerDollar
	tier.ApplicationID = input.ApplicationID
	if input.IsActive != nil {
		tier.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, tier); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pricing tier")
	}
	return tier, nil
}

func (s *service) DeleteTier(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetTier(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete pricing tier")
	}
	return nil
}

// ResolveTier maps a payment to a tier and duration. A nil result with a nil
// error means no tier matched; the caller records the order without minting.
func (s *service) ResolveTier(ctx context.Context, input ResolveInput) (*ResolvedTier, error) {
	if code := strings.TrimSpace(input.ProductIdentifier); code != "" {
		tier, err := s.repo.FindProductTier(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product tier")
		}
		return &ResolvedTier{Tier: tier, DurationDays: effectiveDuration(tier, input.Amount)}, nil
	}

	tier, err := s.repo.FindDonationTier(ctx, input.Amount)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup donation tier")
	}
	return &ResolvedTier{Tier: tier, DurationDays: effectiveDuration(tier, input.Amount)}, nil
}

// effectiveDuration scales flexible tiers by the paid amount, floored to
// whole days. Fixed tiers keep their configured duration.
func effectiveDuration(tier *models.PricingTier, amount decimal.Decimal) int {
	if tier.IsFlexiblePricing && tier.DaysPerDollar.IsPositive() {
		if scaled := int(amount.Mul(tier.DaysPerDollar).IntPart()); scaled > 0 {
			return scaled
		}
	}
	return tier.DurationDays
}

func validateTierInput(input TierInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.TierType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid tier type")
	}
	switch input.TierType {
	case enums.TierProduct:
		if input.ProductIdentifier == nil || strings.TrimSpace(*input.ProductIdentifier) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product tiers require product_identifier")
		}
	case enums.TierDonation:
		if !input.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "donation tiers require a positive amount")
		}
	}
	if input.IsFlexiblePricing {
		if !input.DaysPerDollar.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "flexible pricing requires a positive days_per_dollar")
		}
	} else if input.DurationDays <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "duration_days must be positive")
	}
	return nil
}
