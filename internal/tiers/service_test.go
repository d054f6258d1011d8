package tiers

import (
	"context"
	"testing"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubTierRepo struct {
	productTier  *models.PricingTier
	donationRows []models.PricingTier
	byID         *models.PricingTier
	created      *models.PricingTier
	updated      *models.PricingTier
	deleted      uuid.UUID
	lastProduct  string
	lastAmount   decimal.Decimal
}

func (s *stubTierRepo) Create(_ context.Context, tier *models.PricingTier) (*models.PricingTier, error) {
	tier.ID = uuid.New()
	s.created = tier
	return tier, nil
}

func (s *stubTierRepo) List(_ context.Context) ([]models.PricingTier, error) {
	return nil, nil
}

func (s *stubTierRepo) FindByID(_ context.Context, id uuid.UUID) (*models.PricingTier, error) {
	if s.byID == nil || s.byID.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byID, nil
}

func (s *stubTierRepo) Update(_ context.Context, tier *models.PricingTier) error {
	s.updated = tier
	return nil
}

func (s *stubTierRepo) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = id
	return nil
}

func (s *stubTierRepo) FindProductTier(_ context.Context, productIdentifier string) (*models.PricingTier, error) {
	s.lastProduct = productIdentifier
	if s.productTier == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.productTier, nil
}

// mirrors the highest-threshold-at-or-below-amount query
func (s *stubTierRepo) FindDonationTier(_ context.Context, amount decimal.Decimal) (*models.PricingTier, error) {
	s.lastAmount = amount
	var best *models.PricingTier
	for i := range s.donationRows {
		row := &s.donationRows[i]
		if row.Amount.GreaterThan(amount) {
			continue
		}
		if best == nil || row.Amount.GreaterThan(best.Amount) {
			best = row
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func donationTier(amount string, days int) models.PricingTier {
	return models.PricingTier{
		ID:           uuid.New(),
		Name:         "donation " + amount,
		TierType:     enums.TierDonation,
		Amount:       decimal.RequireFromString(amount),
		DurationDays: days,
		IsActive:     true,
	}
}

func TestResolveTierProductMatch(t *testing.T) {
	repo := &stubTierRepo{
		productTier: &models.PricingTier{
			ID:           uuid.New(),
			TierType:     enums.TierProduct,
			DurationDays: 365,
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	resolved, err := svc.ResolveTier(context.Background(), ResolveInput{
		ProductIdentifier: "abc123",
		Amount:            decimal.RequireFromString("25.00"),
	})
	if err != nil {
		t.Fatalf("ResolveTier returned error: %v", err)
	}
	if resolved == nil || resolved.DurationDays != 365 {
		t.Fatalf("expected 365 day product match, got %+v", resolved)
	}
	if repo.lastProduct != "abc123" {
		t.Fatalf("expected product lookup for abc123, got %s", repo.lastProduct)
	}
}

func TestResolveTierDonationHighestThreshold(t *testing.T) {
	repo := &stubTierRepo{
		donationRows: []models.PricingTier{
			donationTier("5.00", 30),
			donationTier("10.00", 90),
			donationTier("25.00", 365),
		},
	}
	svc, _ := NewService(repo)

	resolved, err := svc.ResolveTier(context.Background(), ResolveInput{
		Amount: decimal.RequireFromString("12.00"),
	})
	if err != nil {
		t.Fatalf("ResolveTier returned error: %v", err)
	}
	if resolved == nil || resolved.DurationDays != 90 {
		t.Fatalf("expected the 10.00 tier for a 12.00 donation, got %+v", resolved)
	}
}

func TestResolveTierNoMatchIsNotAnError(t *testing.T) {
	svc, _ := NewService(&stubTierRepo{
		donationRows: []models.PricingTier{donationTier("10.00", 90)},
	})

	resolved, err := svc.ResolveTier(context.Background(), ResolveInput{
		Amount: decimal.RequireFromString("3.00"),
	})
	if err != nil {
		t.Fatalf("ResolveTier returned error: %v", err)
	}
	if resolved != nil {
		t.Fatalf("expected no match, got %+v", resolved)
	}
}

func TestResolveTierFlexibleProductPricing(t *testing.T) {
	repo := &stubTierRepo{
		productTier: &models.PricingTier{
			ID:                uuid.New(),
			TierType:          enums.TierProduct,
			DurationDays:      30,
			IsFlexiblePricing: true,
			DaysPerDollar:     decimal.RequireFromString("30"),
		},
	}
	svc, _ := NewService(repo)

	resolved, err := svc.ResolveTier(context.Background(), ResolveInput{
		ProductIdentifier: "abc123",
		Amount:            decimal.RequireFromString("5.00"),
	})
	if err != nil {
		t.Fatalf("ResolveTier returned error: %v", err)
	}
	if resolved == nil || resolved.DurationDays != 150 {
		t.Fatalf("flexible product tier: want 150 days for 5.00 at 30 days per dollar, got %+v", resolved)
	}
}

func TestResolveTierFlexiblePricing(t *testing.T) {
	flexible := donationTier("1.00", 1)
	flexible.IsFlexiblePricing = true
	flexible.DaysPerDollar = decimal.RequireFromString("30")
	repo := &stubTierRepo{donationRows: []models.PricingTier{flexible}}
	svc, _ := NewService(repo)

	resolved, err := svc.ResolveTier(context.Background(), ResolveInput{
		Amount: decimal.RequireFromString("5.00"),
	})
	if err != nil {
		t.Fatalf("ResolveTier returned error: %v", err)
	}
	if resolved == nil || resolved.DurationDays != 150 {
		t.Fatalf("expected 150 days for 5.00 at 30 days per dollar, got %+v", resolved)
	}
}

func TestResolveTierFlexibleFloorsFractionalDays(t *testing.T) {
	flexible := donationTier("1.00", 1)
	flexible.IsFlexiblePricing = true
	flexible.DaysPerDollar = decimal.RequireFromString("30")
	svc, _ := NewService(&stubTierRepo{donationRows: []models.PricingTier{flexible}})

	resolved, err := svc.ResolveTier(context.Background(), ResolveInput{
		Amount: decimal.RequireFromString("5.50"),
	})
	if err != nil {
		t.Fatalf("ResolveTier returned error: %v", err)
	}
	if resolved == nil || resolved.DurationDays != 165 {
		t.Fatalf("expected floor(5.50*30)=165 days, got %+v", resolved)
	}
}

func TestCreateTierValidation(t *testing.T) {
	svc, _ := NewService(&stubTierRepo{})

	tests := []struct {
		name  string
		input TierInput
	}{
		{"missing name", TierInput{TierType: enums.TierDonation, Amount: decimal.RequireFromString("5"), DurationDays: 30}},
		{"invalid type", TierInput{Name: "x", TierType: enums.TierType("weird"), DurationDays: 30}},
		{"product without identifier", TierInput{Name: "x", TierType: enums.TierProduct, DurationDays: 30}},
		{"donation without amount", TierInput{Name: "x", TierType: enums.TierDonation, DurationDays: 30}},
		{"zero duration", TierInput{Name: "x", TierType: enums.TierDonation, Amount: decimal.RequireFromString("5")}},
		{"flexible without rate", TierInput{Name: "x", TierType: enums.TierDonation, Amount: decimal.RequireFromString("5"), IsFlexiblePricing: true}},
	}

	for _, tt := range tests {
		if _, err := svc.CreateTier(context.Background(), tt.input); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation code, got %v", tt.name, err)
		}
	}
}

func TestCreateTierSuccess(t *testing.T) {
	repo := &stubTierRepo{}
	svc, _ := NewService(repo)

	code := "abc123"
	tier, err := svc.CreateTier(context.Background(), TierInput{
		Name:              " Yearly ",
		TierType:          enums.TierProduct,
		DurationDays:      365,
		ProductIdentifier: &code,
	})
	if err != nil {
		t.Fatalf("CreateTier returned error: %v", err)
	}
	if tier.Name != "Yearly" {
		t.Fatalf("expected trimmed name, got %q", tier.Name)
	}
	if !tier.IsActive {
		t.Fatal("new tiers should start active")
	}
	if repo.created == nil {
		t.Fatal("expected tier created")
	}
}

func TestUpdateTierNotFound(t *testing.T) {
	svc, _ := NewService(&stubTierRepo{})
	if _, err := svc.UpdateTier(context.Background(), uuid.New(), TierInput{
		Name:         "x",
		TierType:     enums.TierDonation,
		Amount:       decimal.RequireFromString("5"),
		DurationDays: 30,
	}); err == nil {
		t.Fatal("expected not found error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}
