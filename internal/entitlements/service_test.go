package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubLicensesRepo struct {
	license       *models.License
	findErr       error
	increments    int
	incrementOK   bool
	incrementErr  error
	lastLicenseID uuid.UUID
}

func (s *stubLicensesRepo) FindByKeyForApplication(_ context.Context, licenseKey string, _ uuid.UUID) (*models.License, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.license == nil || s.license.LicenseKey != licenseKey {
		return nil, gorm.ErrRecordNotFound
	}
	return s.license, nil
}

func (s *stubLicensesRepo) IncrementActivationsTx(_ *gorm.DB, id uuid.UUID) (bool, error) {
	s.increments++
	s.lastLicenseID = id
	if s.incrementErr != nil {
		return false, s.incrementErr
	}
	return s.incrementOK, nil
}

type stubEntitlementsRepo struct {
	existing    *models.UserLicense
	current     *models.UserLicense
	created     *models.UserLicense
	saved       *models.UserLicense
	deactivated uuid.UUID
	touched     uuid.UUID
	touchErr    error
}

func (s *stubEntitlementsRepo) FindByUserAndLicense(_ context.Context, _, _ uuid.UUID) (*models.UserLicense, error) {
	if s.existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.existing, nil
}

func (s *stubEntitlementsRepo) CreateTx(_ *gorm.DB, row *models.UserLicense) error {
	s.created = row
	return nil
}

func (s *stubEntitlementsRepo) Save(_ context.Context, row *models.UserLicense) error {
	s.saved = row
	return nil
}

func (s *stubEntitlementsRepo) FindCurrentForApplication(_ context.Context, _, _ uuid.UUID) (*models.UserLicense, error) {
	if s.current == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.current, nil
}

func (s *stubEntitlementsRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	s.deactivated = id
	return nil
}

func (s *stubEntitlementsRepo) TouchLastValidated(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.touched = id
	return s.touchErr
}

type stubTx struct {
	calls int
}

func (s *stubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	return fn(nil)
}

func newEntitlementService(t *testing.T, licenses *stubLicensesRepo, repo *stubEntitlementsRepo) Service {
	t.Helper()
	svc, err := NewService(licenses, repo, &stubTx{}, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func testLicense(durationDays, maxActivations, current int) *models.License {
	return &models.License{
		ID:                 uuid.New(),
		LicenseKey:         "KOFI-AAAAA-BBBBB-CCCCC-DDDDD",
		DurationDays:       durationDays,
		MaxActivations:     maxActivations,
		CurrentActivations: current,
		IsActive:           true,
	}
}

func TestActivateUnknownKey(t *testing.T) {
	svc := newEntitlementService(t, &stubLicensesRepo{}, &stubEntitlementsRepo{})

	result, err := svc.Activate(context.Background(), uuid.New(), uuid.New(), "KOFI-XXXXX-XXXXX-XXXXX-XXXXX")
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if result.Success {
		t.Fatal("expected activation failure")
	}
	if result.Message != msgInvalidLicense {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestActivateCapReached(t *testing.T) {
	licenses := &stubLicensesRepo{license: testLicense(30, 1, 1)}
	svc := newEntitlementService(t, licenses, &stubEntitlementsRepo{})

	result, err := svc.Activate(context.Background(), uuid.New(), uuid.New(), licenses.license.LicenseKey)
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if result.Success || result.Message != msgMaxActivations {
		t.Fatalf("expected max activations result, got %+v", result)
	}
	if licenses.increments != 0 {
		t.Fatal("cap pre-check should not touch the counter")
	}
}

func TestActivateFirstTimeClaimsSlot(t *testing.T) {
	licenses := &stubLicensesRepo{license: testLicense(30, 1, 0), incrementOK: true}
	repo := &stubEntitlementsRepo{}
	svc := newEntitlementService(t, licenses, repo)
	userID := uuid.New()

	result, err := svc.Activate(context.Background(), userID, uuid.New(), licenses.license.LicenseKey)
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if !result.Success || result.Message != msgActivated {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.ExpiresAt == nil {
		t.Fatal("expected expiresAt in result")
	}
	if licenses.increments != 1 || licenses.lastLicenseID != licenses.license.ID {
		t.Fatalf("expected one increment for the license, got %d", licenses.increments)
	}
	if repo.created == nil {
		t.Fatal("expected entitlement created")
	}
	if repo.created.UserID != userID || repo.created.LicenseID != licenses.license.ID {
		t.Fatalf("entitlement bound to wrong pair: %+v", repo.created)
	}
	if !repo.created.IsActive {
		t.Fatal("new entitlement should be active")
	}

	wantExpiry := time.Now().AddDate(0, 0, 30)
	if diff := result.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry off by %v", diff)
	}
}

func TestActivateExistingRefreshesWithoutSlot(t *testing.T) {
	licenses := &stubLicensesRepo{license: testLicense(30, 1, 1)}
	// the slot was already consumed by this same user
	licenses.license.MaxActivations = 2
	existing := &models.UserLicense{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		LicenseID: licenses.license.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
		IsActive:  false,
	}
	repo := &stubEntitlementsRepo{existing: existing}
	svc := newEntitlementService(t, licenses, repo)

	result, err := svc.Activate(context.Background(), existing.UserID, uuid.New(), licenses.license.LicenseKey)
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if licenses.increments != 0 {
		t.Fatal("re-activation must not consume another slot")
	}
	if repo.created != nil {
		t.Fatal("re-activation must not insert a duplicate entitlement")
	}
	if repo.saved == nil || !repo.saved.IsActive {
		t.Fatal("expected existing entitlement refreshed")
	}
	if !repo.saved.ExpiresAt.After(time.Now()) {
		t.Fatal("expected refreshed expiry in the future")
	}
}

func TestActivateLosesRaceOnCounter(t *testing.T) {
	licenses := &stubLicensesRepo{license: testLicense(30, 1, 0), incrementOK: false}
	repo := &stubEntitlementsRepo{}
	svc := newEntitlementService(t, licenses, repo)

	result, err := svc.Activate(context.Background(), uuid.New(), uuid.New(), licenses.license.LicenseKey)
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if result.Success || result.Message != msgMaxActivations {
		t.Fatalf("expected max activations result after losing the race, got %+v", result)
	}
	if repo.created != nil {
		t.Fatal("no entitlement may be created when the counter claim fails")
	}
}

func TestValidateNoActiveLicense(t *testing.T) {
	svc := newEntitlementService(t, &stubLicensesRepo{}, &stubEntitlementsRepo{})

	result, err := svc.Validate(context.Background(), uuid.New(), uuid.New(), "desktop")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.IsValid || result.Message != msgNoActiveLicense {
		t.Fatalf("expected missing-license result, got %+v", result)
	}
}

func TestValidateLazyExpiry(t *testing.T) {
	expired := &models.UserLicense{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(-time.Hour),
		IsActive:  true,
	}
	repo := &stubEntitlementsRepo{current: expired}
	svc := newEntitlementService(t, &stubLicensesRepo{}, repo)

	result, err := svc.Validate(context.Background(), expired.UserID, uuid.New(), "desktop")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.IsValid || result.Message != msgLicenseExpired {
		t.Fatalf("expected expired result, got %+v", result)
	}
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(expired.ExpiresAt) {
		t.Fatalf("expected original expiry echoed, got %v", result.ExpiresAt)
	}
	if repo.deactivated != expired.ID {
		t.Fatal("expected lazy expiry flip")
	}
}

func TestValidateSuccess(t *testing.T) {
	appID := uuid.New()
	license := testLicense(30, 1, 1)
	row := &models.UserLicense{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		LicenseID: license.ID,
		ExpiresAt: time.Now().Add(30 * time.Minute),
		IsActive:  true,
		License:   license,
	}
	repo := &stubEntitlementsRepo{current: row}
	svc := newEntitlementService(t, &stubLicensesRepo{}, repo)

	result, err := svc.Validate(context.Background(), row.UserID, appID, "desktop")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected valid result, got %+v", result)
	}
	if result.DaysRemaining != 1 {
		t.Fatalf("expected ceiling daysRemaining 1 for a 30 minute window, got %d", result.DaysRemaining)
	}
	if result.License == nil || result.License.Key != license.LicenseKey {
		t.Fatalf("expected license info, got %+v", result.License)
	}
	if result.Application == nil || result.Application.ID != appID || result.Application.Name != "desktop" {
		t.Fatalf("expected application info, got %+v", result.Application)
	}
	if repo.touched != row.ID {
		t.Fatal("expected last_validated touch")
	}
}

func TestValidateTouchFailureIsBestEffort(t *testing.T) {
	row := &models.UserLicense{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		IsActive:  true,
	}
	repo := &stubEntitlementsRepo{current: row, touchErr: gorm.ErrInvalidDB}
	svc := newEntitlementService(t, &stubLicensesRepo{}, repo)

	result, err := svc.Validate(context.Background(), row.UserID, uuid.New(), "desktop")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.IsValid {
		t.Fatal("touch failure must not fail the validation response")
	}
}

func TestDaysRemainingCeiling(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		in   time.Time
		want int
	}{
		{"thirty minutes", now.Add(30 * time.Minute), 1},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"one day and a minute", now.Add(24*time.Hour + time.Minute), 2},
		{"thirty days", now.Add(30 * 24 * time.Hour), 30},
	}
	for _, tt := range tests {
		if got := daysRemaining(now, tt.in); got != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, got)
		}
	}
}
