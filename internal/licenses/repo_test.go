package licenses

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.License{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func seedLicense(t *testing.T, db *gorm.DB, license *models.License) *models.License {
	t.Helper()
	if license.ID == uuid.Nil {
		license.ID = uuid.New()
	}
	if err := db.Create(license).Error; err != nil {
		t.Fatalf("seed license: %v", err)
	}
	return license
}

func TestIncrementActivationsBounded(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	license := seedLicense(t, db, &models.License{
		LicenseKey:     "KOFI-AAAAA-BBBBB-CCCCC-DDDDD",
		DurationDays:   30,
		MaxActivations: 2,
		IsActive:       true,
	})

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementActivations(context.Background(), license.ID)
		if err != nil {
			t.Fatalf("increment %d returned error: %v", i, err)
		}
		if !ok {
			t.Fatalf("increment %d should succeed", i)
		}
	}

	ok, err := repo.IncrementActivations(context.Background(), license.ID)
	if err != nil {
		t.Fatalf("increment past cap returned error: %v", err)
	}
	if ok {
		t.Fatal("increment past cap must report failure")
	}

	var stored models.License
	if err := db.First(&stored, "id = ?", license.ID).Error; err != nil {
		t.Fatalf("reload license: %v", err)
	}
	if stored.CurrentActivations != 2 {
		t.Fatalf("expected 2 activations, got %d", stored.CurrentActivations)
	}
}

func TestIncrementActivationsConcurrent(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	// one connection so every goroutine races on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	license := seedLicense(t, db, &models.License{
		LicenseKey:     "KOFI-EEEEE-FFFFF-00000-11111",
		DurationDays:   30,
		MaxActivations: 3,
		IsActive:       true,
	})

	const attempts = 8
	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.IncrementActivations(context.Background(), license.ID)
			if err != nil {
				t.Errorf("concurrent increment returned error: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted != 3 {
		t.Fatalf("expected exactly 3 grants from %d attempts, got %d", attempts, granted)
	}
	var stored models.License
	if err := db.First(&stored, "id = ?", license.ID).Error; err != nil {
		t.Fatalf("reload license: %v", err)
	}
	if stored.CurrentActivations > stored.MaxActivations {
		t.Fatalf("activation count %d exceeds cap %d", stored.CurrentActivations, stored.MaxActivations)
	}
	if stored.CurrentActivations != 3 {
		t.Fatalf("expected 3 recorded activations, got %d", stored.CurrentActivations)
	}
}

func TestFindByKeyForApplicationScoping(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	appA := uuid.New()
	appB := uuid.New()

	scoped := seedLicense(t, db, &models.License{
		LicenseKey:     "KOFI-11111-22222-33333-44444",
		DurationDays:   30,
		MaxActivations: 1,
		IsActive:       true,
		ApplicationID:  &appA,
	})
	unscoped := seedLicense(t, db, &models.License{
		LicenseKey:     "KOFI-55555-66666-77777-88888",
		DurationDays:   30,
		MaxActivations: 1,
		IsActive:       true,
	})
	seedLicense(t, db, &models.License{
		LicenseKey:     "KOFI-99999-AAAAA-BBBBB-CCCCC",
		DurationDays:   30,
		MaxActivations: 1,
		IsActive:       false,
	})

	if got, err := repo.FindByKeyForApplication(context.Background(), scoped.LicenseKey, appA); err != nil || got.ID != scoped.ID {
		t.Fatalf("expected scoped license for its own application, got %v err %v", got, err)
	}
	if _, err := repo.FindByKeyForApplication(context.Background(), scoped.LicenseKey, appB); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected cross-application lookup to miss, got %v", err)
	}
	if got, err := repo.FindByKeyForApplication(context.Background(), unscoped.LicenseKey, appB); err != nil || got.ID != unscoped.ID {
		t.Fatalf("expected unscoped license to match any application, got %v err %v", got, err)
	}
	if _, err := repo.FindByKeyForApplication(context.Background(), "KOFI-99999-AAAAA-BBBBB-CCCCC", appA); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected inactive license to miss, got %v", err)
	}
}

func TestNewMintedLicenseDefaults(t *testing.T) {
	notes := "Ko-fi Donation - Alice - 12.00 USD - Supporter"
	license, err := NewMintedLicense(MintInput{DurationDays: 90, Notes: &notes})
	if err != nil {
		t.Fatalf("NewMintedLicense returned error: %v", err)
	}
	if license.MaxActivations != 1 {
		t.Fatalf("expected default max activations 1, got %d", license.MaxActivations)
	}
	if license.CurrentActivations != 0 {
		t.Fatalf("expected zero activations, got %d", license.CurrentActivations)
	}
	if !license.IsActive {
		t.Fatal("minted licenses should start active")
	}
	pattern := regexp.MustCompile(`^KOFI-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}$`)
	if !pattern.MatchString(license.LicenseKey) {
		t.Fatalf("unexpected key format %s", license.LicenseKey)
	}
}

func TestNewMintedLicenseRequiresDuration(t *testing.T) {
	if _, err := NewMintedLicense(MintInput{}); err == nil {
		t.Fatal("expected validation error for zero duration")
	}
}
