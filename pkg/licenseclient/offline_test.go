package licenseclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOfflineStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "entitlement.json")
	store, err := NewOfflineStore(path)
	if err != nil {
		t.Fatalf("NewOfflineStore failed: %v", err)
	}

	want := &CachedEntitlement{
		UserID:        "u-1",
		Email:         "alice@example.com",
		FullName:      "Alice Smith",
		LicenseKey:    "KOFI-AAAAA",
		ExpiresAt:     time.Now().AddDate(0, 0, 30).UTC().Truncate(time.Second),
		LastValidated: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.LicenseKey != want.LicenseKey || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat cache: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("cache must not be world readable, got %v", info.Mode().Perm())
	}
}

func TestOfflineStoreMissingFile(t *testing.T) {
	store, err := NewOfflineStore(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("NewOfflineStore failed: %v", err)
	}

	got, err := store.Load()
	if err != nil || got != nil {
		t.Fatalf("missing cache must be (nil, nil), got %+v / %v", got, err)
	}
}

func TestOfflineStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitlement.json")
	store, _ := NewOfflineStore(path)
	_ = store.Save(&CachedEntitlement{LicenseKey: "KOFI-AAAAA", ExpiresAt: time.Now().Add(time.Hour)})

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear must ignore a missing file, got %v", err)
	}
	if got, _ := store.Load(); got != nil {
		t.Fatalf("expected empty cache after clear, got %+v", got)
	}
}

func TestCachedEntitlementExpiry(t *testing.T) {
	now := time.Now()

	live := &CachedEntitlement{ExpiresAt: now.Add(time.Hour)}
	if !live.IsValidAt(now) {
		t.Fatal("unexpired cache must validate")
	}

	expired := &CachedEntitlement{ExpiresAt: now.Add(-time.Minute)}
	if expired.IsValidAt(now) {
		t.Fatal("expired cache must not validate")
	}

	var missing *CachedEntitlement
	if missing.IsValidAt(now) {
		t.Fatal("nil cache must not validate")
	}
}
