package licenseclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CachedEntitlement is the snapshot persisted after a successful online
// validation. It carries everything the embedding application needs to let
// the user in while the server is unreachable.
type CachedEntitlement struct {
	UserID        string    `json:"userId"`
	Email         string    `json:"email,omitempty"`
	FullName      string    `json:"fullName,omitempty"`
	LicenseKey    string    `json:"licenseKey"`
	ExpiresAt     time.Time `json:"expiresAt"`
	LastValidated time.Time `json:"lastValidated"`
}

// IsValidAt reports whether the cached entitlement still covers the given
// instant. The cache never extends a license: expiry is the only check.
func (e *CachedEntitlement) IsValidAt(now time.Time) bool {
	if e == nil {
		return false
	}
	return e.ExpiresAt.After(now)
}

// OfflineStore persists the entitlement snapshot as a JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn cache.
type OfflineStore struct {
	path string
}

// NewOfflineStore builds a store rooted at the given file path.
func NewOfflineStore(path string) (*OfflineStore, error) {
	if path == "" {
		return nil, errors.New("licenseclient: cache path required")
	}
	return &OfflineStore{path: path}, nil
}

// Load reads the cached entitlement. A missing file returns (nil, nil).
func (s *OfflineStore) Load() (*CachedEntitlement, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("licenseclient: read cache: %w", err)
	}

	var cached CachedEntitlement
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("licenseclient: decode cache: %w", err)
	}
	return &cached, nil
}

// Save writes the entitlement snapshot atomically.
func (s *OfflineStore) Save(entitlement *CachedEntitlement) error {
	if entitlement == nil {
		return errors.New("licenseclient: nil entitlement")
	}

	raw, err := json.MarshalIndent(entitlement, "", "  ")
	if err != nil {
		return fmt.Errorf("licenseclient: encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("licenseclient: create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".entitlement-*")
	if err != nil {
		return fmt.Errorf("licenseclient: create temp cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("licenseclient: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("licenseclient: close cache: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("licenseclient: chmod cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("licenseclient: replace cache: %w", err)
	}
	return nil
}

// Clear removes the cached entitlement, ignoring a missing file.
func (s *OfflineStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("licenseclient: clear cache: %w", err)
	}
	return nil
}
