package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	appKeyPrefix    = "app_"
	appSecretPrefix = "sk_"

	// licenseKeyBytes gives 96 bits of entropy; the formatted key keeps the
	// first 20 hex characters in four 5-character groups.
	licenseKeyBytes = 12
)

// GenerateLicenseKey returns a license key in the form
// <sourceTag>-XXXXX-XXXXX-XXXXX-XXXXX with uppercase hex groups.
func GenerateLicenseKey(sourceTag string) (string, error) {
	buf := make([]byte, licenseKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate license key: %w", err)
	}

	h := strings.ToUpper(hex.EncodeToString(buf))
	groups := []string{h[0:5], h[5:10], h[10:15], h[15:20]}

	if sourceTag == "" {
		return strings.Join(groups, "-"), nil
	}
	return sourceTag + "-" + strings.Join(groups, "-"), nil
}

// GenerateAppKey returns a public application key.
func GenerateAppKey() (string, error) {
	return randomToken(appKeyPrefix, 16)
}

// GenerateAppSecret returns a private application secret. It is shown once
// at creation and never re-derivable.
func GenerateAppSecret() (string, error) {
	return randomToken(appSecretPrefix, 32)
}

func randomToken(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}

// SecureCompare reports whether two credential strings are equal without
// leaking the mismatch position through timing.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
