package security

import (
	"regexp"
	"strings"
	"testing"
)

var licenseKeyRe = regexp.MustCompile(`^KOFI-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{5}$`)

func TestGenerateLicenseKeyFormat(t *testing.T) {
	key, err := GenerateLicenseKey("KOFI")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !licenseKeyRe.MatchString(key) {
		t.Fatalf("key %q does not match expected format", key)
	}
}

func TestGenerateLicenseKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateLicenseKey("KOFI")
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestGenerateAppCredentials(t *testing.T) {
	key, err := GenerateAppKey()
	if err != nil {
		t.Fatalf("generate app key: %v", err)
	}
	if !strings.HasPrefix(key, "app_") || len(key) != len("app_")+32 {
		t.Fatalf("unexpected app key %q", key)
	}

	secret, err := GenerateAppSecret()
	if err != nil {
		t.Fatalf("generate app secret: %v", err)
	}
	if !strings.HasPrefix(secret, "sk_") || len(secret) != len("sk_")+64 {
		t.Fatalf("unexpected app secret %q", secret)
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare("sk_abc", "sk_abc") {
		t.Fatal("expected equal strings to match")
	}
	if SecureCompare("sk_abc", "sk_abd") {
		t.Fatal("expected different strings to mismatch")
	}
	if SecureCompare("sk_abc", "sk_ab") {
		t.Fatal("expected different lengths to mismatch")
	}
}
