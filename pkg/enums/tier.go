package enums

import "fmt"

// TierType maps to the tier_type enum in Postgres.
type TierType string

const (
	TierProduct  TierType = "product"
	TierDonation TierType = "donation"
)

var validTierTypes = []TierType{
	TierProduct,
	TierDonation,
}

// IsValid reports whether the value matches the canonical tier_type enum.
func (t TierType) IsValid() bool {
	for _, candidate := range validTierTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTierType converts raw input into TierType.
func ParseTierType(value string) (TierType, error) {
	for _, candidate := range validTierTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tier type %q", value)
}
