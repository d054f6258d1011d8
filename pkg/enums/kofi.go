package enums

import "fmt"

// KofiPaymentType mirrors the type field Ko-fi sends on every webhook.
type KofiPaymentType string

const (
	KofiDonation     KofiPaymentType = "Donation"
	KofiSubscription KofiPaymentType = "Subscription"
	KofiShopOrder    KofiPaymentType = "Shop Order"
	KofiCommission   KofiPaymentType = "Commission"
)

var validKofiPaymentTypes = []KofiPaymentType{
	KofiDonation,
	KofiSubscription,
	KofiShopOrder,
	KofiCommission,
}

// IsValid reports whether the value matches a payment type Ko-fi emits.
func (k KofiPaymentType) IsValid() bool {
	for _, candidate := range validKofiPaymentTypes {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKofiPaymentType converts raw input into KofiPaymentType.
func ParseKofiPaymentType(value string) (KofiPaymentType, error) {
	for _, candidate := range validKofiPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ko-fi payment type %q", value)
}
