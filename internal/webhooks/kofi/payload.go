package kofiwebhook

import (
	"regexp"

	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// amountPattern mirrors what Ko-fi actually sends: a plain decimal string
// with at most two fraction digits.
var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ShopItem is a purchased catalog item. DirectLinkCode is the external
// product code used for tier resolution.
type ShopItem struct {
	DirectLinkCode string `json:"direct_link_code" validate:"required,max=100"`
	VariationName  string `json:"variation_name" validate:"max=255"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
}

// Shipping is the optional physical-goods address block.
type Shipping struct {
	FullName        string `json:"full_name" validate:"max=255"`
	StreetAddress   string `json:"street_address" validate:"max=500"`
	City            string `json:"city" validate:"max=100"`
	StateOrProvince string `json:"state_or_province" validate:"max=100"`
	PostalCode      string `json:"postal_code" validate:"max=20"`
	Country         string `json:"country" validate:"max=100"`
	CountryCode     string `json:"country_code" validate:"max=10"`
	Telephone       string `json:"telephone" validate:"max=50"`
}

// Payload is the JSON document Ko-fi posts in the form field "data".
type Payload struct {
	VerificationToken          string     `json:"verification_token" validate:"required"`
	MessageID                  string     `json:"message_id" validate:"required,max=255"`
	Timestamp                  string     `json:"timestamp" validate:"required"`
	Type                       string     `json:"type" validate:"required,oneof=Donation Subscription 'Shop Order' Commission"`
	IsPublic                   bool       `json:"is_public"`
	FromName                   string     `json:"from_name" validate:"max=255"`
	Message                    *string    `json:"message" validate:"omitempty,max=1000"`
	Amount                     string     `json:"amount" validate:"required"`
	URL                        string     `json:"url" validate:"max=500"`
	Email                      string     `json:"email" validate:"required,email,max=255"`
	Currency                   string     `json:"currency" validate:"required,len=3"`
	IsSubscriptionPayment      bool       `json:"is_subscription_payment"`
	IsFirstSubscriptionPayment bool       `json:"is_first_subscription_payment"`
	KofiTransactionID          *string    `json:"kofi_transaction_id" validate:"omitempty,max=255"`
	ShopItems                  []ShopItem `json:"shop_items" validate:"omitempty,dive"`
	TierName                   *string    `json:"tier_name" validate:"omitempty,max=255"`
	Shipping                   *Shipping  `json:"shipping"`
}

// ParseAmount validates the amount format and returns it as a decimal.
func (p *Payload) ParseAmount() (decimal.Decimal, error) {
	if !amountPattern.MatchString(p.Amount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook data format")
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook data format")
	}
	return amount, nil
}

// ProductIdentifier returns the direct link code of the first shop item, or
// empty when the payment carries no items.
func (p *Payload) ProductIdentifier() string {
	if len(p.ShopItems) == 0 {
		return ""
	}
	return p.ShopItems[0].DirectLinkCode
}
