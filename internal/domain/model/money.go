package model

import (
	"github.com/shopspring/decimal"

	"restaurant-storefront/internal/domain"
)

// CurrencyINR is the only currency the UPI gateway settles in.
const CurrencyINR = "INR"

var hundred = decimal.NewFromInt(100)

// ToSubunits converts a major-unit amount (rupees) into paise.
// Amounts that are not positive or carry fractional paise are rejected.
func ToSubunits(amount decimal.Decimal) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, domain.NewValidationError("amount", "must be greater than zero")
	}
	sub := amount.Mul(hundred)
	if !sub.IsInteger() {
		return 0, domain.NewValidationError("amount", "%s has more than two decimal places", amount.String())
	}
	if !sub.BigInt().IsInt64() {
		return 0, domain.NewValidationError("amount", "%s is too large", amount.String())
	}
	return sub.IntPart(), nil
}

// FromSubunits is the inverse of ToSubunits.
func FromSubunits(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// FormatSubunits renders paise as a rupee string with two decimals, e.g. "199.99".
func FormatSubunits(paise int64) string {
	return FromSubunits(paise).StringFixed(2)
}
