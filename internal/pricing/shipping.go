package pricing

import "github.com/shopspring/decimal"

// Shipping tiers are authored in the base currency and keyed on total cart
// weight in grams. Above the last tier every started kilogram adds a flat
// surcharge.
var (
	tierSmall  = decimal.RequireFromString("500.00")
	tierMedium = decimal.RequireFromString("800.00")
	tierLarge  = decimal.RequireFromString("1200.00")
	perExtraKg = decimal.RequireFromString("100.00")
)

// ShippingCostBase returns the shipping cost in base currency for a total
// cart weight. Weight at or below zero prices as the lowest tier so that an
// estimate is always available.
func ShippingCostBase(weightGrams int) decimal.Decimal {
	switch {
	case weightGrams <= 1000:
		return tierSmall
	case weightGrams <= 5000:
		return tierMedium
	case weightGrams <= 10000:
		return tierLarge
	default:
		extraKg := (weightGrams - 10000 + 999) / 1000
		return tierLarge.Add(perExtraKg.Mul(decimal.NewFromInt(int64(extraKg))))
	}
}
