// Package pricing turns cart line items into the totals that flow into an
// order and a payment request. Every figure is computed in the base currency
// first and converted to the target currency exactly once.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/blessed234640/snake-shop/internal/currency"
)

// ErrOverflow is returned when an amount exceeds the representable
// precision of the order storage columns.
var ErrOverflow = errors.New("pricing: amount overflows representable precision")

// maxAmount mirrors the numeric(10,2) columns orders are persisted into.
var maxAmount = decimal.RequireFromString("99999999.99")

// LineItem is one cart entry priced in the base currency. UnitPriceBase is
// captured when the item is added and never re-read from the catalog.
type LineItem struct {
	ProductID     int64
	UnitPriceBase decimal.Decimal
	Quantity      int
	WeightGrams   int
}

// Result carries the priced totals for one cart in one target currency.
// WeightGrams is currency-independent.
type Result struct {
	Subtotal       currency.Money
	Discount       currency.Money
	Shipping       currency.Money
	GrandTotal     currency.Money
	SubtotalBase   decimal.Decimal
	DiscountBase   decimal.Decimal
	ShippingBase   decimal.Decimal
	GrandTotalBase decimal.Decimal
	Entry          currency.Entry
	WeightGrams    int
}

// Engine prices carts against a fixed currency table.
type Engine struct {
	Table *currency.Table
}

// Compute prices the given line items with an optional percent discount for
// the locale's currency. It is a pure function of its inputs.
//
// The discount applies to the item subtotal only, before shipping and before
// conversion. Each base figure is converted to the target currency
// independently; converted values are never summed from other converted
// values except for the invariant check done by callers.
func (e Engine) Compute(items []LineItem, discountPercent int, locale string) (Result, error) {
	entry := e.Table.RateFor(locale)

	subtotalBase := decimal.Zero
	weight := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotalBase = subtotalBase.Add(it.UnitPriceBase.Mul(qty))
		weight += it.WeightGrams * it.Quantity
	}

	discountBase := decimal.Zero
	if discountPercent > 0 {
		pct := decimal.NewFromInt(int64(discountPercent))
		discountBase = subtotalBase.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	}

	shippingBase := ShippingCostBase(weight)
	grandTotalBase := subtotalBase.Sub(discountBase).Add(shippingBase)

	for _, amount := range []decimal.Decimal{subtotalBase, shippingBase, grandTotalBase} {
		if amount.GreaterThan(maxAmount) {
			return Result{}, ErrOverflow
		}
	}

	return Result{
		Subtotal:       currency.Convert(subtotalBase, entry),
		Discount:       currency.Convert(discountBase, entry),
		Shipping:       currency.Convert(shippingBase, entry),
		GrandTotal:     currency.Convert(grandTotalBase, entry),
		SubtotalBase:   subtotalBase,
		DiscountBase:   discountBase,
		ShippingBase:   shippingBase,
		GrandTotalBase: grandTotalBase,
		Entry:          entry,
		WeightGrams:    weight,
	}, nil
}
