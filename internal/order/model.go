// Package order creates and stores the immutable checkout snapshot. An order
// captures every converted amount at snapshot time; nothing is re-priced or
// re-converted afterwards.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/blessed234640/snake-shop/internal/currency"
)

// Statuses an order moves through. The only mutation after the snapshot is
// the payment transition.
const (
	StatusSnapshot = "snapshot_taken"
	StatusPaid     = "paid"
)

// Order is the persisted checkout snapshot.
type Order struct {
	ID         int64
	Email      string
	FirstName  string
	LastName   string
	Address    string
	PostalCode string
	City       string

	Currency          currency.Code
	ExchangeRate      decimal.Decimal
	Subtotal          decimal.Decimal
	DiscountPercent   int
	CouponID          *int64
	ShippingWeightG   int
	ShippingCost      decimal.Decimal
	ShippingCostBase  decimal.Decimal
	GrandTotal        decimal.Decimal
	OriginalTotalBase decimal.Decimal

	Paid              bool
	ProviderSessionID string

	CreatedAt time.Time
	Items     []Item
}

// Item is one snapshot line. Price is already in the order's currency.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Price     decimal.Decimal
	Quantity  int
}

// Status reports where the order sits in its lifecycle.
func (o Order) Status() string {
	if o.Paid {
		return StatusPaid
	}
	return StatusSnapshot
}

// ItemsTotal sums price times quantity over all items, in order currency.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// DiscountAmount recomputes the discount from the stored percent for audit
// display. The canonical paid amount is GrandTotal, taken at snapshot time.
func (o Order) DiscountAmount() decimal.Decimal {
	if o.DiscountPercent <= 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(int64(o.DiscountPercent))
	return o.Subtotal.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
}

// ProductIDs lists the distinct product ids in the order.
func (o Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
