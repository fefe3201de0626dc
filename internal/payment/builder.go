package payment

import (
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/order"
)

// Line is one provider line entry, amount in minor units of the order
// currency.
type Line struct {
	Name            string
	UnitAmountMinor int64
	Quantity        int
}

// CheckoutRequest is the provider-neutral checkout payload.
type CheckoutRequest struct {
	OrderID         int64
	Currency        string
	Lines           []Line
	DiscountPercent int
	CustomerEmail   string
	Locale          string
	SuccessURL      string
	CancelURL       string
}

// BuildCheckoutRequest maps an order snapshot into the provider request.
// Item prices are already in the order currency; they are only scaled to
// minor units here, never converted again. Shipping gets its own line when
// the order carries a shipping cost, and the discount travels as a percent
// so currency mismatches cannot occur.
func BuildCheckoutRequest(o order.Order, entry currency.Entry, names map[int64]string) CheckoutRequest {
	req := CheckoutRequest{
		OrderID:         o.ID,
		Currency:        entry.ProviderCode,
		DiscountPercent: o.DiscountPercent,
		CustomerEmail:   o.Email,
		Locale:          entry.Locale,
		Lines:           make([]Line, 0, len(o.Items)+1),
	}
	for _, it := range o.Items {
		name, ok := names[it.ProductID]
		if !ok {
			name = "Item"
		}
		req.Lines = append(req.Lines, Line{
			Name:            name,
			UnitAmountMinor: currency.Money{Amount: it.Price, Code: o.Currency}.MinorUnits(),
			Quantity:        it.Quantity,
		})
	}
	if o.ShippingCost.IsPositive() {
		req.Lines = append(req.Lines, Line{
			Name:            "Shipping",
			UnitAmountMinor: currency.Money{Amount: o.ShippingCost, Code: o.Currency}.MinorUnits(),
			Quantity:        1,
		})
	}
	return req
}

// TotalMinor sums the undiscounted line amounts in minor units.
func (r CheckoutRequest) TotalMinor() int64 {
	var total int64
	for _, l := range r.Lines {
		total += l.UnitAmountMinor * int64(l.Quantity)
	}
	return total
}
