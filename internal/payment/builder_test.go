package payment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/payment"
)

func usdEntry(t *testing.T) currency.Entry {
	t.Helper()
	return currency.NewTable().RateFor("en")
}

func snapshotOrder() order.Order {
	return order.Order{
		ID:           41,
		Email:        "buyer@example.com",
		Currency:     currency.USD,
		Subtotal:     decimal.RequireFromString("24.00"),
		ShippingCost: decimal.RequireFromString("6.00"),
		GrandTotal:   decimal.RequireFromString("30.00"),
		Items: []order.Item{
			{ProductID: 1, Price: decimal.RequireFromString("12.00"), Quantity: 2},
		},
	}
}

func TestBuildCheckoutRequestLines(t *testing.T) {
	o := snapshotOrder()
	req := payment.BuildCheckoutRequest(o, usdEntry(t), map[int64]string{1: "Ball Python"})

	assert.Equal(t, int64(41), req.OrderID)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "buyer@example.com", req.CustomerEmail)
	require.Len(t, req.Lines, 2)

	assert.Equal(t, "Ball Python", req.Lines[0].Name)
	assert.Equal(t, int64(1200), req.Lines[0].UnitAmountMinor)
	assert.Equal(t, 2, req.Lines[0].Quantity)

	assert.Equal(t, "Shipping", req.Lines[1].Name)
	assert.Equal(t, int64(600), req.Lines[1].UnitAmountMinor)
	assert.Equal(t, 1, req.Lines[1].Quantity)
}

func TestBuildCheckoutRequestOmitsFreeShipping(t *testing.T) {
	o := snapshotOrder()
	o.ShippingCost = decimal.Zero
	req := payment.BuildCheckoutRequest(o, usdEntry(t), nil)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "Item", req.Lines[0].Name)
}

func TestBuildCheckoutRequestNeverReconverts(t *testing.T) {
	// Item prices are already in order currency. If conversion were applied
	// a second time, the 12.00 USD line would shrink to fractions of a cent.
	o := snapshotOrder()
	req := payment.BuildCheckoutRequest(o, usdEntry(t), nil)
	assert.Equal(t, int64(1200), req.Lines[0].UnitAmountMinor)
}

func TestMinorUnitTotalsWithinToleranceOfSnapshot(t *testing.T) {
	o := order.Order{
		ID:           7,
		Currency:     currency.EUR,
		Subtotal:     decimal.RequireFromString("36.31"),
		ShippingCost: decimal.RequireFromString("8.80"),
		Items: []order.Item{
			{ProductID: 1, Price: decimal.RequireFromString("8.26"), Quantity: 3},
			{ProductID: 2, Price: decimal.RequireFromString("11.53"), Quantity: 1},
		},
	}
	entry := currency.NewTable().RateFor("es")
	req := payment.BuildCheckoutRequest(o, entry, nil)

	want := currency.Money{Amount: o.Subtotal.Add(o.ShippingCost), Code: o.Currency}.MinorUnits()
	got := req.TotalMinor()
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	// Independent per-line rounding may drift by up to one minor unit per
	// line relative to the rounded snapshot totals.
	assert.LessOrEqual(t, diff, int64(len(req.Lines)))
}

func TestDiscountTravelsAsPercent(t *testing.T) {
	o := snapshotOrder()
	o.DiscountPercent = 10
	req := payment.BuildCheckoutRequest(o, usdEntry(t), nil)
	assert.Equal(t, 10, req.DiscountPercent)
	// Undiscounted line totals: the provider applies the percent itself.
	assert.Equal(t, int64(3000), req.TotalMinor())
}
