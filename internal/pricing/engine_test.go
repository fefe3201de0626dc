package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/currency"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestShippingCostBaseTiers(t *testing.T) {
	cases := []struct {
		weight int
		want   string
	}{
		{0, "500.00"},
		{500, "500.00"},
		{1000, "500.00"},
		{1001, "800.00"},
		{5000, "800.00"},
		{5001, "1200.00"},
		{10000, "1200.00"},
		{10001, "1300.00"}, // 1g over starts a new kilogram
		{11000, "1300.00"},
		{11001, "1400.00"},
		{15500, "1800.00"},
	}
	for _, tc := range cases {
		got := ShippingCostBase(tc.weight)
		assert.Equal(t, tc.want, got.StringFixed(2), "weight %dg", tc.weight)
	}
}

func TestComputeEndToEnd(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{
		{ProductID: 1, UnitPriceBase: dec("1000.00"), Quantity: 2, WeightGrams: 500},
	}

	res, err := eng.Compute(items, 0, "en")
	require.NoError(t, err)

	assert.Equal(t, "2000.00", res.SubtotalBase.StringFixed(2))
	assert.Equal(t, 1000, res.WeightGrams)
	assert.Equal(t, "500.00", res.ShippingBase.StringFixed(2))
	assert.Equal(t, "2500.00", res.GrandTotalBase.StringFixed(2))

	assert.Equal(t, currency.USD, res.Entry.Code)
	assert.Equal(t, "24.00", res.Subtotal.Amount.StringFixed(2))
	assert.Equal(t, "6.00", res.Shipping.Amount.StringFixed(2))
	assert.Equal(t, "30.00", res.GrandTotal.Amount.StringFixed(2))
}

func TestComputeWithCoupon(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{
		{ProductID: 1, UnitPriceBase: dec("1000.00"), Quantity: 2, WeightGrams: 500},
	}

	res, err := eng.Compute(items, 10, "en")
	require.NoError(t, err)

	assert.Equal(t, "200.00", res.DiscountBase.StringFixed(2))
	assert.Equal(t, "2300.00", res.GrandTotalBase.StringFixed(2))
	assert.Equal(t, "2.40", res.Discount.Amount.StringFixed(2))
	assert.Equal(t, "27.60", res.GrandTotal.Amount.StringFixed(2))
}

func TestComputeDiscountOnItemsOnly(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{
		{ProductID: 3, UnitPriceBase: dec("100.00"), Quantity: 1, WeightGrams: 12000},
	}

	res, err := eng.Compute(items, 50, "ru")
	require.NoError(t, err)

	// Half of the item subtotal, shipping untouched.
	assert.Equal(t, "50.00", res.DiscountBase.StringFixed(2))
	assert.Equal(t, "1400.00", res.ShippingBase.StringFixed(2))
	assert.Equal(t, "1450.00", res.GrandTotalBase.StringFixed(2))
}

func TestComputeSkipsNonPositiveQuantities(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{
		{ProductID: 1, UnitPriceBase: dec("100.00"), Quantity: 0, WeightGrams: 100},
		{ProductID: 2, UnitPriceBase: dec("100.00"), Quantity: -2, WeightGrams: 100},
		{ProductID: 3, UnitPriceBase: dec("100.00"), Quantity: 1, WeightGrams: 100},
	}

	res, err := eng.Compute(items, 0, "ru")
	require.NoError(t, err)
	assert.Equal(t, "100.00", res.SubtotalBase.StringFixed(2))
	assert.Equal(t, 100, res.WeightGrams)
}

func TestComputeEmptyCart(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}

	res, err := eng.Compute(nil, 0, "ru")
	require.NoError(t, err)
	assert.True(t, res.SubtotalBase.IsZero())
	assert.Equal(t, "500.00", res.ShippingBase.StringFixed(2))
	assert.Equal(t, "500.00", res.GrandTotalBase.StringFixed(2))
}

func TestComputeUnknownLocaleFallsBack(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{{ProductID: 1, UnitPriceBase: dec("1000.00"), Quantity: 1, WeightGrams: 100}}

	res, err := eng.Compute(items, 0, "zz")
	require.NoError(t, err)
	assert.Equal(t, currency.USD, res.Entry.Code)
}

func TestComputeOverflow(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{
		{ProductID: 1, UnitPriceBase: dec("99999999.99"), Quantity: 1000, WeightGrams: 1},
	}

	_, err := eng.Compute(items, 0, "ru")
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestComputeInvariantSum(t *testing.T) {
	eng := Engine{Table: currency.NewTable()}
	items := []LineItem{
		{ProductID: 1, UnitPriceBase: dec("333.33"), Quantity: 3, WeightGrams: 700},
		{ProductID: 2, UnitPriceBase: dec("19.99"), Quantity: 5, WeightGrams: 120},
	}

	for _, locale := range []string{"en", "ru", "es"} {
		res, err := eng.Compute(items, 15, locale)
		require.NoError(t, err)
		sum := res.GrandTotalBase
		expect := res.SubtotalBase.Sub(res.DiscountBase).Add(res.ShippingBase)
		assert.True(t, sum.Equal(expect), "locale %s", locale)
	}
}
