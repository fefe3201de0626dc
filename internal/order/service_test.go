package order_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/cart"
	"github.com/blessed234640/snake-shop/internal/catalog"
	"github.com/blessed234640/snake-shop/internal/coupon"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/pricing"
	"github.com/blessed234640/snake-shop/internal/queue"
	"github.com/blessed234640/snake-shop/internal/session"
)

type fakeCatalog struct {
	products map[int64]catalog.Product
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) GetByIDs(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeCoupons struct {
	coupons map[int64]coupon.Coupon
}

func (f *fakeCoupons) GetByCode(_ context.Context, code string) (coupon.Coupon, error) {
	for _, c := range f.coupons {
		if c.Code == coupon.NormalizeCode(code) {
			return c, nil
		}
	}
	return coupon.Coupon{}, coupon.ErrNotFound
}

func (f *fakeCoupons) GetByID(_ context.Context, id int64) (coupon.Coupon, error) {
	c, ok := f.coupons[id]
	if !ok {
		return coupon.Coupon{}, coupon.ErrNotFound
	}
	return c, nil
}

type fakeSnapshots struct {
	nextID  int64
	created []order.Order
	byID    map[int64]order.Order
	fail    error
}

func (f *fakeSnapshots) CreateSnapshot(_ context.Context, o *order.Order) (int64, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	f.nextID++
	o.ID = f.nextID
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	f.created = append(f.created, *o)
	if f.byID == nil {
		f.byID = make(map[int64]order.Order)
	}
	f.byID[o.ID] = *o
	return o.ID, nil
}

func (f *fakeSnapshots) GetByID(_ context.Context, id int64) (order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

type fakeRecorder struct {
	calls [][]int64
}

func (f *fakeRecorder) ProductsBought(_ context.Context, ids []int64) error {
	f.calls = append(f.calls, ids)
	return nil
}

type fakeJobs struct {
	jobs []queue.Job
}

func (f *fakeJobs) Enqueue(_ context.Context, job queue.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *order.Service
	cartSvc *cart.Service
	repo    *fakeSnapshots
	jobs    *fakeJobs
	rec     *fakeRecorder
	coupons *fakeCoupons
	sess    *session.Session
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	cat := &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, Name: "Ball Python", Slug: "ball-python", PriceBase: decimal.RequireFromString("1000.00"), WeightGrams: 500, Available: true},
		2: {ID: 2, Name: "Terrarium", Slug: "terrarium", PriceBase: decimal.RequireFromString("4500.00"), WeightGrams: 9000, Available: true},
	}}
	coupons := &fakeCoupons{coupons: map[int64]coupon.Coupon{
		7: {ID: 7, Code: "SUMMER10", ValidFrom: testNow.Add(-time.Hour), ValidTo: testNow.Add(time.Hour), DiscountPercent: 10, Active: true},
	}}
	engine := pricing.Engine{Table: currency.NewTable()}
	cartSvc := &cart.Service{
		Catalog: cat,
		Coupons: coupons,
		Engine:  engine,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return testNow },
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := session.NewStore(client, time.Hour, "test")
	sess, err := store.Load(context.Background(), "")
	require.NoError(t, err)

	repo := &fakeSnapshots{}
	jobs := &fakeJobs{}
	rec := &fakeRecorder{}
	svc := &order.Service{
		Repo:        repo,
		Cart:        cartSvc,
		Engine:      engine,
		Recommender: rec,
		Jobs:        jobs,
		Logger:      zerolog.Nop(),
	}
	return fixture{svc: svc, cartSvc: cartSvc, repo: repo, jobs: jobs, rec: rec, coupons: coupons, sess: sess}
}

func validInput() order.CheckoutInput {
	return order.CheckoutInput{
		Email:      "buyer@example.com",
		FirstName:  "Sam",
		LastName:   "Vimes",
		Address:    "Ramkin Lane 1",
		PostalCode: "AM-100",
		City:       "Ankh-Morpork",
	}
}

func TestCheckoutEmptyCartWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), f.sess, "en", validInput())
	assert.ErrorIs(t, err, order.ErrEmptyCart)
	assert.Empty(t, f.repo.created)
	assert.Empty(t, f.jobs.jobs)
}

func TestCheckoutSnapshotsConvertedAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 2, false))

	o, err := f.svc.Checkout(ctx, f.sess, "en", validInput())
	require.NoError(t, err)

	assert.Equal(t, currency.USD, o.Currency)
	assert.Equal(t, "0.012", o.ExchangeRate.String())
	assert.Equal(t, "24.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", o.ShippingCost.StringFixed(2))
	assert.Equal(t, "500.00", o.ShippingCostBase.StringFixed(2))
	assert.Equal(t, "30.00", o.GrandTotal.StringFixed(2))
	assert.Equal(t, "2500.00", o.OriginalTotalBase.StringFixed(2))
	assert.Equal(t, 1000, o.ShippingWeightG)
	assert.False(t, o.Paid)

	require.Len(t, o.Items, 1)
	assert.Equal(t, "12.00", o.Items[0].Price.StringFixed(2))
	assert.Equal(t, 2, o.Items[0].Quantity)

	require.Len(t, f.repo.created, 1)
}

func TestCheckoutClearsCartAndEnqueuesInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 1, false))

	o, err := f.svc.Checkout(ctx, f.sess, "en", validInput())
	require.NoError(t, err)

	stored, err := f.cartSvc.Contents(f.sess)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)

	require.Len(t, f.jobs.jobs, 1)
	job := f.jobs.jobs[0]
	assert.Equal(t, order.KindInvoiceEmail, job.Kind)
	assert.Equal(t, "invoice-email:1", job.DedupKey)
	var payload order.InvoicePayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, o.ID, payload.OrderID)

	require.Len(t, f.rec.calls, 1)
	assert.Equal(t, []int64{1}, f.rec.calls[0])
}

func TestCheckoutAppliesCouponDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 2, false))
	_, err := f.cartSvc.ApplyCoupon(ctx, f.sess, "SUMMER10")
	require.NoError(t, err)

	o, err := f.svc.Checkout(ctx, f.sess, "en", validInput())
	require.NoError(t, err)

	assert.Equal(t, 10, o.DiscountPercent)
	require.NotNil(t, o.CouponID)
	assert.Equal(t, int64(7), *o.CouponID)
	assert.Equal(t, "27.60", o.GrandTotal.StringFixed(2))
	assert.Equal(t, "2.40", o.DiscountAmount().StringFixed(2))
}

func TestCheckoutVanishedCouponPricesAsNoDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 2, false))
	_, err := f.cartSvc.ApplyCoupon(ctx, f.sess, "SUMMER10")
	require.NoError(t, err)
	delete(f.coupons.coupons, 7)

	o, err := f.svc.Checkout(ctx, f.sess, "en", validInput())
	require.NoError(t, err)
	assert.Zero(t, o.DiscountPercent)
	assert.Nil(t, o.CouponID)
	assert.Equal(t, "30.00", o.GrandTotal.StringFixed(2))
}

func TestCheckoutTotalsInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 2, false))
	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 2, 1, false))
	_, err := f.cartSvc.ApplyCoupon(ctx, f.sess, "SUMMER10")
	require.NoError(t, err)

	for _, locale := range []string{"en", "ru", "es"} {
		o, err := f.svc.Checkout(ctx, f.sess, locale, validInput())
		require.NoError(t, err)

		// Items are converted per unit, so the reconstructed total may differ
		// from the snapshot by rounding cents.
		reconstructed := o.ItemsTotal().Sub(o.DiscountAmount()).Add(o.ShippingCost)
		diff := reconstructed.Sub(o.GrandTotal).Abs()
		assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.05")),
			"locale %s: reconstructed %s vs snapshot %s", locale, reconstructed, o.GrandTotal)

		// Refill the cart for the next locale.
		require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 2, false))
		require.NoError(t, f.cartSvc.Add(ctx, f.sess, 2, 1, false))
		_, err = f.cartSvc.ApplyCoupon(ctx, f.sess, "SUMMER10")
		require.NoError(t, err)
	}
}

func TestCheckoutRepoFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cartSvc.Add(ctx, f.sess, 1, 1, false))
	f.repo.fail = errors.New("db down")

	_, err := f.svc.Checkout(ctx, f.sess, "en", validInput())
	require.Error(t, err)

	// The cart survives a failed snapshot so the buyer can retry.
	stored, err := f.cartSvc.Contents(f.sess)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalQuantity())
	assert.Empty(t, f.jobs.jobs)
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestFormatTotalUsesOrderCurrency(t *testing.T) {
	table := currency.NewTable()
	o := order.Order{Currency: currency.RUB, GrandTotal: decimal.RequireFromString("2600.00")}
	assert.Equal(t, "2 600,00 ₽", order.FormatTotal(o, table))

	o.Currency = currency.USD
	o.GrandTotal = decimal.RequireFromString("30.00")
	assert.Equal(t, "$30.00", order.FormatTotal(o, table))
}
