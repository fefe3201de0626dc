package payment_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/payment"
)

type fakeOrderStore struct {
	orders   map[int64]order.Order
	sessions map[int64]string
}

func (f *fakeOrderStore) GetByID(_ context.Context, id int64) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) SetProviderSession(_ context.Context, id int64, sessionID string) error {
	if _, ok := f.orders[id]; !ok {
		return order.ErrNotFound
	}
	if f.sessions == nil {
		f.sessions = make(map[int64]string)
	}
	f.sessions[id] = sessionID
	return nil
}

type fakeProvider struct {
	lastReq payment.CheckoutRequest
	err     error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	f.lastReq = req
	if f.err != nil {
		return payment.CheckoutSession{}, f.err
	}
	return payment.CheckoutSession{ID: "cs_1", RedirectURL: "https://pay.example/cs_1"}, nil
}

func newPaymentFixture(paid bool) (*payment.Service, *fakeOrderStore, *fakeProvider) {
	store := &fakeOrderStore{orders: map[int64]order.Order{
		41: {
			ID:           41,
			Email:        "buyer@example.com",
			Currency:     currency.USD,
			Subtotal:     decimal.RequireFromString("24.00"),
			ShippingCost: decimal.RequireFromString("6.00"),
			GrandTotal:   decimal.RequireFromString("30.00"),
			Paid:         paid,
			Items: []order.Item{
				{ProductID: 1, Price: decimal.RequireFromString("12.00"), Quantity: 2},
			},
		},
	}}
	provider := &fakeProvider{}
	svc := &payment.Service{
		Orders:   store,
		Provider: provider,
		Table:    currency.NewTable(),
		Logger:   zerolog.Nop(),
	}
	return svc, store, provider
}

func TestProcessStoresProviderSession(t *testing.T) {
	svc, store, provider := newPaymentFixture(false)

	session, err := svc.Process(context.Background(), 41)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "cs_1", store.sessions[41])

	assert.Equal(t, "usd", provider.lastReq.Currency)
	require.Len(t, provider.lastReq.Lines, 2)
	assert.Equal(t, int64(1200), provider.lastReq.Lines[0].UnitAmountMinor)
}

func TestProcessRejectsPaidOrder(t *testing.T) {
	svc, _, _ := newPaymentFixture(true)
	_, err := svc.Process(context.Background(), 41)
	assert.ErrorIs(t, err, payment.ErrAlreadyPaid)
}

func TestProcessUnknownOrder(t *testing.T) {
	svc, _, _ := newPaymentFixture(false)
	_, err := svc.Process(context.Background(), 99)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestProcessProviderFailureLeavesOrderRetryable(t *testing.T) {
	svc, store, provider := newPaymentFixture(false)
	provider.err = &payment.ProviderError{Status: 503, Message: "down"}

	_, err := svc.Process(context.Background(), 41)
	assert.ErrorIs(t, err, payment.ErrProvider)
	assert.Empty(t, store.sessions)
	assert.False(t, store.orders[41].Paid)
}
