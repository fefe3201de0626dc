package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/catalog"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/order"
)

// ErrAlreadyPaid is returned when a checkout session is requested for an
// order the provider has already settled.
var ErrAlreadyPaid = errors.New("payment: order already paid")

type orderStore interface {
	GetByID(ctx context.Context, id int64) (order.Order, error)
	SetProviderSession(ctx context.Context, id int64, sessionID string) error
}

type productNamer interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// Service opens provider checkout sessions for snapshotted orders.
type Service struct {
	Orders   orderStore
	Products productNamer
	Provider Provider
	Table    *currency.Table
	Logger   zerolog.Logger
}

// Process loads the order, builds the provider request from the snapshot and
// opens a checkout session. The session id is stored on the order; a retried
// checkout simply overwrites it. Provider failures leave the order unpaid
// and retryable.
func (s *Service) Process(ctx context.Context, orderID int64) (CheckoutSession, error) {
	if s == nil || s.Orders == nil || s.Provider == nil {
		return CheckoutSession{}, errors.New("payment service not configured")
	}
	o, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if o.Paid {
		return CheckoutSession{}, ErrAlreadyPaid
	}

	entry := s.entryFor(o)
	req := BuildCheckoutRequest(o, entry, s.names(ctx, o))
	session, err := s.Provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.Logger.Error().Err(err).Int64("order_id", orderID).Msg("create checkout session failed")
		return CheckoutSession{}, err
	}
	if err := s.Orders.SetProviderSession(ctx, orderID, session.ID); err != nil {
		return CheckoutSession{}, fmt.Errorf("store provider session: %w", err)
	}
	s.Logger.Info().Int64("order_id", orderID).Str("provider_session_id", session.ID).Msg("checkout session created")
	return session, nil
}

// names resolves product display names for the provider lines. Lookup
// failure degrades to generic labels; the charge amounts do not depend on it.
func (s *Service) names(ctx context.Context, o order.Order) map[int64]string {
	if s.Products == nil {
		return nil
	}
	products, err := s.Products.GetByIDs(ctx, o.ProductIDs())
	if err != nil {
		s.Logger.Warn().Err(err).Int64("order_id", o.ID).Msg("product name lookup failed")
		return nil
	}
	names := make(map[int64]string, len(products))
	for id, p := range products {
		names[id] = p.Name
	}
	return names
}

func (s *Service) entryFor(o order.Order) currency.Entry {
	table := s.Table
	if table == nil {
		table = currency.NewTable()
	}
	for _, locale := range table.Locales() {
		if e := table.RateFor(locale); e.Code == o.Currency {
			return e
		}
	}
	return table.Default()
}
