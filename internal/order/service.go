package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/cart"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/pricing"
	"github.com/blessed234640/snake-shop/internal/queue"
	"github.com/blessed234640/snake-shop/internal/session"
)

// ErrEmptyCart is returned when checkout is attempted with no items. Nothing
// is written in that case.
var ErrEmptyCart = errors.New("order: cart is empty")

// Queue kinds for post-checkout mail delivery. Invoice goes out right after
// the snapshot, the receipt after the provider confirms payment.
const (
	KindInvoiceEmail = "invoice-email"
	KindReceiptEmail = "receipt-email"
)

type snapshotRepo interface {
	CreateSnapshot(ctx context.Context, o *Order) (int64, error)
	GetByID(ctx context.Context, id int64) (Order, error)
}

type purchaseRecorder interface {
	ProductsBought(ctx context.Context, productIDs []int64) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// CheckoutInput carries the buyer details captured on the order form.
type CheckoutInput struct {
	Email      string `json:"email" validate:"required,email"`
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Address    string `json:"address" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	City       string `json:"city" validate:"required"`
}

// InvoicePayload is the id-only job payload for invoice delivery.
type InvoicePayload struct {
	OrderID int64 `json:"orderId"`
}

// Service turns a session cart into an order snapshot.
type Service struct {
	Repo        snapshotRepo
	Cart        *cart.Service
	Engine      pricing.Engine
	Recommender purchaseRecorder
	Jobs        jobEnqueuer
	Logger      zerolog.Logger
}

// Checkout prices the cart for the buyer's locale at this instant, persists
// the snapshot atomically, clears the cart and enqueues the invoice job. The
// returned order carries the already-converted amounts; callers must never
// convert them again.
func (s *Service) Checkout(ctx context.Context, sess *session.Session, locale string, in CheckoutInput) (Order, error) {
	if s == nil || s.Repo == nil || s.Cart == nil {
		return Order{}, errors.New("order service not configured")
	}
	stored, err := s.Cart.Contents(sess)
	if err != nil {
		return Order{}, err
	}
	lines, err := s.Cart.LineItems(ctx, stored)
	if err != nil {
		return Order{}, err
	}
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	// Coupon validity is advisory. A vanished or expired coupon prices as no
	// discount instead of blocking checkout.
	percent, appliedCoupon := s.Cart.DiscountPercent(ctx, stored)

	result, err := s.Engine.Compute(lines, percent, locale)
	if err != nil {
		return Order{}, err
	}
	entry := result.Entry

	o := Order{
		Email:             in.Email,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Address:           in.Address,
		PostalCode:        in.PostalCode,
		City:              in.City,
		Currency:          entry.Code,
		ExchangeRate:      entry.Rate,
		Subtotal:          result.Subtotal.Amount,
		DiscountPercent:   percent,
		ShippingWeightG:   result.WeightGrams,
		ShippingCost:      result.Shipping.Amount,
		ShippingCostBase:  result.ShippingBase,
		GrandTotal:        result.GrandTotal.Amount,
		OriginalTotalBase: result.GrandTotalBase,
	}
	if appliedCoupon != nil {
		id := appliedCoupon.ID
		o.CouponID = &id
	}
	o.Items = make([]Item, 0, len(lines))
	for _, line := range lines {
		converted := currency.Convert(line.UnitPriceBase, entry)
		o.Items = append(o.Items, Item{
			ProductID: line.ProductID,
			Price:     converted.Amount,
			Quantity:  line.Quantity,
		})
	}

	id, err := s.Repo.CreateSnapshot(ctx, &o)
	if err != nil {
		return Order{}, fmt.Errorf("create order snapshot: %w", err)
	}

	if err := s.Cart.Clear(sess); err != nil {
		s.Logger.Error().Err(err).Int64("order_id", id).Msg("clear cart after checkout failed")
	}
	s.recordPurchase(ctx, o)
	s.enqueueInvoice(ctx, id)
	return o, nil
}

// Get loads an order snapshot.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) recordPurchase(ctx context.Context, o Order) {
	if s.Recommender == nil {
		return
	}
	if err := s.Recommender.ProductsBought(ctx, o.ProductIDs()); err != nil {
		s.Logger.Warn().Err(err).Int64("order_id", o.ID).Msg("record bought-together pairs failed")
	}
}

func (s *Service) enqueueInvoice(ctx context.Context, orderID int64) {
	if s.Jobs == nil {
		return
	}
	payload, err := json.Marshal(InvoicePayload{OrderID: orderID})
	if err != nil {
		return
	}
	job := queue.Job{
		Kind:     KindInvoiceEmail,
		Payload:  payload,
		DedupKey: fmt.Sprintf("%s:%d", KindInvoiceEmail, orderID),
	}
	if err := s.Jobs.Enqueue(ctx, job); err != nil {
		// Fire and forget. The order is already committed.
		s.Logger.Error().Err(err).Int64("order_id", orderID).Msg("enqueue invoice job failed")
	}
}

// FormatTotal renders the canonical paid amount in the order's currency.
func FormatTotal(o Order, table *currency.Table) string {
	entry := entryFor(o, table)
	return currency.Format(currency.Money{Amount: o.GrandTotal, Code: o.Currency}, entry)
}

func entryFor(o Order, table *currency.Table) currency.Entry {
	for _, locale := range table.Locales() {
		if e := table.RateFor(locale); e.Code == o.Currency {
			return e
		}
	}
	return table.Default()
}
