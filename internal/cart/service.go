package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/catalog"
	"github.com/blessed234640/snake-shop/internal/coupon"
	"github.com/blessed234640/snake-shop/internal/pricing"
	"github.com/blessed234640/snake-shop/internal/session"
)

// ErrInvalidQuantity is returned for a non-positive quantity on add.
var ErrInvalidQuantity = errors.New("cart: quantity must be positive")

// ErrProductNotFound is returned when the product id is unknown.
var ErrProductNotFound = errors.New("cart: product not found")

type catalogProvider interface {
	GetByID(ctx context.Context, id int64) (catalog.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

type couponProvider interface {
	GetByCode(ctx context.Context, code string) (coupon.Coupon, error)
	GetByID(ctx context.Context, id int64) (coupon.Coupon, error)
}

// Service encapsulates cart operations against the session document.
type Service struct {
	Catalog catalogProvider
	Coupons couponProvider
	Engine  pricing.Engine
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Add upserts a line item. Without override the quantity increments; with
// override it is replaced, and an override below one removes the line.
func (s *Service) Add(ctx context.Context, sess *session.Session, productID int64, qty int, override bool) error {
	if s == nil || s.Catalog == nil {
		return errors.New("cart service not configured")
	}
	stored, err := load(sess)
	if err != nil {
		return err
	}
	if qty < 1 {
		if override {
			if stored.remove(productID) {
				return save(sess, stored)
			}
			return nil
		}
		return ErrInvalidQuantity
	}
	product, err := s.Catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("load product: %w", err)
	}
	stored.upsert(product.ID, product.PriceBase, qty, override)
	return save(sess, stored)
}

// Remove deletes a line item. Removing an absent item is a no-op.
func (s *Service) Remove(sess *session.Session, productID int64) error {
	stored, err := load(sess)
	if err != nil {
		return err
	}
	if !stored.remove(productID) {
		return nil
	}
	return save(sess, stored)
}

// Clear empties the cart and drops the coupon reference.
func (s *Service) Clear(sess *session.Session) error {
	return save(sess, emptyStored())
}

// ApplyCoupon validates the code and attaches the coupon to the cart.
func (s *Service) ApplyCoupon(ctx context.Context, sess *session.Session, code string) (coupon.Coupon, error) {
	if s == nil || s.Coupons == nil {
		return coupon.Coupon{}, errors.New("cart service not configured")
	}
	c, err := s.Coupons.GetByCode(ctx, code)
	if err != nil {
		return coupon.Coupon{}, err
	}
	if err := c.Validate(s.now()); err != nil {
		return coupon.Coupon{}, err
	}
	stored, err := load(sess)
	if err != nil {
		return coupon.Coupon{}, err
	}
	stored.CouponID = &c.ID
	return c, save(sess, stored)
}

// RemoveCoupon detaches any applied coupon.
func (s *Service) RemoveCoupon(sess *session.Session) error {
	stored, err := load(sess)
	if err != nil {
		return err
	}
	if stored.CouponID == nil {
		return nil
	}
	stored.CouponID = nil
	return save(sess, stored)
}

// Contents returns the session document for callers that price or snapshot
// the cart.
func (s *Service) Contents(sess *session.Session) (Stored, error) {
	return load(sess)
}

// LineItems joins the stored cart with live catalog rows. Stored unit prices
// are authoritative; only name and weight come from the catalog. Lines whose
// product disappeared from the catalog are skipped.
func (s *Service) LineItems(ctx context.Context, stored Stored) ([]pricing.LineItem, error) {
	ids := stored.ProductIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := s.Catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}
	items := make([]pricing.LineItem, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			continue
		}
		line := stored.Items[keyFor(id)]
		items = append(items, pricing.LineItem{
			ProductID:     id,
			UnitPriceBase: line.UnitPriceBase,
			Quantity:      line.Quantity,
			WeightGrams:   product.WeightGrams,
		})
	}
	return items, nil
}

// DiscountPercent resolves the applied coupon to its percent value. A coupon
// that disappeared or expired since being applied prices as no discount; the
// failure is logged, never surfaced.
func (s *Service) DiscountPercent(ctx context.Context, stored Stored) (int, *coupon.Coupon) {
	if stored.CouponID == nil || s.Coupons == nil {
		return 0, nil
	}
	c, err := s.Coupons.GetByID(ctx, *stored.CouponID)
	if err != nil {
		s.Logger.Warn().Err(err).Int64("coupon_id", *stored.CouponID).Msg("applied coupon lookup failed")
		return 0, nil
	}
	if err := c.Validate(s.now()); err != nil {
		s.Logger.Warn().Err(err).Str("coupon_code", c.Code).Msg("applied coupon no longer valid")
		return 0, nil
	}
	return c.DiscountPercent, &c
}

// Price computes the cart totals for the locale.
func (s *Service) Price(ctx context.Context, stored Stored, locale string) (pricing.Result, error) {
	items, err := s.LineItems(ctx, stored)
	if err != nil {
		return pricing.Result{}, err
	}
	percent, _ := s.DiscountPercent(ctx, stored)
	return s.Engine.Compute(items, percent, locale)
}

func keyFor(id int64) string {
	return strconv.FormatInt(id, 10)
}
