// Package cart implements the session-backed shopping cart. The cart is a
// small JSON document stored under one session key; every line item keeps the
// unit price captured when it was added, so later catalog price changes do
// not affect carts already in flight.
package cart

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/blessed234640/snake-shop/internal/session"
)

const sessionKey = "cart"

// StoredItem is one cart line as persisted in the session.
type StoredItem struct {
	ProductID     int64           `json:"productId"`
	UnitPriceBase decimal.Decimal `json:"unitPriceBase"`
	Quantity      int             `json:"quantity"`
}

// Stored is the session cart document. Items are keyed by decimal product id.
type Stored struct {
	Items    map[string]StoredItem `json:"items"`
	CouponID *int64                `json:"couponId,omitempty"`
}

func emptyStored() Stored {
	return Stored{Items: map[string]StoredItem{}}
}

// load reads the cart document from the session. Stored content is not
// trusted: lines with a bad product id, a non-positive quantity or a negative
// captured price are dropped rather than repriced.
func load(sess *session.Session) (Stored, error) {
	var stored Stored
	ok, err := sess.Get(sessionKey, &stored)
	if err != nil {
		return emptyStored(), err
	}
	if !ok || stored.Items == nil {
		return emptyStored(), nil
	}
	for key, item := range stored.Items {
		if item.ProductID < 1 || item.Quantity < 1 || item.UnitPriceBase.IsNegative() {
			delete(stored.Items, key)
		}
	}
	return stored, nil
}

// save writes the cart document back, marking the session dirty.
func save(sess *session.Session, stored Stored) error {
	return sess.Set(sessionKey, stored)
}

// upsert adds quantity to an existing line or creates one with the captured
// base price. With override the quantity is replaced instead of incremented.
func (s *Stored) upsert(productID int64, unitPriceBase decimal.Decimal, qty int, override bool) {
	key := strconv.FormatInt(productID, 10)
	item, ok := s.Items[key]
	if !ok {
		item = StoredItem{ProductID: productID, UnitPriceBase: unitPriceBase}
	}
	if override {
		item.Quantity = qty
	} else {
		item.Quantity += qty
	}
	s.Items[key] = item
}

// remove drops a line. Removing an absent line is a no-op.
func (s *Stored) remove(productID int64) bool {
	key := strconv.FormatInt(productID, 10)
	if _, ok := s.Items[key]; !ok {
		return false
	}
	delete(s.Items, key)
	return true
}

// TotalQuantity sums the quantities of all lines.
func (s Stored) TotalQuantity() int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// ProductIDs returns the referenced product ids in ascending order.
func (s Stored) ProductIDs() []int64 {
	ids := make([]int64, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
