// Package coupon stores percent-off discount codes with a validity window.
package coupon

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no coupon matches the code or id.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon exists but is disabled.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned when the coupon is outside its validity window.
	ErrExpired = errors.New("coupon expired")
)

// Coupon is a percent-off discount applied to the item subtotal.
type Coupon struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidTo         time.Time `json:"validTo"`
	DiscountPercent int       `json:"discountPercent"`
	Active          bool      `json:"active"`
}

// Validate reports whether the coupon can be used at the given instant.
func (c Coupon) Validate(now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return ErrExpired
	}
	return nil
}

// NormalizeCode canonicalises a user-entered coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
