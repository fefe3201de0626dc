// Package payment drives the external checkout flow: it maps an order
// snapshot into the provider's request shape, opens a checkout session and
// settles the order when the provider's webhook confirms payment.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrProvider marks any failure talking to the payment provider. The order
// stays unpaid and the buyer can retry; no charge has occurred.
var ErrProvider = errors.New("payment provider error")

// ProviderError carries the provider's own diagnostics alongside ErrProvider.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error: status=%d code=%s %s", e.Status, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrProvider }

// CheckoutSession is the provider-side session the buyer is redirected to.
type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// Provider abstracts the remote checkout-session API.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}
