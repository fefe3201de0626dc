package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/blessed234640/snake-shop/internal/resilience"
)

const defaultStripeAPIBase = "https://api.stripe.com"

// Stripe talks to the Stripe checkout-session REST API with form-encoded
// requests. All outbound calls go through the retrying HTTP client.
type Stripe struct {
	HTTP       resilience.HTTPClient
	APIBase    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

type stripeSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeCoupon struct {
	ID string `json:"id"`
}

type stripeErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession opens a Stripe checkout session for the request.
// A percent-off discount is first created as a one-shot Stripe coupon and
// referenced by id, so the discount is applied provider-side in percent and
// never as a converted amount.
func (s Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", strconv.FormatInt(req.OrderID, 10))
	form.Set("success_url", s.SuccessURL)
	form.Set("cancel_url", s.CancelURL)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	if req.Locale != "" {
		form.Set("locale", req.Locale)
	}
	ccy := strings.ToLower(req.Currency)
	for i, line := range req.Lines {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", ccy)
		form.Set(prefix+"[price_data][product_data][name]", line.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(line.UnitAmountMinor, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(line.Quantity))
	}
	if req.DiscountPercent > 0 {
		couponID, err := s.createCoupon(ctx, req.DiscountPercent)
		if err != nil {
			return CheckoutSession{}, err
		}
		form.Set("discounts[0][coupon]", couponID)
	}

	var session stripeSession
	if err := s.post(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{ID: session.ID, RedirectURL: session.URL}, nil
}

func (s Stripe) createCoupon(ctx context.Context, percent int) (string, error) {
	form := url.Values{}
	form.Set("percent_off", strconv.Itoa(percent))
	form.Set("duration", "once")
	var c stripeCoupon
	if err := s.post(ctx, "/v1/coupons", form, &c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s Stripe) post(ctx context.Context, path string, form url.Values, out any) error {
	base := s.APIBase
	if base == "" {
		base = defaultStripeAPIBase
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(base, "/")+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr stripeErrorBody
		_ = json.Unmarshal(body, &apiErr)
		return &ProviderError{
			Status:  resp.StatusCode,
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return nil
}
