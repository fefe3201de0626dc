package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/coupon"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/pricing"
	"github.com/blessed234640/snake-shop/internal/session"
)

// Handler wires the session cart to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// ItemView is one cart line priced for the request locale.
type ItemView struct {
	ProductID    int64  `json:"productId"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unitPrice"`
	UnitDisplay  string `json:"unitPriceDisplay"`
	LineTotal    string `json:"lineTotal"`
	TotalDisplay string `json:"lineTotalDisplay"`
}

// View is the cart preview payload.
type View struct {
	Items         []ItemView `json:"items"`
	TotalQuantity int        `json:"totalQuantity"`
	Subtotal      string     `json:"subtotal"`
	Discount      string     `json:"discount"`
	Shipping      string     `json:"shipping"`
	GrandTotal    string     `json:"grandTotal"`
	GrandDisplay  string     `json:"grandTotalDisplay"`
	Currency      string     `json:"currency"`
	WeightGrams   int        `json:"weightGrams"`
	Coupon        *string    `json:"coupon,omitempty"`
}

type addRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required"`
	Override  bool  `json:"override"`
}

type couponRequest struct {
	Code string `json:"code" validate:"required"`
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	view, err := h.buildView(r, sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId and quantity are required", nil)
			return
		}
	}
	sess := session.FromContext(r.Context())
	if err := h.Svc.Add(r.Context(), sess, payload.ProductID, payload.Quantity, payload.Override); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.buildView(r, sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID < 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	sess := session.FromContext(r.Context())
	if err := h.Svc.Remove(sess, productID); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.buildView(r, sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.Svc.Clear(sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cleared": true}})
}

// ApplyCoupon handles POST /api/v1/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
			return
		}
	}
	sess := session.FromContext(r.Context())
	if _, err := h.Svc.ApplyCoupon(r.Context(), sess, payload.Code); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.buildView(r, sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.Svc.RemoveCoupon(sess); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.buildView(r, sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) buildView(r *http.Request, sess *session.Session) (View, error) {
	ctx := r.Context()
	locale := currency.LocaleFromContext(ctx)
	stored, err := h.Svc.Contents(sess)
	if err != nil {
		return View{}, err
	}
	result, err := h.Svc.Price(ctx, stored, locale)
	if err != nil {
		return View{}, err
	}
	entry := result.Entry

	products, err := h.Svc.Catalog.GetByIDs(ctx, stored.ProductIDs())
	if err != nil {
		return View{}, err
	}
	items := make([]ItemView, 0, len(stored.Items))
	for _, id := range stored.ProductIDs() {
		product, ok := products[id]
		if !ok {
			continue
		}
		line := stored.Items[keyFor(id)]
		unit := currency.Convert(line.UnitPriceBase, entry)
		lineTotal := currency.Money{
			Amount: unit.Amount.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Code:   unit.Code,
		}
		items = append(items, ItemView{
			ProductID:    id,
			Name:         product.Name,
			Slug:         product.Slug,
			Quantity:     line.Quantity,
			UnitPrice:    unit.Amount.StringFixed(2),
			UnitDisplay:  currency.Format(unit, entry),
			LineTotal:    lineTotal.Amount.StringFixed(2),
			TotalDisplay: currency.Format(lineTotal, entry),
		})
	}

	view := View{
		Items:         items,
		TotalQuantity: stored.TotalQuantity(),
		Subtotal:      result.Subtotal.Amount.StringFixed(2),
		Discount:      result.Discount.Amount.StringFixed(2),
		Shipping:      result.Shipping.Amount.StringFixed(2),
		GrandTotal:    result.GrandTotal.Amount.StringFixed(2),
		GrandDisplay:  currency.Format(result.GrandTotal, entry),
		Currency:      string(entry.Code),
		WeightGrams:   result.WeightGrams,
	}
	if _, c := h.Svc.DiscountPercent(ctx, stored); c != nil {
		view.Coupon = &c.Code
	}
	return view, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_QUANTITY", "quantity must be a positive integer", nil)
	case errors.Is(err, ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrInactive), errors.Is(err, coupon.ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INVALID", "coupon is not valid", nil)
	case errors.Is(err, pricing.ErrOverflow):
		common.JSONError(w, http.StatusInternalServerError, "PRICING_OVERFLOW", "cart total exceeds representable amount", nil)
	default:
		common.WriteError(w, err)
	}
}
