package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/pricing"
	"github.com/blessed234640/snake-shop/internal/session"
)

// Handler exposes checkout and order lookup endpoints.
type Handler struct {
	Svc      *Service
	Table    *currency.Table
	Validate *validator.Validate
}

// ItemView is one order line as rendered to the buyer.
type ItemView struct {
	ProductID int64  `json:"productId"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// View is the order payload.
type View struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Currency        string     `json:"currency"`
	Subtotal        string     `json:"subtotal"`
	DiscountPercent int        `json:"discountPercent"`
	Discount        string     `json:"discount"`
	ShippingCost    string     `json:"shippingCost"`
	GrandTotal      string     `json:"grandTotal"`
	GrandDisplay    string     `json:"grandTotalDisplay"`
	WeightGrams     int        `json:"weightGrams"`
	Status          string     `json:"status"`
	Paid            bool       `json:"paid"`
	Items           []ItemView `json:"items"`
}

// Create handles POST /api/v1/orders. The snapshot is taken with the
// buyer's locale at this instant.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var in CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing or invalid order fields", nil)
			return
		}
	}
	sess := session.FromContext(r.Context())
	locale := currency.LocaleFromContext(r.Context())

	o, err := h.Svc.Checkout(r.Context(), sess, locale, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.view(o)})
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id < 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(o)})
}

func (h *Handler) view(o Order) View {
	items := make([]ItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemView{
			ProductID: it.ProductID,
			Price:     it.Price.StringFixed(2),
			Quantity:  it.Quantity,
		})
	}
	return View{
		ID:              o.ID,
		Email:           o.Email,
		Currency:        string(o.Currency),
		Subtotal:        o.Subtotal.StringFixed(2),
		DiscountPercent: o.DiscountPercent,
		Discount:        o.DiscountAmount().StringFixed(2),
		ShippingCost:    o.ShippingCost.StringFixed(2),
		GrandTotal:      o.GrandTotal.StringFixed(2),
		GrandDisplay:    FormatTotal(o, h.table()),
		WeightGrams:     o.ShippingWeightG,
		Status:          o.Status(),
		Paid:            o.Paid,
		Items:           items,
	}
}

func (h *Handler) table() *currency.Table {
	if h.Table != nil {
		return h.Table
	}
	return currency.NewTable()
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, pricing.ErrOverflow):
		common.JSONError(w, http.StatusInternalServerError, "PRICING_OVERFLOW", "order total exceeds representable amount", nil)
	default:
		common.WriteError(w, err)
	}
}
