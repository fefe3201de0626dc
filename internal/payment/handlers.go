package payment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/order"
)

// Handler exposes the payment endpoints: process hands the buyer a provider
// redirect, completed/canceled are the JSON landing pages the provider sends
// the buyer back to.
type Handler struct {
	Svc *Service
}

// Process handles POST /api/v1/payment/process/{orderID}.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id < 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	session, err := h.Svc.Process(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{
		"sessionId":   session.ID,
		"redirectUrl": session.RedirectURL,
	}})
}

// Completed handles GET /api/v1/payment/completed. Payment confirmation
// itself arrives over the webhook; this page only acknowledges the return.
func (h *Handler) Completed(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "completed"}})
}

// Canceled handles GET /api/v1/payment/canceled. The order stays in its
// snapshot state and can be retried.
func (h *Handler) Canceled(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "canceled"}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrAlreadyPaid):
		common.JSONError(w, http.StatusConflict, "ALREADY_PAID", "order is already paid", nil)
	case errors.Is(err, ErrProvider):
		common.JSONError(w, http.StatusBadGateway, "PROVIDER_ERROR", "payment provider unavailable, try again", nil)
	default:
		common.WriteError(w, err)
	}
}
