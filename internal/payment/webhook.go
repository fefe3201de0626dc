package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/queue"
)

// SignatureHeader carries the webhook signature in the Stripe scheme:
// "t=<unix>,v1=<hex hmac-sha256 of '<unix>.<body>'>".
const SignatureHeader = "Stripe-Signature"

// DefaultSignatureTolerance bounds how old a signed webhook may be.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	errBadSignatureHeader = errors.New("malformed signature header")
	errSignatureMismatch  = errors.New("signature mismatch")
	errSignatureExpired   = errors.New("signature timestamp outside tolerance")
)

// VerifySignature checks the webhook HMAC against the shared secret.
func VerifySignature(secret, header string, body []byte, tolerance time.Duration, now time.Time) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return errBadSignatureHeader
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return errBadSignatureHeader
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return errSignatureExpired
		}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return errSignatureMismatch
}

// SignPayload produces a signature header for the body. Used by tests and
// the local webhook replay tool.
func SignPayload(secret string, body []byte, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type paidMarker interface {
	MarkPaid(ctx context.Context, id int64) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Webhook settles orders from provider callbacks. MarkPaid is idempotent so
// replayed deliveries are harmless, and the receipt job is deduped on the
// order id.
type Webhook struct {
	Orders    paidMarker
	Secret    string
	Tolerance time.Duration
	Jobs      jobEnqueuer
	Logger    zerolog.Logger
	Now       func() time.Time
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

// Handle processes a single provider webhook delivery.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil || h.Secret == "" {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "webhook not configured", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload", nil)
		return
	}
	tolerance := h.Tolerance
	if tolerance == 0 {
		tolerance = DefaultSignatureTolerance
	}
	if err := VerifySignature(h.Secret, r.Header.Get(SignatureHeader), body, tolerance, h.now()); err != nil {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event payload", nil)
		return
	}
	if event.Type != "checkout.session.completed" {
		// Unhandled event types are acknowledged so the provider stops
		// redelivering them.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	orderID, err := strconv.ParseInt(event.Data.Object.ClientReferenceID, 10, 64)
	if err != nil || orderID < 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order reference", nil)
		return
	}

	if err := h.Orders.MarkPaid(r.Context(), orderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order settlement failed", nil)
		return
	}
	h.Logger.Info().Int64("order_id", orderID).Str("provider_session_id", event.Data.Object.ID).Msg("order marked paid")
	h.enqueueReceipt(r.Context(), orderID)
	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) enqueueReceipt(ctx context.Context, orderID int64) {
	if h.Jobs == nil {
		return
	}
	payload, err := json.Marshal(order.InvoicePayload{OrderID: orderID})
	if err != nil {
		return
	}
	job := queue.Job{
		Kind:     order.KindReceiptEmail,
		Payload:  payload,
		DedupKey: fmt.Sprintf("%s:%d", order.KindReceiptEmail, orderID),
	}
	if err := h.Jobs.Enqueue(ctx, job); err != nil {
		h.Logger.Error().Err(err).Int64("order_id", orderID).Msg("enqueue receipt job failed")
	}
}

func (h Webhook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
