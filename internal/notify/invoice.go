// Package notify renders and delivers transactional mail for orders. The
// worker consumes id-only queue payloads, loads the persisted snapshot and
// renders the invoice from the stored converted amounts; nothing is
// re-priced or re-converted at send time.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/queue"
)

type orderLoader interface {
	GetByID(ctx context.Context, id int64) (order.Order, error)
}

// Mailer turns order queue jobs into outgoing email.
type Mailer struct {
	Orders orderLoader
	Mail   common.EmailSender
	Table  *currency.Table
	Logger zerolog.Logger
}

// HandleInvoice is the queue handler for invoice jobs enqueued right after
// the snapshot.
func (m Mailer) HandleInvoice(ctx context.Context, job queue.Job) error {
	return m.send(ctx, job, "Your order", "Thank you for your order. Payment is being processed.")
}

// HandleReceipt is the queue handler for receipt jobs enqueued when the
// provider confirms payment.
func (m Mailer) HandleReceipt(ctx context.Context, job queue.Job) error {
	return m.send(ctx, job, "Payment received", "Your payment has been received. The order is on its way.")
}

func (m Mailer) send(ctx context.Context, job queue.Job, subjectPrefix, intro string) error {
	if m.Orders == nil || m.Mail == nil {
		return errors.New("notify: mailer not configured")
	}
	var payload order.InvoicePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode job payload: %w", err)
	}
	o, err := m.Orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("notify: load order %d: %w", payload.OrderID, err)
	}
	subject := fmt.Sprintf("%s #%d", subjectPrefix, o.ID)
	body := intro + "\n\n" + RenderInvoice(o, m.table())
	if err := m.Mail.Send(o.Email, subject, body); err != nil {
		return fmt.Errorf("notify: send to %s: %w", o.Email, err)
	}
	m.Logger.Info().Int64("order_id", o.ID).Str("kind", job.Kind).Msg("order mail sent")
	return nil
}

func (m Mailer) table() *currency.Table {
	if m.Table != nil {
		return m.Table
	}
	return currency.NewTable()
}

// RenderInvoice produces the plain-text invoice for a persisted order. All
// amounts come from the snapshot in the order's currency.
func RenderInvoice(o order.Order, table *currency.Table) string {
	entry := entryFor(o, table)

	var b strings.Builder
	fmt.Fprintf(&b, "Invoice for order #%d\n", o.ID)
	fmt.Fprintf(&b, "Billed to: %s %s, %s, %s %s\n\n", o.FirstName, o.LastName, o.Address, o.PostalCode, o.City)
	for _, it := range o.Items {
		line := currency.Money{Amount: it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))), Code: o.Currency}
		fmt.Fprintf(&b, "  %d x product %d  %s\n", it.Quantity, it.ProductID,
			currency.Format(line, entry))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal:  %s\n", currency.Format(currency.Money{Amount: o.Subtotal, Code: o.Currency}, entry))
	if o.DiscountPercent > 0 {
		fmt.Fprintf(&b, "Discount:  -%s (%d%%)\n",
			currency.Format(currency.Money{Amount: o.DiscountAmount(), Code: o.Currency}, entry), o.DiscountPercent)
	}
	fmt.Fprintf(&b, "Shipping:  %s (%dg)\n",
		currency.Format(currency.Money{Amount: o.ShippingCost, Code: o.Currency}, entry), o.ShippingWeightG)
	fmt.Fprintf(&b, "Total:     %s\n", currency.Format(currency.Money{Amount: o.GrandTotal, Code: o.Currency}, entry))
	return b.String()
}

func entryFor(o order.Order, table *currency.Table) currency.Entry {
	for _, locale := range table.Locales() {
		if e := table.RateFor(locale); e.Code == o.Currency {
			return e
		}
	}
	return table.Default()
}
