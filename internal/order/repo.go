package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/blessed234640/snake-shop/internal/currency"
)

// ErrNotFound is returned when the order does not exist.
var ErrNotFound = errors.New("order not found")

// Repo persists order snapshots in Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

// CreateSnapshot inserts the order and all of its items in one transaction
// and returns the assigned order id. Partial snapshots are impossible; any
// failure rolls the whole insert back.
func (r *Repo) CreateSnapshot(ctx context.Context, o *Order) (int64, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			email, first_name, last_name, address, postal_code, city,
			currency, exchange_rate, subtotal, discount_percent, coupon_id,
			shipping_weight_g, shipping_cost, shipping_cost_base,
			grand_total, original_total_base, paid
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,false)
		RETURNING id`,
		o.Email, o.FirstName, o.LastName, o.Address, o.PostalCode, o.City,
		string(o.Currency), o.ExchangeRate, o.Subtotal, o.DiscountPercent, o.CouponID,
		o.ShippingWeightG, o.ShippingCost, o.ShippingCostBase,
		o.GrandTotal, o.OriginalTotalBase,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = id
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, price, quantity)
			VALUES ($1,$2,$3,$4)
			RETURNING id`,
			id, item.ProductID, item.Price, item.Quantity,
		).Scan(&item.ID)
		if err != nil {
			return 0, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	o.ID = id
	return id, nil
}

// GetByID loads an order with its items.
func (r *Repo) GetByID(ctx context.Context, id int64) (Order, error) {
	var (
		o            Order
		ccy          string
		rate         string
		subtotal     string
		shipCost     string
		shipBase     string
		grand        string
		originalBase string
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, address, postal_code, city,
		       currency, exchange_rate::text, subtotal::text, discount_percent,
		       coupon_id, shipping_weight_g, shipping_cost::text,
		       shipping_cost_base::text, grand_total::text,
		       original_total_base::text, paid,
		       COALESCE(provider_session_id, ''), created_at
		FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.Email, &o.FirstName, &o.LastName, &o.Address, &o.PostalCode, &o.City,
		&ccy, &rate, &subtotal, &o.DiscountPercent,
		&o.CouponID, &o.ShippingWeightG, &shipCost,
		&shipBase, &grand, &originalBase, &o.Paid,
		&o.ProviderSessionID, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := parseAmounts(&o, ccy, rate, subtotal, shipCost, shipBase, grand, originalBase); err != nil {
		return Order{}, err
	}

	rows, err := r.Pool.Query(ctx, `
		SELECT id, order_id, product_id, price::text, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item  Item
			price string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &price, &item.Quantity); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		item.Price, err = decimal.NewFromString(price)
		if err != nil {
			return Order{}, fmt.Errorf("parse item price: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// SetProviderSession records the payment-provider session handed to the
// buyer. Retried checkouts overwrite the previous session id.
func (r *Repo) SetProviderSession(ctx context.Context, id int64, sessionID string) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE orders SET provider_session_id = $2 WHERE id = $1`, id, sessionID)
	if err != nil {
		return fmt.Errorf("set provider session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid flips the payment flag. It is idempotent so replayed provider
// webhooks are harmless.
func (r *Repo) MarkPaid(ctx context.Context, id int64) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE orders SET paid = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func parseAmounts(o *Order, ccy, rate, subtotal, shipCost, shipBase, grand, originalBase string) error {
	var err error
	o.Currency = currency.Code(ccy)
	if o.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return fmt.Errorf("parse exchange rate: %w", err)
	}
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return fmt.Errorf("parse subtotal: %w", err)
	}
	if o.ShippingCost, err = decimal.NewFromString(shipCost); err != nil {
		return fmt.Errorf("parse shipping cost: %w", err)
	}
	if o.ShippingCostBase, err = decimal.NewFromString(shipBase); err != nil {
		return fmt.Errorf("parse base shipping cost: %w", err)
	}
	if o.GrandTotal, err = decimal.NewFromString(grand); err != nil {
		return fmt.Errorf("parse grand total: %w", err)
	}
	if o.OriginalTotalBase, err = decimal.NewFromString(originalBase); err != nil {
		return fmt.Errorf("parse base total: %w", err)
	}
	return nil
}
