package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo reads coupons from Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

const couponColumns = `id, code, valid_from, valid_to, discount_percent, active`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.ValidFrom, &c.ValidTo, &c.DiscountPercent, &c.Active)
	return c, err
}

// GetByCode looks a coupon up by its canonical code.
func (r *Repo) GetByCode(ctx context.Context, code string) (Coupon, error) {
	c, err := scanCoupon(r.Pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, NormalizeCode(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("get coupon by code: %w", err)
	}
	return c, nil
}

// GetByID looks a coupon up by id.
func (r *Repo) GetByID(ctx context.Context, id int64) (Coupon, error) {
	c, err := scanCoupon(r.Pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("get coupon by id: %w", err)
	}
	return c, nil
}
