package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Repo runs catalog queries against Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

const productColumns = `p.id, p.name, p.slug, p.description, p.price::text, p.weight_g, p.available, p.category_id, c.slug`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		priceRaw string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &priceRaw, &p.WeightGrams, &p.Available, &p.CategoryID, &p.CategorySlug); err != nil {
		return Product{}, err
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return Product{}, fmt.Errorf("parse price %q: %w", priceRaw, err)
	}
	p.PriceBase = price
	return p, nil
}

// List returns available products matching the filters, newest first.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Product, error) {
	var (
		where = []string{"p.available"}
		args  []any
	)
	if params.Category != "" {
		args = append(args, params.Category)
		where = append(where, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		where = append(where, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE %s
		ORDER BY p.id DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, params.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of available products matching the filters.
func (r *Repo) Count(ctx context.Context, params ListParams) (int64, error) {
	var (
		where = []string{"p.available"}
		args  []any
	)
	if params.Category != "" {
		args = append(args, params.Category)
		where = append(where, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		where = append(where, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}
	query := fmt.Sprintf(`
		SELECT count(*)
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE %s`, strings.Join(where, " AND "))

	var total int64
	if err := r.Pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// GetBySlug returns one available product.
func (r *Repo) GetBySlug(ctx context.Context, slug string) (Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.slug = $1 AND p.available`, productColumns)
	p, err := scanProduct(r.Pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

// GetByID returns one product regardless of availability. Cart items keep
// referencing products that were taken off sale after being added.
func (r *Repo) GetByID(ctx context.Context, id int64) (Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`, productColumns)
	p, err := scanProduct(r.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetByIDs returns the products for the given ids, keyed by id. Missing ids
// are simply absent from the map.
func (r *Repo) GetByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if len(ids) == 0 {
		return map[int64]Product{}, nil
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)`, productColumns)
	rows, err := r.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ListCategories returns all categories ordered by name.
func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
