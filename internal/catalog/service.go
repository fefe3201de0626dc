package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/currency"
)

type repository interface {
	List(ctx context.Context, params ListParams) ([]Product, error)
	Count(ctx context.Context, params ListParams) (int64, error)
	GetBySlug(ctx context.Context, slug string) (Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Suggester proposes related product ids from co-purchase history.
type Suggester interface {
	SuggestFor(ctx context.Context, productIDs []int64, max int) ([]int64, error)
}

// Service orchestrates catalog queries, locale pricing and caching.
type Service struct {
	repo         repository
	cache        *Cache
	table        *currency.Table
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo         repository
	Cache        *Cache
	Table        *currency.Table
	DefaultLimit int
	MaxLimit     int
}

// ProductView is the public product payload with the price already converted
// to the request locale's currency.
type ProductView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	PriceDisplay string `json:"priceDisplay"`
	Currency     string `json:"currency"`
	WeightGrams  int    `json:"weightGrams"`
	Category     string `json:"category"`
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []ProductView
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("catalog: repository is required")
	}
	if cfg.Table == nil {
		cfg.Table = currency.NewTable()
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		repo:         cfg.Repo,
		cache:        cfg.Cache,
		table:        cfg.Table,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

type cachedList struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}

// ListProducts returns the filtered product list priced for the locale.
// Only the unfiltered front page is cached; prices are converted per request
// so one cached document serves every locale.
func (s *Service) ListProducts(ctx context.Context, params ListParams, locale string) (ListResult, error) {
	entry := s.table.RateFor(locale)

	if key, ok := s.listKey(params); ok {
		var cached cachedList
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return ListResult{Items: s.views(cached.Items, entry), Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	total, err := s.repo.Count(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	products, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	if key, ok := s.listKey(params); ok {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: products, Total: total})
	}
	return ListResult{Items: s.views(products, entry), Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns one product priced for the locale.
func (s *Service) GetProduct(ctx context.Context, slug, locale string) (ProductView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductView{}, badRequest("slug", "slug is required", nil)
	}
	entry := s.table.RateFor(locale)

	var product Product
	if hit, err := s.cache.GetJSON(ctx, detailCacheKey(slug), &product); err != nil || !hit {
		product, err = s.repo.GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ProductView{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
			}
			return ProductView{}, fmt.Errorf("get product: %w", err)
		}
		_ = s.cache.SetJSON(ctx, detailCacheKey(slug), product)
	}
	return s.view(product, entry), nil
}

// Related returns co-purchased products for the slug, priced for the locale.
// Suggestion order is preserved; products that have gone off sale are
// dropped from the result.
func (s *Service) Related(ctx context.Context, suggest Suggester, slug, locale string, limit int) ([]ProductView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, badRequest("slug", "slug is required", nil)
	}
	if limit < 1 {
		limit = 4
	}
	entry := s.table.RateFor(locale)

	product, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	ids, err := suggest.SuggestFor(ctx, []int64{product.ID}, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest related: %w", err)
	}
	if len(ids) == 0 {
		return []ProductView{}, nil
	}
	products, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load related: %w", err)
	}
	out := make([]ProductView, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.Available {
			continue
		}
		out = append(out, s.view(p, entry))
	}
	return out, nil
}

// Categories returns all categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) listKey(params ListParams) (string, bool) {
	if params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" {
		return "", false
	}
	return listCacheKey(), true
}

func (s *Service) views(products []Product, entry currency.Entry) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, s.view(p, entry))
	}
	return out
}

func (s *Service) view(p Product, entry currency.Entry) ProductView {
	price := currency.Convert(p.PriceBase, entry)
	return ProductView{
		ID:           p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		Description:  p.Description,
		Price:        price.Amount.StringFixed(2),
		PriceDisplay: currency.Format(price, entry),
		Currency:     string(entry.Code),
		WeightGrams:  p.WeightGrams,
		Category:     p.CategorySlug,
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
