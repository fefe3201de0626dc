package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/catalog"
	"github.com/blessed234640/snake-shop/internal/currency"
)

type fakeRepo struct {
	products []catalog.Product
}

func (f *fakeRepo) List(_ context.Context, params catalog.ListParams) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(f.products))
	for _, p := range f.products {
		if params.Category != "" && p.CategorySlug != params.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context, params catalog.ListParams) (int64, error) {
	items, _ := f.List(ctx, params)
	return int64(len(items)), nil
}

func (f *fakeRepo) GetBySlug(_ context.Context, slug string) (catalog.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (f *fakeRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		for _, p := range f.products {
			if p.ID == id {
				out[id] = p
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCategories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: 1, Name: "Snakes", Slug: "snakes"}}, nil
}

type fakeSuggester struct {
	ids []int64
}

func (f fakeSuggester) SuggestFor(context.Context, []int64, int) ([]int64, error) {
	return f.ids, nil
}

type productsResponse struct {
	Data       []catalog.ProductView `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"perPage"`
		TotalItems int `json:"totalItems"`
	} `json:"pagination"`
}

type detailResponse struct {
	Data catalog.ProductView `json:"data"`
}

func newHandler(t *testing.T) *catalog.Handler {
	t.Helper()
	repo := &fakeRepo{products: []catalog.Product{
		{ID: 1, Name: "Ball Python", Slug: "ball-python", PriceBase: decimal.RequireFromString("1000.00"), WeightGrams: 500, Available: true, CategoryID: 1, CategorySlug: "snakes"},
		{ID: 2, Name: "Corn Snake", Slug: "corn-snake", PriceBase: decimal.RequireFromString("750.50"), WeightGrams: 300, Available: true, CategoryID: 1, CategorySlug: "snakes"},
	}}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Repo:         repo,
		Table:        currency.NewTable(),
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	return &catalog.Handler{Service: svc}
}

func TestProductsListPricedForLocale(t *testing.T) {
	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req = req.WithContext(currency.WithLocale(req.Context(), "en"))
	rec := httptest.NewRecorder()
	handler.Products(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, 2, resp.Pagination.TotalItems)

	first := resp.Data[0]
	assert.Equal(t, "12.00", first.Price)
	assert.Equal(t, "$12.00", first.PriceDisplay)
	assert.Equal(t, "USD", first.Currency)
}

func TestProductsListBaseCurrency(t *testing.T) {
	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req = req.WithContext(currency.WithLocale(req.Context(), "ru"))
	rec := httptest.NewRecorder()
	handler.Products(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "1000.00", resp.Data[0].Price)
	assert.Equal(t, "1 000,00 ₽", resp.Data[0].PriceDisplay)
}

func TestProductDetail(t *testing.T) {
	handler := newHandler(t)

	router := chi.NewRouter()
	router.Get("/api/v1/products/{slug}", handler.ProductDetail)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/corn-snake", nil)
	req = req.WithContext(currency.WithLocale(req.Context(), "es"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp detailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Corn Snake", resp.Data.Name)
	// 750.50 * 0.011 = 8.2555, rounded half-up.
	assert.Equal(t, "8.26", resp.Data.Price)
	assert.Equal(t, "EUR", resp.Data.Currency)

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/products/anaconda", nil)
	mrec := httptest.NewRecorder()
	router.ServeHTTP(mrec, missing)
	assert.Equal(t, http.StatusNotFound, mrec.Code)
}

func TestRelatedProducts(t *testing.T) {
	handler := newHandler(t)
	handler.Suggest = fakeSuggester{ids: []int64{2}}

	router := chi.NewRouter()
	router.Get("/api/v1/products/{slug}/related", handler.Related)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/ball-python/related", nil)
	req = req.WithContext(currency.WithLocale(req.Context(), "en"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Corn Snake", resp.Data[0].Name)
	assert.Equal(t, "9.01", resp.Data[0].Price)
}

func TestProductsBadPagination(t *testing.T) {
	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=0", nil)
	rec := httptest.NewRecorder()
	handler.Products(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
