package catalog

import (
	"github.com/shopspring/decimal"
)

// Product is one sellable catalog item. Price is authored in the base
// currency; WeightGrams feeds the shipping tiers.
type Product struct {
	ID           int64
	Name         string
	Slug         string
	Description  string
	PriceBase    decimal.Decimal
	WeightGrams  int
	Available    bool
	CategoryID   int64
	CategorySlug string
}

// Category groups products for browsing.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	Limit    int
}
