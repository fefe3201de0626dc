// Package currency holds the locale to currency mapping and the money
// conversion rules used by pricing, orders and the payment boundary.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Code identifies a supported settlement currency.
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	RUB Code = "RUB"
)

// DefaultLocale is used whenever a request carries no resolvable locale.
const DefaultLocale = "en"

// Entry describes how amounts are converted and displayed for one locale.
type Entry struct {
	Locale       string
	Code         Code
	Rate         decimal.Decimal
	Symbol       string
	ProviderCode string
}

// Table is the process-wide, read-only locale to currency mapping.
// Catalog prices and shipping tiers are authored in the base currency;
// every conversion originates from it.
type Table struct {
	entries map[string]Entry
	def     Entry
}

// NewTable builds the built-in currency table. The default entry always
// exists and backs lookups for unknown locales.
func NewTable() *Table {
	entries := map[string]Entry{
		"en": {Locale: "en", Code: USD, Rate: decimal.NewFromFloat(0.012), Symbol: "$", ProviderCode: "usd"},
		"ru": {Locale: "ru", Code: RUB, Rate: decimal.NewFromInt(1), Symbol: "₽", ProviderCode: "rub"},
		"es": {Locale: "es", Code: EUR, Rate: decimal.NewFromFloat(0.011), Symbol: "€", ProviderCode: "eur"},
	}
	return &Table{entries: entries, def: entries[DefaultLocale]}
}

// RateFor returns the entry for the locale, or the default entry when the
// locale is unknown. It never fails.
func (t *Table) RateFor(locale string) Entry {
	if t == nil {
		return NewTable().def
	}
	norm := strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(norm, "-_"); idx > 0 {
		norm = norm[:idx]
	}
	if e, ok := t.entries[norm]; ok {
		return e
	}
	return t.def
}

// Default returns the fallback entry.
func (t *Table) Default() Entry {
	if t == nil {
		return NewTable().def
	}
	return t.def
}

// Locales lists the supported locales.
func (t *Table) Locales() []string {
	out := make([]string, 0, len(t.entries))
	for l := range t.entries {
		out = append(out, l)
	}
	return out
}
