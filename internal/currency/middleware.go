package currency

import (
	"context"
	"net/http"
	"strings"
)

type localeKey struct{}

// WithLocale stores the resolved locale on the context.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFromContext returns the resolved locale, or DefaultLocale when the
// middleware did not run.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultLocale
	}
	if v, ok := ctx.Value(localeKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultLocale
}

// LocaleMiddleware resolves the buyer's locale per request so that pricing
// receives it as an explicit parameter. Resolution order: the "locale" query
// parameter, then the "locale" cookie, then the first Accept-Language tag.
// Unknown locales resolve to the table's default entry.
func LocaleMiddleware(table *Table, def string) func(http.Handler) http.Handler {
	if def == "" {
		def = DefaultLocale
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := strings.TrimSpace(r.URL.Query().Get("locale"))
			if locale == "" {
				if c, err := r.Cookie("locale"); err == nil {
					locale = strings.TrimSpace(c.Value)
				}
			}
			if locale == "" {
				locale = firstLanguageTag(r.Header.Get("Accept-Language"))
			}
			if locale == "" {
				locale = def
			}
			entry := table.RateFor(locale)
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), entry.Locale)))
		})
	}
}

func firstLanguageTag(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(strings.TrimSpace(first), ";")
	return strings.TrimSpace(tag)
}
