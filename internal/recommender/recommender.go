// Package recommender keeps a bought-together co-occurrence counter in Redis
// sorted sets, one per product, and answers "customers also bought" queries.
package recommender

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Engine records purchases and suggests related products.
type Engine struct {
	R      *redis.Client
	Prefix string
}

func (e Engine) key(productID int64) string {
	if e.Prefix == "" {
		return fmt.Sprintf("product:%d:purchased_with", productID)
	}
	return fmt.Sprintf("%s:product:%d:purchased_with", e.Prefix, productID)
}

// ProductsBought bumps the co-occurrence counters for every pair of products
// in a paid order. Single-item orders record nothing.
func (e Engine) ProductsBought(ctx context.Context, productIDs []int64) error {
	if e.R == nil || len(productIDs) < 2 {
		return nil
	}
	pipe := e.R.Pipeline()
	for _, id := range productIDs {
		for _, other := range productIDs {
			if id == other {
				continue
			}
			pipe.ZIncrBy(ctx, e.key(id), 1, strconv.FormatInt(other, 10))
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("record purchase pairs: %w", err)
	}
	return nil
}

// SuggestFor returns up to max product ids bought together with the given
// ones, highest co-occurrence first. Products already in the input are
// excluded.
func (e Engine) SuggestFor(ctx context.Context, productIDs []int64, max int) ([]int64, error) {
	if e.R == nil || len(productIDs) == 0 || max <= 0 {
		return nil, nil
	}
	exclude := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		exclude[id] = struct{}{}
	}

	scores := map[int64]float64{}
	for _, id := range productIDs {
		members, err := e.R.ZRevRangeWithScores(ctx, e.key(id), 0, int64(max+len(productIDs))).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("read purchased_with: %w", err)
		}
		for _, m := range members {
			raw, ok := m.Member.(string)
			if !ok {
				continue
			}
			other, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			if _, skip := exclude[other]; skip {
				continue
			}
			scores[other] += m.Score
		}
	}

	ranked := make([]int64, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] == scores[ranked[j]] {
			return ranked[i] < ranked[j]
		}
		return scores[ranked[i]] > scores[ranked[j]]
	})
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked, nil
}
