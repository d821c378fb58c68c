package insights

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"gudangpos/backend/internal/cache"
	"gudangpos/backend/internal/domain"
)

const reportCacheKey = "gudangpos:insights:reorder"

// Advisor turns the current stock picture into a restock worklist. Results
// are cached briefly since the report is recomputed from every product row.
type Advisor struct {
	cache    cache.ViewCache
	cacheTTL time.Duration
}

func NewAdvisor(cacheStore cache.ViewCache, cacheTTL time.Duration) *Advisor {
	if cacheStore == nil {
		cacheStore = cache.NoopViewCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Advisor{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

func (a *Advisor) BuildReport(ctx context.Context, products []domain.Product) domain.ReorderReport {
	if payload, ok, err := a.cache.Get(ctx, reportCacheKey); err == nil && ok {
		var cached domain.ReorderReport
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached
		}
	}

	suggestions := make([]domain.ReorderSuggestion, 0, len(products))
	for _, p := range products {
		if p.StockQuantity > p.ReorderPoint {
			continue
		}
		suggestions = append(suggestions, domain.ReorderSuggestion{
			ProductID:    p.ID,
			SKU:          p.SKU,
			Name:         p.Name,
			CurrentStock: p.StockQuantity,
			ReorderPoint: p.ReorderPoint,
			SuggestedQty: suggestedQty(p.StockQuantity, p.ReorderPoint),
			Urgency:      urgency(p.StockQuantity, p.ReorderPoint),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		di := suggestions[i].CurrentStock - suggestions[i].ReorderPoint
		dj := suggestions[j].CurrentStock - suggestions[j].ReorderPoint
		if di == dj {
			return suggestions[i].SKU < suggestions[j].SKU
		}
		return di < dj
	})

	report := domain.ReorderReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Suggestions: suggestions,
	}

	if payload, err := json.Marshal(report); err == nil {
		_ = a.cache.Set(ctx, reportCacheKey, payload, a.cacheTTL)
	}
	return report
}

// Invalidate drops the cached report. Called after any stock mutation.
func (a *Advisor) Invalidate(ctx context.Context) {
	_ = a.cache.Delete(ctx, reportCacheKey)
}

// suggestedQty restocks to double the reorder point so a product does not
// fall straight back onto the report after one sale.
func suggestedQty(stock int, reorderPoint int) int {
	target := reorderPoint * 2
	if target < 1 {
		target = 1
	}
	qty := target - stock
	if qty < 1 {
		qty = 1
	}
	return qty
}

func urgency(stock int, reorderPoint int) string {
	switch {
	case stock <= 0:
		return "critical"
	case reorderPoint > 0 && stock*2 <= reorderPoint:
		return "high"
	default:
		return "moderate"
	}
}
