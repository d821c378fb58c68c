package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gudangpos/backend/internal/domain"
)

// mapCache is a minimal in-process ViewCache for exercising the report
// caching path without Redis.
type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := c.entries[key]
	return payload, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.entries[key] = payload
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func product(id string, sku string, name string, stock int, reorderPoint int) domain.Product {
	return domain.Product{ID: id, SKU: sku, Name: name, StockQuantity: stock, ReorderPoint: reorderPoint}
}

func TestBuildReportFiltersAndSorts(t *testing.T) {
	advisor := NewAdvisor(nil, 0)

	report := advisor.BuildReport(context.Background(), []domain.Product{
		product("prd-1", "0000001", "Aman", 40, 10),
		product("prd-2", "0000002", "Rendah", 4, 10),
		product("prd-3", "0000003", "Habis", 0, 10),
		product("prd-4", "0000004", "Pas", 10, 10),
	})

	require.NotEmpty(t, report.GeneratedAt)
	require.Len(t, report.Suggestions, 3)
	// Sorted by deficit, worst first.
	require.Equal(t, "prd-3", report.Suggestions[0].ProductID)
	require.Equal(t, "prd-2", report.Suggestions[1].ProductID)
	require.Equal(t, "prd-4", report.Suggestions[2].ProductID)
}

func TestUrgencyBands(t *testing.T) {
	require.Equal(t, "critical", urgency(0, 10))
	require.Equal(t, "critical", urgency(-1, 0))
	require.Equal(t, "high", urgency(4, 10))
	require.Equal(t, "high", urgency(5, 10))
	require.Equal(t, "moderate", urgency(6, 10))
	require.Equal(t, "moderate", urgency(1, 1))
}

func TestSuggestedQtyRestocksToDoubleReorderPoint(t *testing.T) {
	require.Equal(t, 20, suggestedQty(0, 10))
	require.Equal(t, 16, suggestedQty(4, 10))
	require.Equal(t, 10, suggestedQty(10, 10))
	// Zero reorder point still produces a positive suggestion.
	require.Equal(t, 1, suggestedQty(0, 0))
}

func TestBuildReportUsesCacheUntilInvalidated(t *testing.T) {
	cacheStore := newMapCache()
	advisor := NewAdvisor(cacheStore, time.Minute)
	ctx := context.Background()

	first := advisor.BuildReport(ctx, []domain.Product{
		product("prd-1", "0000001", "Rendah", 2, 10),
	})
	require.Len(t, first.Suggestions, 1)

	// A changed input is ignored while the cached report is live.
	cached := advisor.BuildReport(ctx, nil)
	require.Len(t, cached.Suggestions, 1)
	require.Equal(t, first.GeneratedAt, cached.GeneratedAt)

	advisor.Invalidate(ctx)
	fresh := advisor.BuildReport(ctx, nil)
	require.Empty(t, fresh.Suggestions)
}
