package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
)

// newTestStore connects to the database named by TEST_DATABASE_URL. The
// suite is skipped when the variable is unset so unit runs stay green
// without a server.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func uniqueSKU(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("T%d", time.Now().UnixNano())
}

func seedTestProduct(t *testing.T, s *Store, stock int) *domain.Product {
	t.Helper()
	ctx := context.Background()

	category, err := s.CreateCategory(ctx, domain.Category{Name: "Test " + uniqueSKU(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteCategory(context.Background(), category.ID) })

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:           uniqueSKU(t),
		Name:          "Produk Uji",
		CategoryID:    category.ID,
		BuyPrice:      decimal.NewFromInt(1000),
		SellPrice:     decimal.NewFromInt(1500),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = s.DeleteProduct(context.Background(), product.ID) })
	return product
}

func TestProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	product := seedTestProduct(t, s, 7)

	loaded, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, product.SKU, loaded.SKU)
	require.Equal(t, 7, loaded.StockQuantity)
	require.True(t, loaded.SellPrice.Equal(decimal.NewFromInt(1500)))

	loaded.Name = "Produk Uji Baru"
	updated, err := s.UpdateProduct(ctx, *loaded)
	require.NoError(t, err)
	require.Equal(t, "Produk Uji Baru", updated.Name)
}

func TestDuplicateSKURejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	product := seedTestProduct(t, s, 1)

	_, err := s.CreateProduct(ctx, domain.Product{
		SKU:        product.SKU,
		Name:       "Kembar",
		CategoryID: product.CategoryID,
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestGuardedStockAdjustment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	product := seedTestProduct(t, s, 3)

	err := s.AdjustProductStock(ctx, product.ID, -5, nil)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, after.StockQuantity)

	newPrice := decimal.NewFromInt(1200)
	require.NoError(t, s.AdjustProductStock(ctx, product.ID, 2, &newPrice))
	after, err = s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 5, after.StockQuantity)
	require.True(t, after.BuyPrice.Equal(newPrice))
}

func TestVariantAdjustmentMirrorsAggregate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	category, err := s.CreateCategory(ctx, domain.Category{Name: "Varian " + uniqueSKU(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteCategory(context.Background(), category.ID) })

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:        uniqueSKU(t),
		Name:       "Produk Varian",
		CategoryID: category.ID,
		Variants: []domain.Variant{
			{ID: "var-test-a", Name: "A", StockQuantity: 4},
			{ID: "var-test-b", Name: "B", StockQuantity: 6},
		},
		StockQuantity: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = s.DeleteProduct(context.Background(), product.ID) })

	require.NoError(t, s.AdjustVariantStock(ctx, product.ID, "var-test-a", -3, nil))

	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 7, after.StockQuantity)
	for _, v := range after.Variants {
		if v.ID == "var-test-a" {
			require.Equal(t, 1, v.StockQuantity)
		}
	}

	err = s.AdjustVariantStock(ctx, product.ID, "var-test-a", -2, nil)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestOrderNumberUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	number := "ORD-TEST-" + uniqueSKU(t)
	order := domain.Order{
		OrderNumber:  number,
		CustomerName: "Budi",
		Status:       domain.OrderStatusPending,
		Items:        []domain.OrderLine{{ProductID: "prd-x", ProductName: "Apa Saja", Quantity: 1}},
		TotalAmount:  decimal.NewFromInt(5000),
	}
	created, err := s.CreateOrder(ctx, order)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = s.CreateOrder(ctx, order)
	require.ErrorIs(t, err, store.ErrDuplicate)
}
