package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
)

func seedProduct(t *testing.T, s *Store, sku string, name string, stock int) *domain.Product {
	t.Helper()
	ctx := context.Background()
	category, err := s.CreateCategory(ctx, domain.Category{Name: "Kategori " + sku})
	require.NoError(t, err)
	created, err := s.CreateProduct(ctx, domain.Product{
		SKU:           sku,
		Name:          name,
		CategoryID:    category.ID,
		BuyPrice:      decimal.NewFromInt(1000),
		SellPrice:     decimal.NewFromInt(1500),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return created
}

func TestAdjustProductStockGuardsNegative(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, "0000010", "Beras", 3)

	err := s.AdjustProductStock(ctx, product.ID, -5, nil)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	var insufficient *store.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 3, insufficient.Available)
	require.Equal(t, 5, insufficient.Requested)

	// The failed adjustment must not change anything.
	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, after.StockQuantity)

	require.NoError(t, s.AdjustProductStock(ctx, product.ID, -3, nil))
	after, err = s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, after.StockQuantity)
}

func TestAdjustProductStockSetsBuyPrice(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, "0000011", "Gula", 2)

	newPrice := decimal.NewFromInt(1200)
	require.NoError(t, s.AdjustProductStock(ctx, product.ID, 8, &newPrice))

	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 10, after.StockQuantity)
	require.True(t, after.BuyPrice.Equal(newPrice))
}

func TestAdjustVariantStockMirrorsAggregate(t *testing.T) {
	s := New()
	ctx := context.Background()
	category, err := s.CreateCategory(ctx, domain.Category{Name: "Fashion"})
	require.NoError(t, err)

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:        "0000020",
		Name:       "Kaos",
		CategoryID: category.ID,
		Variants: []domain.Variant{
			{ID: "var-s", Name: "S", StockQuantity: 4},
			{ID: "var-m", Name: "M", StockQuantity: 6},
		},
		StockQuantity: 10,
	})
	require.NoError(t, err)

	require.NoError(t, s.AdjustVariantStock(ctx, product.ID, "var-s", -3, nil))

	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, after.Variants[0].StockQuantity)
	require.Equal(t, 6, after.Variants[1].StockQuantity)
	require.Equal(t, 7, after.StockQuantity)

	err = s.AdjustVariantStock(ctx, product.ID, "var-s", -2, nil)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	err = s.AdjustVariantStock(ctx, product.ID, "var-x", 1, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := seedProduct(t, s, "0000030", "Asli", 1)

	_, err := s.CreateProduct(ctx, domain.Product{
		SKU:        "0000030",
		Name:       "Tiruan",
		CategoryID: first.CategoryID,
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestDeleteProductFreesSKU(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, "0000040", "Sekali Pakai", 1)

	_, err := s.DeleteProduct(ctx, product.ID)
	require.NoError(t, err)

	_, err = s.GetProductByID(ctx, product.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The SKU is reusable once the product is gone.
	_, err = s.CreateProduct(ctx, domain.Product{
		SKU:        "0000040",
		Name:       "Pengganti",
		CategoryID: product.CategoryID,
	})
	require.NoError(t, err)
}

func TestNextNumericSKUSkipsNonNumeric(t *testing.T) {
	s := New()
	ctx := context.Background()

	sku, err := s.NextNumericSKU(ctx)
	require.NoError(t, err)
	require.Equal(t, "0000001", sku)

	seedProduct(t, s, "0000007", "Tujuh", 1)
	seedProduct(t, s, "ABC-99", "Kode Bebas", 1)

	sku, err = s.NextNumericSKU(ctx)
	require.NoError(t, err)
	require.Equal(t, "0000008", sku)
}

func TestListProductsSearchAndPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedProduct(t, s, "0000050", "Beras Premium", 1)
	seedProduct(t, s, "0000051", "Beras Medium", 1)
	seedProduct(t, s, "0000052", "Gula Pasir", 1)

	products, total, err := s.ListProducts(ctx, domain.ProductFilter{Page: 1, Limit: 10, Search: "BERAS"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, products, 2)

	products, total, err = s.ListProducts(ctx, domain.ProductFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, products, 1)

	products, _, err = s.ListProducts(ctx, domain.ProductFilter{Page: 1, Limit: 10, Search: "0000052"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Gula Pasir", products[0].Name)
}

func TestListProductsFilterByCategoryName(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, "0000060", "Dalam Kategori", 1)
	seedProduct(t, s, "0000061", "Kategori Lain", 1)

	products, total, err := s.ListProducts(ctx, domain.ProductFilter{Page: 1, Limit: 10, Category: "kategori 0000060"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, product.ID, products[0].ID)
}

func TestCreateOrderRejectsDuplicateNumber(t *testing.T) {
	s := New()
	ctx := context.Background()

	order := domain.Order{
		OrderNumber:  "ORD-20260831-0001",
		CustomerName: "Budi",
		Items:        []domain.OrderLine{{ProductID: "prd-1", ProductName: "Apa Saja", Quantity: 1}},
		TotalAmount:  decimal.NewFromInt(5000),
	}
	_, err := s.CreateOrder(ctx, order)
	require.NoError(t, err)

	_, err = s.CreateOrder(ctx, order)
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCountOrdersBetween(t *testing.T) {
	s := New()
	ctx := context.Background()

	dayStart := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	makeOrder := func(number string, at time.Time) {
		_, err := s.CreateOrder(ctx, domain.Order{
			OrderNumber:  number,
			CustomerName: "Budi",
			Items:        []domain.OrderLine{{ProductID: "prd-1", Quantity: 1}},
			CreatedAt:    at,
		})
		require.NoError(t, err)
	}
	makeOrder("ORD-20260830-0001", dayStart.Add(-2*time.Hour))
	makeOrder("ORD-20260831-0001", dayStart.Add(1*time.Hour))
	makeOrder("ORD-20260831-0002", dayStart.Add(23*time.Hour))

	count, err := s.CountOrdersBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestCloneOnReadIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, "0000070", "Asli", 5)

	product.Name = "Diubah Di Luar"
	product.StockQuantity = 0

	stored, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, "Asli", stored.Name)
	require.Equal(t, 5, stored.StockQuantity)
}

func TestGetDashboardStatsAggregates(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedProduct(t, s, "0000080", "Tunggal", 5)

	_, err := s.CreateOrder(ctx, domain.Order{
		OrderNumber:  "ORD-20260831-0005",
		CustomerName: "Budi",
		Status:       domain.OrderStatusPending,
		Items:        []domain.OrderLine{{ProductID: "prd-1", Quantity: 2}},
		TotalAmount:  decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
	_, err = s.CreateOrder(ctx, domain.Order{
		OrderNumber:  "ORD-20260831-0006",
		CustomerName: "BUDI",
		Status:       domain.OrderStatusCompleted,
		Items:        []domain.OrderLine{{ProductID: "prd-1", Quantity: 1}},
		TotalAmount:  decimal.NewFromInt(15000),
	})
	require.NoError(t, err)
	_, err = s.CreatePurchase(ctx, domain.Purchase{
		Items:       []domain.PurchaseLine{{ProductID: "prd-1", Quantity: 10}},
		TotalAmount: decimal.NewFromInt(100000),
	})
	require.NoError(t, err)

	stats, err := s.GetDashboardStats(ctx)
	require.NoError(t, err)
	require.True(t, stats.TotalSales.Equal(decimal.NewFromInt(45000)))
	require.True(t, stats.TotalPurchases.Equal(decimal.NewFromInt(100000)))
	require.Equal(t, 1, stats.ActiveOrders)
	require.Equal(t, 1, stats.TotalCustomers)
	require.Equal(t, 1, stats.TotalProducts)
}

func TestListProductsBelowReorderPoint(t *testing.T) {
	s := New()
	ctx := context.Background()
	category, err := s.CreateCategory(ctx, domain.Category{Name: "Stok"})
	require.NoError(t, err)

	low, err := s.CreateProduct(ctx, domain.Product{
		SKU: "0000090", Name: "Kritis", CategoryID: category.ID,
		StockQuantity: 1, ReorderPoint: 10,
	})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, domain.Product{
		SKU: "0000091", Name: "Aman", CategoryID: category.ID,
		StockQuantity: 50, ReorderPoint: 10,
	})
	require.NoError(t, err)

	products, err := s.ListProductsBelowReorderPoint(ctx, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, low.ID, products[0].ID)
}
