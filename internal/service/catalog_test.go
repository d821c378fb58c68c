package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
)

func TestCreateProductAssignsSequentialSKU(t *testing.T) {
	svc := newTestService(t)

	first := seedFlat(t, svc, "Produk Satu", 1, "1000", "2000")
	require.Equal(t, "0000001", first.SKU)

	second := seedFlat(t, svc, "Produk Dua", 1, "1000", "2000")
	require.Equal(t, "0000002", second.SKU)

	next, err := svc.NextSKU(staffCtx())
	require.NoError(t, err)
	require.Equal(t, "0000003", next)
}

func TestCreateProductKeepsExplicitSKU(t *testing.T) {
	svc := newTestService(t)

	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      "Barang Impor",
		SKU:       "IMP-2024-01",
		Category:  "Umum",
		SellPrice: price(t, "5000"),
	})
	require.NoError(t, err)
	require.Equal(t, "IMP-2024-01", product.SKU)

	_, err = svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      "Barang Kembar",
		SKU:       "IMP-2024-01",
		Category:  "Umum",
		SellPrice: price(t, "5000"),
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCreateProductVariantsDriveAggregateStock(t *testing.T) {
	svc := newTestService(t)

	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      "Sepatu Lari",
		Category:  "Olahraga",
		BuyPrice:  price(t, "200000"),
		SellPrice: price(t, "320000"),
		StockQty:  99, // ignored when variants are present
		Variants: []domain.VariantInput{
			{Name: "40", StockQty: 4},
			{Name: "41", StockQty: 6},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 10, product.StockQuantity)
	// Variant prices default to the product prices when left zero.
	require.True(t, product.Variants[0].BuyPrice.Equal(price(t, "200000")))
	require.True(t, product.Variants[0].SellPrice.Equal(price(t, "320000")))
	require.NotEmpty(t, product.Variants[0].ID)
}

func TestCreateProductResolvesCategoryByIDNameOrCreates(t *testing.T) {
	svc := newTestService(t)

	category, err := svc.CreateCategory(adminCtx(), domain.CategoryCreateRequest{Name: "Minuman"})
	require.NoError(t, err)

	byID := seedProductInCategory(t, svc, "Air Mineral", category.ID)
	require.Equal(t, category.ID, byID.CategoryID)

	byName := seedProductInCategory(t, svc, "Teh Botol", "minuman")
	require.Equal(t, category.ID, byName.CategoryID)

	fresh := seedProductInCategory(t, svc, "Keripik", "Cemilan")
	require.NotEqual(t, category.ID, fresh.CategoryID)

	categories, err := svc.ListCategories(staffCtx())
	require.NoError(t, err)
	require.Len(t, categories, 2)
}

func seedProductInCategory(t *testing.T, svc *Service, name string, categoryRef string) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      name,
		Category:  categoryRef,
		SellPrice: price(t, "4000"),
	})
	require.NoError(t, err)
	return product
}

func TestUpdateProductSellPriceSyncsVariants(t *testing.T) {
	svc := newTestService(t)
	product := seedVariants(t, svc, "Tas Ransel", 2, 2)

	newPrice := price(t, "199000")
	updated, err := svc.UpdateProduct(adminCtx(), product.ID, domain.ProductUpdateRequest{
		SellPrice: &newPrice,
	})
	require.NoError(t, err)
	require.True(t, updated.SellPrice.Equal(newPrice))
	for _, v := range updated.Variants {
		require.True(t, v.SellPrice.Equal(newPrice))
	}
}

func TestUpdateProductMergesOnlyProvidedFields(t *testing.T) {
	svc := newTestService(t)
	product := seedFlat(t, svc, "Lampu LED", 5, "12000", "18000")

	name := "Lampu LED 9W"
	updated, err := svc.UpdateProduct(adminCtx(), product.ID, domain.ProductUpdateRequest{
		Name: &name,
	})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Equal(t, 5, updated.StockQuantity)
	require.True(t, updated.SellPrice.Equal(price(t, "18000")))

	empty := "  "
	_, err = svc.UpdateProduct(adminCtx(), product.ID, domain.ProductUpdateRequest{
		Name: &empty,
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestDeleteProductRemovesFromListing(t *testing.T) {
	svc := newTestService(t)
	product := seedFlat(t, svc, "Sementara", 1, "1000", "2000")

	require.NoError(t, svc.DeleteProduct(adminCtx(), product.ID))

	_, err := svc.GetProduct(staffCtx(), product.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, svc.DeleteProduct(adminCtx(), product.ID), store.ErrNotFound)
}

func TestListProductsFiltersAndPaginates(t *testing.T) {
	svc := newTestService(t)
	for _, name := range []string{"Beras Premium", "Beras Medium", "Gula Pasir"} {
		seedFlat(t, svc, name, 5, "1000", "2000")
	}

	resp, err := svc.ListProducts(staffCtx(), domain.ProductFilter{Search: "beras"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Pagination.Total)
	require.Len(t, resp.Products, 2)

	paged, err := svc.ListProducts(staffCtx(), domain.ProductFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, paged.Pagination.Total)
	require.Equal(t, 2, paged.Pagination.Pages)
	require.Len(t, paged.Products, 1)
}

func TestDeleteCategoryInUseRejected(t *testing.T) {
	svc := newTestService(t)
	product := seedFlat(t, svc, "Terpakai", 1, "1000", "2000")

	require.ErrorIs(t, svc.DeleteCategory(adminCtx(), product.CategoryID), store.ErrInvalidInput)

	require.NoError(t, svc.DeleteProduct(adminCtx(), product.ID))
	require.NoError(t, svc.DeleteCategory(adminCtx(), product.CategoryID))
}

func TestCategoryMutationsRequireAdmin(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateCategory(staffCtx(), domain.CategoryCreateRequest{Name: "Gelap"})
	require.ErrorIs(t, err, ErrForbidden)

	require.ErrorIs(t, svc.DeleteCategory(staffCtx(), "cat-x"), ErrForbidden)
}
