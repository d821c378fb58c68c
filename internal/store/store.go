package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gudangpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("duplicate")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports available vs requested for the first line
// item that fails the availability check. errors.Is(err, ErrInsufficientStock)
// matches it.
type InsufficientStockError struct {
	ProductName string
	VariantName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	target := e.ProductName
	if e.VariantName != "" {
		target = fmt.Sprintf("%s (%s)", e.ProductName, e.VariantName)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", target, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Repository is the persistence collaborator for the inventory workflow.
// Stock adjustments are guarded arithmetic updates: the store applies the
// delta in place and fails the single adjustment if it would drive the
// quantity negative. There is no cross-adjustment transaction boundary.
type Repository interface {
	// Catalog.
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) (*domain.Product, error)
	NextNumericSKU(ctx context.Context) (string, error)

	// Categories.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// Stock ledger operations. A nil buyPrice leaves the buy price untouched;
	// a non-nil one overwrites it (last-purchase-price-wins). Variant
	// adjustments also apply the delta to the parent's aggregate quantity.
	AdjustProductStock(ctx context.Context, productID string, delta int, buyPrice *decimal.Decimal) error
	AdjustVariantStock(ctx context.Context, productID string, variantID string, delta int, buyPrice *decimal.Decimal) error

	// Purchase/order ledger (append-only).
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)
	CountOrdersBetween(ctx context.Context, from time.Time, to time.Time) (int, error)

	// Reporting.
	GetDashboardStats(ctx context.Context) (domain.DashboardStats, error)
	ListProductsBelowReorderPoint(ctx context.Context, limit int) ([]domain.Product, error)

	// Users.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
