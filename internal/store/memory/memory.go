package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	skuIndex     map[string]string // sku -> product id
	categories   map[string]domain.Category
	purchases    map[string]domain.Purchase
	orders       map[string]domain.Order
	orderNumbers map[string]string // order number -> order id
	users        map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		skuIndex:     make(map[string]string),
		categories:   make(map[string]domain.Category),
		purchases:    make(map[string]domain.Purchase),
		orders:       make(map[string]domain.Order),
		orderNumbers: make(map[string]string),
		users:        make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials are
// read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; hardcoded dev
// defaults are used with a warning when unset.
func seedUsers(log *zap.SugaredLogger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warnw("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		email    string
		name     string
		password string
		role     string
	}{
		{"admin@gudangpos.local", "Admin Gudang", adminPwd, domain.RoleAdmin},
		{"staff@gudangpos.local", "Staf Toko", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalw("failed to hash seed password", "email", u.email, "error", err)
		}
		users[u.email] = domain.UserAccount{
			ID:           xid.New("usr"),
			Email:        u.email,
			FullName:     u.name,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a small demo catalog.
func NewSeeded(log *zap.SugaredLogger) *Store {
	s := New()
	now := time.Now().UTC()

	electronics := domain.Category{ID: xid.New("cat"), Name: "Elektronik", Active: true, CreatedAt: now}
	phones := domain.Category{ID: xid.New("cat"), Name: "Ponsel", ParentID: electronics.ID, Active: true, CreatedAt: now}
	grocery := domain.Category{ID: xid.New("cat"), Name: "Sembako", Active: true, CreatedAt: now}
	for _, c := range []domain.Category{electronics, phones, grocery} {
		s.categories[c.ID] = c
	}

	price := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }

	products := []domain.Product{
		{
			ID: xid.New("prd"), SKU: "0000001", Name: "Beras Premium 5kg",
			CategoryID: grocery.ID, Unit: "sack",
			BuyPrice: price("62000"), SellPrice: price("72500"),
			StockQuantity: 40, ReorderPoint: 10,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: xid.New("prd"), SKU: "0000002", Name: "Minyak Goreng 2L",
			CategoryID: grocery.ID, Unit: "bottle",
			BuyPrice: price("31000"), SellPrice: price("36000"),
			StockQuantity: 55, ReorderPoint: 15,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: xid.New("prd"), SKU: "0000003", Name: "Ponsel Andal X1",
			CategoryID: phones.ID, Unit: "piece",
			BuyPrice: price("2100000"), SellPrice: price("2650000"),
			StockQuantity: 9, ReorderPoint: 3,
			Variants: []domain.Variant{
				{
					ID: xid.New("var"), Name: "Hitam - 128GB", SKU: "0000003-BLK128",
					BuyPrice: price("2100000"), SellPrice: price("2650000"),
					StockQuantity: 5,
					Attributes:    map[string]string{"Color": "Black", "Storage": "128GB"},
				},
				{
					ID: xid.New("var"), Name: "Biru - 256GB", SKU: "0000003-BLU256",
					BuyPrice: price("2350000"), SellPrice: price("2950000"),
					StockQuantity: 4,
					Attributes:    map[string]string{"Color": "Blue", "Storage": "256GB"},
				},
			},
			CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, p := range products {
		s.products[p.ID] = p
		s.skuIndex[p.SKU] = p.ID
	}

	s.users = seedUsers(log)
	return s
}

func cloneProduct(p domain.Product) domain.Product {
	out := p
	out.Variants = make([]domain.Variant, len(p.Variants))
	for i, v := range p.Variants {
		cv := v
		if v.Attributes != nil {
			cv.Attributes = make(map[string]string, len(v.Attributes))
			for k, val := range v.Attributes {
				cv.Attributes[k] = val
			}
		}
		out.Variants[i] = cv
	}
	out.Images = slices.Clone(p.Images)
	return out
}

func clonePurchase(p domain.Purchase) domain.Purchase {
	out := p
	out.Items = slices.Clone(p.Items)
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Items = slices.Clone(o.Items)
	return out
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categoryID := filter.Category
	if categoryID != "" {
		if _, ok := s.categories[categoryID]; !ok {
			categoryID = ""
			for _, c := range s.categories {
				if strings.EqualFold(c.Name, filter.Category) {
					categoryID = c.ID
					break
				}
			}
			if categoryID == "" {
				return []domain.Product{}, 0, nil
			}
		}
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}

	slices.SortFunc(matched, func(a, b domain.Product) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= total {
		return []domain.Product{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(p)
	return &out, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.skuIndex[sku]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(s.products[id])
	return &out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.CategoryID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.skuIndex[product.SKU]; exists {
		return nil, store.ErrDuplicate
	}
	if _, ok := s.categories[product.CategoryID]; !ok {
		return nil, store.ErrNotFound
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	stored := cloneProduct(product)
	s.products[product.ID] = stored
	s.skuIndex[product.SKU] = product.ID
	created := cloneProduct(stored)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.SKU == "" || product.Name == "" || product.CategoryID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if other, exists := s.skuIndex[product.SKU]; exists && other != product.ID {
		return nil, store.ErrDuplicate
	}
	if _, ok := s.categories[product.CategoryID]; !ok {
		return nil, store.ErrNotFound
	}

	delete(s.skuIndex, existing.SKU)
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	stored := cloneProduct(product)
	s.products[product.ID] = stored
	s.skuIndex[product.SKU] = product.ID
	updated := cloneProduct(stored)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.products, id)
	delete(s.skuIndex, p.SKU)
	deleted := cloneProduct(p)
	return &deleted, nil
}

func (s *Store) NextNumericSKU(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := 0
	for sku := range s.skuIndex {
		n, err := strconv.Atoi(sku)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%07d", highest+1), nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.Name, b.Name)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return categories, nil
}

func (s *Store) GetCategoryByID(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *Store) GetCategoryByName(_ context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			out := c
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return nil, store.ErrDuplicate
		}
	}
	if category.ParentID != "" {
		if _, ok := s.categories[category.ParentID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	category.Active = true
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if category.ParentID != "" {
		if _, ok := s.categories[category.ParentID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	category.CreatedAt = existing.CreatedAt
	s.categories[category.ID] = category
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	for _, p := range s.products {
		if p.CategoryID == id {
			return store.ErrInvalidInput
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) AdjustProductStock(_ context.Context, productID string, delta int, buyPrice *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if p.StockQuantity+delta < 0 {
		return &store.InsufficientStockError{
			ProductName: p.Name,
			Available:   p.StockQuantity,
			Requested:   -delta,
		}
	}
	p.StockQuantity += delta
	if buyPrice != nil {
		p.BuyPrice = *buyPrice
	}
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) AdjustVariantStock(_ context.Context, productID string, variantID string, delta int, buyPrice *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	idx := -1
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return store.ErrNotFound
	}
	variant := p.Variants[idx]
	if variant.StockQuantity+delta < 0 {
		return &store.InsufficientStockError{
			ProductName: p.Name,
			VariantName: variant.Name,
			Available:   variant.StockQuantity,
			Requested:   -delta,
		}
	}
	variant.StockQuantity += delta
	if buyPrice != nil {
		variant.BuyPrice = *buyPrice
	}
	p.Variants[idx] = variant
	// Keep the denormalized aggregate in sync with the variant delta.
	p.StockQuantity += delta
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	stored := clonePurchase(purchase)
	s.purchases[purchase.ID] = stored
	created := clonePurchase(stored)
	return &created, nil
}

func (s *Store) ListPurchases(_ context.Context, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		purchases = append(purchases, clonePurchase(p))
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		if a.PurchaseDate.Equal(b.PurchaseDate) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.PurchaseDate.After(b.PurchaseDate) {
			return -1
		}
		return 1
	})
	if len(purchases) > limit {
		purchases = purchases[:limit]
	}
	return purchases, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if len(order.Items) == 0 || order.OrderNumber == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orderNumbers[order.OrderNumber]; exists {
		return nil, store.ErrDuplicate
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	stored := cloneOrder(order)
	s.orders[order.ID] = stored
	s.orderNumbers[order.OrderNumber] = order.ID
	created := cloneOrder(stored)
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(o)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.OrderDate.Equal(b.OrderDate) {
			return strings.Compare(b.OrderNumber, a.OrderNumber)
		}
		if a.OrderDate.After(b.OrderDate) {
			return -1
		}
		return 1
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) CountOrdersBetween(_ context.Context, from time.Time, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, o := range s.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetDashboardStats(_ context.Context) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.DashboardStats{
		TotalSales:     decimal.Zero,
		TotalPurchases: decimal.Zero,
	}
	customers := make(map[string]struct{})
	for _, o := range s.orders {
		stats.TotalSales = stats.TotalSales.Add(o.TotalAmount)
		if o.Status == domain.OrderStatusPending {
			stats.ActiveOrders++
		}
		customers[strings.ToLower(o.CustomerName)] = struct{}{}
	}
	stats.TotalCustomers = len(customers)
	for _, p := range s.purchases {
		stats.TotalPurchases = stats.TotalPurchases.Add(p.TotalAmount)
	}
	// Variant-bearing products count each variant as a sellable item.
	for _, p := range s.products {
		if p.HasVariants() {
			stats.TotalProducts += len(p.Variants)
		} else {
			stats.TotalProducts++
		}
	}
	return stats, nil
}

func (s *Store) ListProductsBelowReorderPoint(_ context.Context, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	low := make([]domain.Product, 0, limit)
	for _, p := range s.products {
		if p.StockQuantity <= p.ReorderPoint {
			low = append(low, cloneProduct(p))
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int {
		da := a.StockQuantity - a.ReorderPoint
		db := b.StockQuantity - b.ReorderPoint
		if da == db {
			return strings.Compare(a.SKU, b.SKU)
		}
		return da - db
	})
	if len(low) > limit {
		low = low[:limit]
	}
	return low, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Email == "" || user.PasswordHash == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Email]; exists {
		return store.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.Email] = user
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Email, b.Email)
	})
	return users, nil
}
