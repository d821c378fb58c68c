package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
// Statements are idempotent so it is safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			parent_id TEXT,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS categories_name_lower_uq ON categories (LOWER(name))`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category_id TEXT NOT NULL REFERENCES categories(id),
			subcategory TEXT NOT NULL DEFAULT '',
			manufacturer TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			buy_price NUMERIC(14,2) NOT NULL DEFAULT 0,
			sell_price NUMERIC(14,2) NOT NULL DEFAULT 0,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			reorder_point INTEGER NOT NULL DEFAULT 0,
			images JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS products_sku_uq ON products (sku)`,
		`CREATE TABLE IF NOT EXISTS product_variants (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			buy_price NUMERIC(14,2) NOT NULL DEFAULT 0,
			sell_price NUMERIC(14,2) NOT NULL DEFAULT 0,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			attributes JSONB NOT NULL DEFAULT '{}',
			image_index INTEGER NOT NULL DEFAULT -1,
			position INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS product_variants_product_idx ON product_variants (product_id, position)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id TEXT PRIMARY KEY,
			supplier_name TEXT NOT NULL DEFAULT '',
			purchase_date TIMESTAMPTZ NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			items JSONB NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			order_number TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			company_name TEXT NOT NULL DEFAULT '',
			order_date TIMESTAMPTZ NOT NULL,
			items JSONB NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_number_uq ON orders (order_number)`,
		`CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS app_users_email_uq ON app_users (LOWER(email))`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const productColumns = `id, sku, name, description, category_id, subcategory, manufacturer, unit,
	buy_price, sell_price, stock_quantity, reorder_point, images, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	var imagesRaw []byte
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.Subcategory,
		&p.Manufacturer, &p.Unit, &p.BuyPrice, &p.SellPrice, &p.StockQuantity,
		&p.ReorderPoint, &imagesRaw, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if len(imagesRaw) > 0 {
		if err := json.Unmarshal(imagesRaw, &p.Images); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (s *Store) attachVariants(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, id, name, sku, buy_price, sell_price, stock_quantity, attributes, image_index
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, position ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	variantMap := make(map[string][]domain.Variant, len(ids))
	for rows.Next() {
		var productID string
		var v domain.Variant
		var attrsRaw []byte
		if err := rows.Scan(&productID, &v.ID, &v.Name, &v.SKU, &v.BuyPrice, &v.SellPrice, &v.StockQuantity, &attrsRaw, &v.ImageIndex); err != nil {
			return err
		}
		if len(attrsRaw) > 0 {
			if err := json.Unmarshal(attrsRaw, &v.Attributes); err != nil {
				return err
			}
		}
		variantMap[productID] = append(variantMap[productID], v)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range products {
		products[i].Variants = variantMap[products[i].ID]
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	categoryID := strings.TrimSpace(filter.Category)
	if categoryID != "" {
		category, err := s.resolveCategory(ctx, categoryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return []domain.Product{}, 0, nil
			}
			return nil, 0, err
		}
		categoryID = category.ID
	}
	search := strings.TrimSpace(filter.Search)

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products
		WHERE ($1 = '' OR category_id = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
	`, categoryID, search).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR category_id = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, categoryID, search, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.attachVariants(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "id" && column != "sku" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	query := fmt.Sprintf(`SELECT `+productColumns+` FROM products WHERE %s = $1`, column)
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	products := []domain.Product{p}
	if err := s.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.getProduct(ctx, "sku", sku)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.CategoryID == "" {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	imagesJSON, err := json.Marshal(product.Images)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (
			id, sku, name, description, category_id, subcategory, manufacturer, unit,
			buy_price, sell_price, stock_quantity, reorder_point, images, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, product.ID, product.SKU, product.Name, product.Description, product.CategoryID,
		product.Subcategory, product.Manufacturer, product.Unit, product.BuyPrice,
		product.SellPrice, product.StockQuantity, product.ReorderPoint, imagesJSON,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.SKU == "" || product.Name == "" || product.CategoryID == "" {
		return nil, store.ErrInvalidInput
	}
	product.UpdatedAt = time.Now().UTC()

	imagesJSON, err := json.Marshal(product.Images)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET sku = $2, name = $3, description = $4, category_id = $5, subcategory = $6,
			manufacturer = $7, unit = $8, buy_price = $9, sell_price = $10,
			stock_quantity = $11, reorder_point = $12, images = $13, updated_at = $14
		WHERE id = $1
	`, product.ID, product.SKU, product.Name, product.Description, product.CategoryID,
		product.Subcategory, product.Manufacturer, product.Unit, product.BuyPrice,
		product.SellPrice, product.StockQuantity, product.ReorderPoint, imagesJSON,
		product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	// Variants are replaced wholesale on update. IDs stay stable because
	// the service carries existing variant IDs through.
	_, err = tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID)
	if err != nil {
		return nil, err
	}
	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := product
	return &updated, nil
}

func insertVariants(ctx context.Context, tx *sql.Tx, productID string, variants []domain.Variant) error {
	for position, v := range variants {
		if v.ID == "" {
			v.ID = xid.New("var")
		}
		attrsJSON, err := json.Marshal(v.Attributes)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_variants (
				id, product_id, name, sku, buy_price, sell_price, stock_quantity, attributes, image_index, position
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, v.ID, productID, v.Name, v.SKU, v.BuyPrice, v.SellPrice, v.StockQuantity, attrsJSON, v.ImageIndex, position)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return product, nil
}

func (s *Store) NextNumericSKU(ctx context.Context) (string, error) {
	var highest int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sku::integer), 0)
		FROM products
		WHERE sku ~ '^[0-9]+$'
	`).Scan(&highest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%07d", highest+1), nil
}

func (s *Store) resolveCategory(ctx context.Context, idOrName string) (*domain.Category, error) {
	category, err := s.GetCategoryByID(ctx, idOrName)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.GetCategoryByName(ctx, idOrName)
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, COALESCE(parent_id,''), active, created_at
		FROM categories
		ORDER BY created_at DESC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 32)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) getCategory(ctx context.Context, where string, value string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, COALESCE(parent_id,''), active, created_at
		FROM categories
		WHERE `+where+`
	`, value).Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	return s.getCategory(ctx, "id = $1", id)
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	return s.getCategory(ctx, "LOWER(name) = LOWER($1)", name)
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	category.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, parent_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, category.ID, category.Name, category.Description, nullIfEmpty(category.ParentID), category.Active, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.Name == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, description = $3, parent_id = $4, active = $5
		WHERE id = $1
	`, category.ID, category.Name, category.Description, nullIfEmpty(category.ParentID), category.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	var inUse int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE category_id = $1
	`, id).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustProductStock(ctx context.Context, productID string, delta int, buyPrice *decimal.Decimal) error {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0
	`
	args := []any{productID, delta}
	if buyPrice != nil {
		query = `
			UPDATE products
			SET stock_quantity = stock_quantity + $2, buy_price = $3, updated_at = now()
			WHERE id = $1 AND stock_quantity + $2 >= 0
		`
		args = append(args, *buyPrice)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// The guard rejected the update. Distinguish a missing row from an
	// insufficient balance for the caller.
	var name string
	var available int
	err = s.db.QueryRowContext(ctx, `
		SELECT name, stock_quantity FROM products WHERE id = $1
	`, productID).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return &store.InsufficientStockError{
		ProductName: name,
		Available:   available,
		Requested:   -delta,
	}
}

func (s *Store) AdjustVariantStock(ctx context.Context, productID string, variantID string, delta int, buyPrice *decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $3
		WHERE product_id = $1 AND id = $2 AND stock_quantity + $3 >= 0
	`
	args := []any{productID, variantID, delta}
	if buyPrice != nil {
		query = `
			UPDATE product_variants
			SET stock_quantity = stock_quantity + $3, buy_price = $4
			WHERE product_id = $1 AND id = $2 AND stock_quantity + $3 >= 0
		`
		args = append(args, *buyPrice)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var productName string
		var variantName string
		var available int
		err = tx.QueryRowContext(ctx, `
			SELECT p.name, v.name, v.stock_quantity
			FROM product_variants v
			JOIN products p ON p.id = v.product_id
			WHERE v.product_id = $1 AND v.id = $2
		`, productID, variantID).Scan(&productName, &variantName, &available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		return &store.InsufficientStockError{
			ProductName: productName,
			VariantName: variantName,
			Available:   available,
			Requested:   -delta,
		}
	}

	// Mirror the variant delta into the product aggregate.
	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1
	`, productID, delta)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, supplier_name, purchase_date, notes, items, total_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, purchase.ID, purchase.SupplierName, purchase.PurchaseDate, purchase.Notes, itemsJSON, purchase.TotalAmount, purchase.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := purchase
	return &created, nil
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_name, purchase_date, notes, items, total_amount, created_at
		FROM purchases
		ORDER BY purchase_date DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		var p domain.Purchase
		var itemsRaw []byte
		if err := rows.Scan(&p.ID, &p.SupplierName, &p.PurchaseDate, &p.Notes, &itemsRaw, &p.TotalAmount, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.PurchaseDate = p.PurchaseDate.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		if err := json.Unmarshal(itemsRaw, &p.Items); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if len(order.Items) == 0 || order.OrderNumber == "" {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, customer_name, company_name, order_date, items,
			total_amount, status, payment_status, payment_method, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, order.ID, order.OrderNumber, order.CustomerName, order.CompanyName, order.OrderDate,
		itemsJSON, order.TotalAmount, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var itemsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_number, customer_name, company_name, order_date, items,
			total_amount, status, payment_status, payment_method, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CompanyName, &o.OrderDate,
		&itemsRaw, &o.TotalAmount, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.OrderDate = o.OrderDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_number, customer_name, company_name, order_date, items,
			total_amount, status, payment_status, payment_method, created_at
		FROM orders
		ORDER BY order_date DESC, order_number DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var o domain.Order
		var itemsRaw []byte
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CompanyName, &o.OrderDate,
			&itemsRaw, &o.TotalAmount, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.OrderDate = o.OrderDate.UTC()
		o.CreatedAt = o.CreatedAt.UTC()
		if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) CountOrdersBetween(ctx context.Context, from time.Time, to time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&count)
	return count, err
}

func (s *Store) GetDashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0)::int,
			COUNT(DISTINCT LOWER(customer_name))::int
		FROM orders
	`, domain.OrderStatusPending).Scan(&stats.TotalSales, &stats.ActiveOrders, &stats.TotalCustomers)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0) FROM purchases
	`).Scan(&stats.TotalPurchases)
	if err != nil {
		return stats, err
	}

	// Products with variants count each variant as a sellable item.
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products p
				WHERE NOT EXISTS (SELECT 1 FROM product_variants v WHERE v.product_id = p.id))
			+ (SELECT COUNT(*) FROM product_variants)
	`).Scan(&stats.TotalProducts)
	if err != nil {
		return stats, err
	}

	return stats, nil
}

func (s *Store) ListProductsBelowReorderPoint(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE stock_quantity <= reorder_point
		ORDER BY (stock_quantity - reorder_point) ASC, sku ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || user.PasswordHash == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, email, full_name, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, role, active, created_at
		FROM app_users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, full_name, password_hash, role, active, created_at
		FROM app_users
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
