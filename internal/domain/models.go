package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductImage struct {
	ImageID      string `json:"image_id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	IsPrimary    bool   `json:"is_primary"`
}

// Variant is a purchasable sub-configuration of a product with its own price
// and stock. It is owned by exactly one product; its lifetime is the parent's.
type Variant struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SKU           string            `json:"sku"`
	BuyPrice      decimal.Decimal   `json:"buy_price"`
	SellPrice     decimal.Decimal   `json:"sell_price"`
	StockQuantity int               `json:"stock_quantity"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	ImageIndex    int               `json:"image_index"`
}

// Product carries its own price/stock fields when it has no variants. When
// variants exist, StockQuantity is the denormalized sum of variant stock and
// the price fields are display defaults only.
type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	CategoryID    string          `json:"category_id"`
	Subcategory   string          `json:"subcategory,omitempty"`
	Manufacturer  string          `json:"manufacturer,omitempty"`
	Unit          string          `json:"unit"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderPoint  int             `json:"reorder_point"`
	Variants      []Variant       `json:"variants"`
	Images        []ProductImage  `json:"images"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// HasVariants reports whether the product is variant-bearing, which switches
// all stock and price resolution from product-level to variant-level fields.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// FindVariant returns the variant with the given id, or nil.
func (p *Product) FindVariant(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}

// DisplaySellPrice is the storefront price: the first variant's sell price
// when variants exist, the product's own otherwise.
func (p Product) DisplaySellPrice() decimal.Decimal {
	if p.HasVariants() {
		return p.Variants[0].SellPrice
	}
	return p.SellPrice
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// LineItem is one submitted entry in a purchase or sale. UnitPrice is the
// sell price for sales and the buy price for purchases.
type LineItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PurchaseLine is a stored purchase entry with product/variant name snapshots
// so history survives catalog deletes.
type PurchaseLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantID   string          `json:"variant_id,omitempty"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    int             `json:"quantity"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Purchase struct {
	ID           string          `json:"id"`
	SupplierName string          `json:"supplier_name"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Notes        string          `json:"notes,omitempty"`
	Items        []PurchaseLine  `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

type OrderLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantID   string          `json:"variant_id,omitempty"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CompanyName   string          `json:"company_name,omitempty"`
	OrderDate     time.Time       `json:"order_date"`
	Items         []OrderLine     `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

// UserAccount is the internal persistence model for auth credentials.
type UserAccount struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

// Actor is the verified identity behind a request.
type Actor struct {
	ID    string
	Email string
	Role  string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type VariantInput struct {
	Name       string            `json:"name"`
	SKU        string            `json:"sku"`
	BuyPrice   decimal.Decimal   `json:"buy_price"`
	SellPrice  decimal.Decimal   `json:"sell_price"`
	StockQty   int               `json:"stock_quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ImageIndex int               `json:"image_index"`
}

type ProductCreateRequest struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"` // category id or name
	Subcategory  string          `json:"subcategory"`
	Manufacturer string          `json:"manufacturer"`
	Unit         string          `json:"unit"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	StockQty     int             `json:"stock_quantity"`
	ReorderPoint int             `json:"reorder_point"`
	Variants     []VariantInput  `json:"variants"`
	Images       []ProductImage  `json:"images"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Subcategory  *string          `json:"subcategory,omitempty"`
	Manufacturer *string          `json:"manufacturer,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
	BuyPrice     *decimal.Decimal `json:"buy_price,omitempty"`
	SellPrice    *decimal.Decimal `json:"sell_price,omitempty"`
	ReorderPoint *int             `json:"reorder_point,omitempty"`
	Images       []ProductImage   `json:"images,omitempty"`
}

type ProductFilter struct {
	Page     int
	Limit    int
	Search   string
	Category string // category id or name
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ProductListResponse struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type PurchaseCreateRequest struct {
	SupplierName string     `json:"supplier_name"`
	PurchaseDate string     `json:"purchase_date,omitempty"` // YYYY-MM-DD
	Notes        string     `json:"notes"`
	Items        []LineItem `json:"items"`
}

type OrderCreateRequest struct {
	CustomerName  string     `json:"customer_name"`
	CompanyName   string     `json:"company_name"`
	OrderDate     string     `json:"order_date,omitempty"` // YYYY-MM-DD
	PaymentStatus string     `json:"payment_status"`
	PaymentMethod string     `json:"payment_method"`
	Items         []LineItem `json:"items"`
}

// StorefrontProduct is the public catalog projection.
type StorefrontProduct struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	CategoryID   string          `json:"category_id"`
	DisplayPrice string          `json:"display_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	InStock      bool            `json:"in_stock"`
	StockQty     int             `json:"stock_quantity"`
	VariantCount int             `json:"variant_count"`
	ImageURL     string          `json:"image_url,omitempty"`
}

type DashboardStats struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	ActiveOrders   int             `json:"active_orders"`
	TotalProducts  int             `json:"total_products"`
	TotalCustomers int             `json:"total_customers"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
}

type ReorderSuggestion struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	ReorderPoint int    `json:"reorder_point"`
	SuggestedQty int    `json:"suggested_qty"`
	Urgency      string `json:"urgency"`
}

type ReorderReport struct {
	GeneratedAt string              `json:"generated_at"`
	Suggestions []ReorderSuggestion `json:"suggestions"`
}

type UploadedImage struct {
	ImageID      string `json:"image_id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Name         string `json:"name"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusDue     = "due"
	PaymentStatusPartial = "partial"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// PaymentMethods are the accepted values for Order.PaymentMethod.
var PaymentMethods = []string{"cash", "card", "bank_transfer", "mobile_banking", "other"}
