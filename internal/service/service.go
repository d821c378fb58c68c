package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gudangpos/backend/internal/cache"
	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/imagestore"
	"gudangpos/backend/internal/insights"
	"gudangpos/backend/internal/store"
)

// ErrForbidden is returned when the calling actor lacks the role an
// operation requires.
var ErrForbidden = errors.New("admin role required")

// ErrUnauthenticated is returned when no actor is attached to the context.
var ErrUnauthenticated = errors.New("authentication required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	storefrontCacheKey = "gudangpos:view:storefront"
	statsCacheKey      = "gudangpos:view:dashboard-stats"
)

type Service struct {
	repo    store.Repository
	views   cache.ViewCache
	advisor *insights.Advisor
	images  imagestore.Store
	viewTTL time.Duration
	log     *zap.SugaredLogger
}

func New(repo store.Repository, views cache.ViewCache, advisor *insights.Advisor, images imagestore.Store, viewTTL time.Duration, log *zap.SugaredLogger) *Service {
	if views == nil {
		views = cache.NoopViewCache{}
	}
	if advisor == nil {
		advisor = insights.NewAdvisor(cache.NoopViewCache{}, 0)
	}
	if images == nil {
		images = imagestore.Noop{}
	}
	if viewTTL <= 0 {
		viewTTL = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Service{
		repo:    repo,
		views:   views,
		advisor: advisor,
		images:  images,
		viewTTL: viewTTL,
		log:     log,
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

// invalidateViews drops every cached read-side payload. Called after any
// mutation that changes stock, catalog, or order history.
func (s *Service) invalidateViews(ctx context.Context) {
	if err := s.views.Delete(ctx, storefrontCacheKey, statsCacheKey); err != nil {
		s.log.Warnw("failed to invalidate view cache", "error", err)
	}
	s.advisor.Invalidate(ctx)
}

// Login verifies credentials and returns the matching account. Token
// issuance happens at the transport layer.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.UserAccount, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, store.ErrInvalidInput
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// resolvedLine is a sales or purchase line after lookup: the product, the
// selected variant (nil for flat products), and the price the line settles
// at.
type resolvedLine struct {
	product   *domain.Product
	variant   *domain.Variant
	quantity  int
	unitPrice decimal.Decimal
}

// resolveLine loads the product for an incoming line and enforces the
// variant rules: a variant-bearing product must be addressed through one of
// its variants, a flat product must not carry a variant id.
func (s *Service) resolveLine(ctx context.Context, item domain.LineItem, sellSide bool) (resolvedLine, error) {
	if item.Quantity < 1 {
		return resolvedLine{}, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
	}
	if strings.TrimSpace(item.ProductID) == "" {
		return resolvedLine{}, fmt.Errorf("%w: product id is required", store.ErrInvalidInput)
	}

	product, err := s.repo.GetProductByID(ctx, item.ProductID)
	if err != nil {
		return resolvedLine{}, err
	}

	line := resolvedLine{product: product, quantity: item.Quantity}

	if product.HasVariants() {
		if strings.TrimSpace(item.VariantID) == "" {
			return resolvedLine{}, fmt.Errorf("%w: product %s requires a variant selection", store.ErrInvalidInput, product.Name)
		}
		variant := product.FindVariant(item.VariantID)
		if variant == nil {
			return resolvedLine{}, fmt.Errorf("%w: variant %s", store.ErrNotFound, item.VariantID)
		}
		line.variant = variant
	} else if strings.TrimSpace(item.VariantID) != "" {
		return resolvedLine{}, fmt.Errorf("%w: product %s has no variants", store.ErrInvalidInput, product.Name)
	}

	line.unitPrice = item.UnitPrice
	if line.unitPrice.LessThanOrEqual(decimal.Zero) {
		if sellSide {
			if line.variant != nil {
				line.unitPrice = line.variant.SellPrice
			} else {
				line.unitPrice = product.SellPrice
			}
		} else {
			if line.variant != nil {
				line.unitPrice = line.variant.BuyPrice
			} else {
				line.unitPrice = product.BuyPrice
			}
		}
	}
	return line, nil
}

// RecordPurchase books incoming stock. Every line is validated before any
// stock is touched; the incoming unit price becomes the new buy price of
// the product or variant it lands on.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Purchase{}, err
	}
	if len(req.Items) == 0 {
		return domain.Purchase{}, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}

	purchaseDate := time.Now().UTC()
	if strings.TrimSpace(req.PurchaseDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("%w: purchase_date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		purchaseDate = parsed.UTC()
	}

	resolved := make([]resolvedLine, 0, len(req.Items))
	for _, item := range req.Items {
		line, err := s.resolveLine(ctx, item, false)
		if err != nil {
			return domain.Purchase{}, err
		}
		resolved = append(resolved, line)
	}

	total := decimal.Zero
	lines := make([]domain.PurchaseLine, 0, len(resolved))
	for _, line := range resolved {
		buyPrice := line.unitPrice
		if line.variant != nil {
			err := s.repo.AdjustVariantStock(ctx, line.product.ID, line.variant.ID, line.quantity, &buyPrice)
			if err != nil {
				return domain.Purchase{}, err
			}
		} else {
			err := s.repo.AdjustProductStock(ctx, line.product.ID, line.quantity, &buyPrice)
			if err != nil {
				return domain.Purchase{}, err
			}
		}

		lineTotal := line.unitPrice.Mul(decimal.NewFromInt(int64(line.quantity)))
		total = total.Add(lineTotal)
		pl := domain.PurchaseLine{
			ProductID:   line.product.ID,
			ProductName: line.product.Name,
			Quantity:    line.quantity,
			BuyPrice:    line.unitPrice,
			LineTotal:   lineTotal,
		}
		if line.variant != nil {
			pl.VariantID = line.variant.ID
			pl.VariantName = line.variant.Name
		}
		lines = append(lines, pl)
	}

	purchase := domain.Purchase{
		SupplierName: strings.TrimSpace(req.SupplierName),
		PurchaseDate: purchaseDate,
		Notes:        strings.TrimSpace(req.Notes),
		Items:        lines,
		TotalAmount:  total,
	}
	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return domain.Purchase{}, err
	}

	s.invalidateViews(ctx)
	s.log.Infow("purchase recorded", "purchase_id", created.ID, "lines", len(lines), "total", total.String())
	return *created, nil
}

func (s *Service) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, limit)
}

// CreateOrder books a sale. All lines are checked for existence, variant
// selection, and stock cover before the first decrement; totals are always
// recomputed from the resolved lines, never taken from the client.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Order{}, err
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return domain.Order{}, fmt.Errorf("%w: customer_name is required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}

	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusDue
	}
	switch paymentStatus {
	case domain.PaymentStatusPaid, domain.PaymentStatusDue, domain.PaymentStatusPartial:
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown payment_status %q", store.ErrInvalidInput, paymentStatus)
	}
	if req.PaymentMethod != "" && !validPaymentMethod(req.PaymentMethod) {
		return domain.Order{}, fmt.Errorf("%w: unknown payment_method %q", store.ErrInvalidInput, req.PaymentMethod)
	}

	orderDate := time.Now().UTC()
	if strings.TrimSpace(req.OrderDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.OrderDate)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w: order_date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		orderDate = parsed.UTC()
	}

	// Availability pass: resolve everything and verify stock cover before
	// mutating anything, so a failing line leaves no partial decrements.
	resolved := make([]resolvedLine, 0, len(req.Items))
	for _, item := range req.Items {
		line, err := s.resolveLine(ctx, item, true)
		if err != nil {
			return domain.Order{}, err
		}
		available := line.product.StockQuantity
		name := line.product.Name
		variantName := ""
		if line.variant != nil {
			available = line.variant.StockQuantity
			variantName = line.variant.Name
		}
		if available < line.quantity {
			return domain.Order{}, &store.InsufficientStockError{
				ProductName: name,
				VariantName: variantName,
				Available:   available,
				Requested:   line.quantity,
			}
		}
		resolved = append(resolved, line)
	}

	orderNumber, err := s.nextOrderNumber(ctx, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	total := decimal.Zero
	lines := make([]domain.OrderLine, 0, len(resolved))
	for _, line := range resolved {
		if line.variant != nil {
			err := s.repo.AdjustVariantStock(ctx, line.product.ID, line.variant.ID, -line.quantity, nil)
			if err != nil {
				return domain.Order{}, err
			}
		} else {
			err := s.repo.AdjustProductStock(ctx, line.product.ID, -line.quantity, nil)
			if err != nil {
				return domain.Order{}, err
			}
		}

		lineTotal := line.unitPrice.Mul(decimal.NewFromInt(int64(line.quantity)))
		total = total.Add(lineTotal)
		ol := domain.OrderLine{
			ProductID:   line.product.ID,
			ProductName: line.product.Name,
			Quantity:    line.quantity,
			UnitPrice:   line.unitPrice,
			LineTotal:   lineTotal,
		}
		if line.variant != nil {
			ol.VariantID = line.variant.ID
			ol.VariantName = line.variant.Name
		}
		lines = append(lines, ol)
	}

	order := domain.Order{
		OrderNumber:   orderNumber,
		CustomerName:  req.CustomerName,
		CompanyName:   strings.TrimSpace(req.CompanyName),
		OrderDate:     orderDate,
		Items:         lines,
		TotalAmount:   total,
		Status:        domain.OrderStatusPending,
		PaymentStatus: paymentStatus,
		PaymentMethod: req.PaymentMethod,
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidateViews(ctx)
	s.log.Infow("order created", "order_id", created.ID, "order_number", created.OrderNumber, "total", total.String())
	return *created, nil
}

// nextOrderNumber derives ORD-<YYYYMMDD>-<NNNN> from the count of orders
// already created today. The unique index on order_number catches the rare
// race between two concurrent sales.
func (s *Service) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountOrdersBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), count+1), nil
}

func validPaymentMethod(method string) bool {
	for _, m := range domain.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Order{}, err
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, limit)
}

// Storefront is the public catalog view: one card per product with a
// display price, stock flag, and variant count. No authentication needed.
func (s *Service) Storefront(ctx context.Context) ([]domain.StorefrontProduct, error) {
	if payload, ok, err := s.views.Get(ctx, storefrontCacheKey); err == nil && ok {
		var cached []domain.StorefrontProduct
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	products, _, err := s.repo.ListProducts(ctx, domain.ProductFilter{Page: 1, Limit: 500})
	if err != nil {
		return nil, err
	}

	view := make([]domain.StorefrontProduct, 0, len(products))
	for _, p := range products {
		stock := p.StockQuantity
		card := domain.StorefrontProduct{
			ID:           p.ID,
			SKU:          p.SKU,
			Name:         p.Name,
			CategoryID:   p.CategoryID,
			DisplayPrice: p.DisplaySellPrice().String(),
			SellPrice:    p.SellPrice,
			InStock:      stock > 0,
			StockQty:     stock,
			VariantCount: len(p.Variants),
		}
		for _, img := range p.Images {
			if img.IsPrimary {
				card.ImageURL = img.URL
				break
			}
		}
		if card.ImageURL == "" && len(p.Images) > 0 {
			card.ImageURL = p.Images[0].URL
		}
		view = append(view, card)
	}

	if payload, err := json.Marshal(view); err == nil {
		_ = s.views.Set(ctx, storefrontCacheKey, payload, s.viewTTL)
	}
	return view, nil
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.DashboardStats{}, err
	}

	if payload, ok, err := s.views.Get(ctx, statsCacheKey); err == nil && ok {
		var cached domain.DashboardStats
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	stats, err := s.repo.GetDashboardStats(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if payload, err := json.Marshal(stats); err == nil {
		_ = s.views.Set(ctx, statsCacheKey, payload, s.viewTTL)
	}
	return stats, nil
}

func (s *Service) ReorderReport(ctx context.Context) (domain.ReorderReport, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.ReorderReport{}, err
	}

	products, err := s.repo.ListProductsBelowReorderPoint(ctx, 200)
	if err != nil {
		return domain.ReorderReport{}, err
	}
	return s.advisor.BuildReport(ctx, products), nil
}
