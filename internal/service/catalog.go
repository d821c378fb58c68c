package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.ProductListResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.ProductListResponse{}, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return domain.ProductListResponse{}, err
	}

	pages := total / filter.Limit
	if total%filter.Limit != 0 {
		pages++
	}
	return domain.ProductListResponse{
		Products: products,
		Pagination: domain.Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// resolveCategoryRef accepts a category id or a category name and returns
// the id. An unknown name creates the category on the fly, matching how
// the catalog form submits free text.
func (s *Service) resolveCategoryRef(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: category is required", store.ErrInvalidInput)
	}

	if category, err := s.repo.GetCategoryByID(ctx, ref); err == nil {
		return category.ID, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	if category, err := s.repo.GetCategoryByName(ctx, ref); err == nil {
		return category.ID, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{Name: ref})
	if err != nil {
		return "", err
	}
	s.log.Infow("category created on the fly", "category_id", created.ID, "name", created.Name)
	return created.ID, nil
}

func buildVariants(inputs []domain.VariantInput, productBuy decimal.Decimal, productSell decimal.Decimal) ([]domain.Variant, error) {
	variants := make([]domain.Variant, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: variant name is required", store.ErrInvalidInput)
		}
		if in.StockQty < 0 {
			return nil, fmt.Errorf("%w: variant stock cannot be negative", store.ErrInvalidInput)
		}
		v := domain.Variant{
			ID:            xid.New("var"),
			Name:          name,
			SKU:           strings.TrimSpace(in.SKU),
			BuyPrice:      in.BuyPrice,
			SellPrice:     in.SellPrice,
			StockQuantity: in.StockQty,
			Attributes:    in.Attributes,
			ImageIndex:    in.ImageIndex,
		}
		if v.BuyPrice.LessThanOrEqual(decimal.Zero) {
			v.BuyPrice = productBuy
		}
		if v.SellPrice.LessThanOrEqual(decimal.Zero) {
			v.SellPrice = productSell
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.TrimSpace(req.SKU)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if req.StockQty < 0 || req.ReorderPoint < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock and reorder point cannot be negative", store.ErrInvalidInput)
	}
	if req.SellPrice.IsNegative() || req.BuyPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: prices cannot be negative", store.ErrInvalidInput)
	}

	categoryID, err := s.resolveCategoryRef(ctx, req.Category)
	if err != nil {
		return domain.Product{}, err
	}

	if req.SKU == "" {
		req.SKU, err = s.repo.NextNumericSKU(ctx)
		if err != nil {
			return domain.Product{}, err
		}
	}

	variants, err := buildVariants(req.Variants, req.BuyPrice, req.SellPrice)
	if err != nil {
		return domain.Product{}, err
	}

	stock := req.StockQty
	if len(variants) > 0 {
		// The aggregate always mirrors the sum of variant stock.
		stock = 0
		for _, v := range variants {
			stock += v.StockQuantity
		}
	}

	product := domain.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		CategoryID:    categoryID,
		Subcategory:   strings.TrimSpace(req.Subcategory),
		Manufacturer:  strings.TrimSpace(req.Manufacturer),
		Unit:          strings.TrimSpace(req.Unit),
		BuyPrice:      req.BuyPrice,
		SellPrice:     req.SellPrice,
		StockQuantity: stock,
		ReorderPoint:  req.ReorderPoint,
		Variants:      variants,
		Images:        req.Images,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateViews(ctx)
	s.log.Infow("product created", "product_id", created.ID, "sku", created.SKU, "variants", len(created.Variants))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name cannot be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		categoryID, err := s.resolveCategoryRef(ctx, *req.Category)
		if err != nil {
			return domain.Product{}, err
		}
		updated.CategoryID = categoryID
	}
	if req.Subcategory != nil {
		updated.Subcategory = strings.TrimSpace(*req.Subcategory)
	}
	if req.Manufacturer != nil {
		updated.Manufacturer = strings.TrimSpace(*req.Manufacturer)
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.BuyPrice != nil {
		if req.BuyPrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: buy_price cannot be negative", store.ErrInvalidInput)
		}
		updated.BuyPrice = *req.BuyPrice
	}
	if req.SellPrice != nil {
		if req.SellPrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: sell_price cannot be negative", store.ErrInvalidInput)
		}
		updated.SellPrice = *req.SellPrice
		// A product-level sell price change propagates to every variant so
		// the storefront never shows stale variant prices.
		for i := range updated.Variants {
			updated.Variants[i].SellPrice = *req.SellPrice
		}
	}
	if req.ReorderPoint != nil {
		if *req.ReorderPoint < 0 {
			return domain.Product{}, fmt.Errorf("%w: reorder_point cannot be negative", store.ErrInvalidInput)
		}
		updated.ReorderPoint = *req.ReorderPoint
	}
	if req.Images != nil {
		updated.Images = req.Images
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateViews(ctx)
	s.log.Infow("product updated", "product_id", saved.ID, "sku", saved.SKU)
	return *saved, nil
}

// DeleteProduct removes the product and cleans up its stored images.
// Image deletion failures are logged, not surfaced: the catalog row is
// already gone.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}

	for _, img := range deleted.Images {
		if img.ImageID == "" {
			continue
		}
		if err := s.images.Delete(ctx, img.ImageID); err != nil {
			s.log.Warnw("failed to delete product image", "product_id", id, "image_id", img.ImageID, "error", err)
		}
	}

	s.invalidateViews(ctx)
	s.log.Infow("product deleted", "product_id", id, "sku", deleted.SKU)
	return nil
}

func (s *Service) NextSKU(ctx context.Context) (string, error) {
	if _, err := requireActor(ctx); err != nil {
		return "", err
	}
	return s.repo.NextNumericSKU(ctx)
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		ParentID:    strings.TrimSpace(req.ParentID),
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.log.Infow("category created", "category_id", created.ID, "name", created.Name)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryUpdateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	existing, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Category{}, fmt.Errorf("%w: name cannot be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.ParentID != nil {
		updated.ParentID = strings.TrimSpace(*req.ParentID)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		return domain.Category{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) UploadImage(ctx context.Context, data []byte, name string, folder string) (domain.UploadedImage, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.UploadedImage{}, err
	}
	if folder == "" {
		folder = "products"
	}
	uploaded, err := s.images.Upload(ctx, data, name, folder)
	if err != nil {
		return domain.UploadedImage{}, fmt.Errorf("%w: %s", store.ErrInvalidInput, err)
	}
	s.log.Infow("image uploaded", "image_id", uploaded.ImageID, "name", uploaded.Name)
	return uploaded, nil
}

func (s *Service) DeleteImage(ctx context.Context, imageID string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(imageID) == "" {
		return fmt.Errorf("%w: image id is required", store.ErrInvalidInput)
	}
	if err := s.images.Delete(ctx, imageID); err != nil {
		return store.ErrNotFound
	}
	return nil
}
