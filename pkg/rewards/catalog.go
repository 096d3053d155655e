package rewards

import (
	"context"
	"fmt"
	"strings"
)

// Products lists catalog products, optionally filtered by category.
func (service *Service) Products(ctx context.Context, category string, activeOnly bool) ([]Product, error) {
	return service.store.ListProducts(ctx, strings.TrimSpace(category), activeOnly)
}

// AddProduct creates a catalog product.
func (service *Service) AddProduct(ctx context.Context, product Product) (Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrInvalidProductID)
	}
	if product.PointsRequired <= 0 {
		return Product{}, fmt.Errorf("%w: points required must be greater than zero", ErrInvalidPoints)
	}
	if product.StockQuantity < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidQuantity)
	}
	return service.store.CreateProduct(ctx, product)
}

// UpdateProduct applies a partial catalog update.
func (service *Service) UpdateProduct(ctx context.Context, productID ProductID, update ProductUpdate) error {
	if update.PointsRequired != nil && *update.PointsRequired <= 0 {
		return fmt.Errorf("%w: points required must be greater than zero", ErrInvalidPoints)
	}
	if update.StockQuantity != nil && *update.StockQuantity < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidQuantity)
	}
	return service.store.UpdateProduct(ctx, productID, update)
}
