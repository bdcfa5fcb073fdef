package ports

import (
	"context"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// ProductFilter carries the search page parameters.
type ProductFilter struct {
	OwnerID  string   // empty = all sellers
	Query    string   // optional: case-insensitive match on name or description
	Category string   // optional: exact category
	MinPrice *float64 // optional: price >= MinPrice
	MaxPrice *float64 // optional: price <= MaxPrice
	Page     int      // 1-based
	Limit    int      // capped by the service
}

// ProductUpdate lists the editable product fields. Nil fields are left untouched.
type ProductUpdate struct {
	Name         *string
	Price        *float64
	PriceSui     *float64
	Description  *string
	Category     *string
	DeliveryTime *string
	Images       []string
}

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) (*domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, id string, upd ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int64, error)
	Categories(ctx context.Context) ([]string, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}
