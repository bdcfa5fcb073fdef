package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
	listingCurrency = "ngn"
)

type productService struct {
	products  ports.ProductRepository
	profiles  ports.ProfileRepository
	converter ports.Converter
	store     ports.ObjectStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewProductService returns a ProductService implementation.
func NewProductService(
	products ports.ProductRepository,
	profiles ports.ProfileRepository,
	converter ports.Converter,
	store ports.ObjectStore,
	log zerolog.Logger,
) ports.ProductService {
	return &productService{
		products:  products,
		profiles:  profiles,
		converter: converter,
		store:     store,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *productService) Create(ctx context.Context, in ports.CreateProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	images := compactStrings(in.Images)

	switch {
	case in.OwnerID == "":
		return nil, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	case category == "":
		return nil, fmt.Errorf("%w: category is required", domain.ErrValidation)
	case in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0):
		return nil, fmt.Errorf("%w: price must be a non-negative number", domain.ErrValidation)
	case len(images) == 0:
		return nil, fmt.Errorf("%w: at least one image is required", domain.ErrValidation)
	}

	now := s.now()
	p := &domain.Product{
		Name:         name,
		Price:        in.Price,
		PriceSui:     s.priceSui(ctx, in.Price),
		Description:  in.Description,
		Category:     category,
		DeliveryTime: strings.TrimSpace(in.DeliveryTime),
		Images:       images,
		OwnerUserID:  in.OwnerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	metrics.ProductsCreatedTotal.WithLabelValues(created.Category).Inc()
	s.log.Info().Str("product_id", created.ID).Str("owner", created.OwnerUserID).Msg("product listed")
	return created, nil
}

// Get returns the product and, when available, its seller's profile.
func (s *productService) Get(ctx context.Context, id string) (*ports.ProductDetail, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	detail := &ports.ProductDetail{Product: p}
	seller, err := s.profiles.FindByID(ctx, p.OwnerUserID)
	switch {
	case err == nil:
		detail.Seller = seller
	case errors.Is(err, domain.ErrNotFound):
	default:
		s.log.Warn().Err(err).Str("product_id", id).Msg("seller profile unavailable")
	}
	return detail, nil
}

func (s *productService) Update(ctx context.Context, userID, id string, upd ports.ProductUpdate) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if !p.OwnedBy(userID) {
		return nil, domain.ErrForbidden
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrValidation)
		}
		upd.Name = &name
	}
	if upd.Category != nil {
		category := strings.TrimSpace(*upd.Category)
		if category == "" {
			return nil, fmt.Errorf("%w: category must not be empty", domain.ErrValidation)
		}
		upd.Category = &category
	}
	if upd.Price != nil {
		if *upd.Price < 0 || math.IsNaN(*upd.Price) || math.IsInf(*upd.Price, 0) {
			return nil, fmt.Errorf("%w: price must be a non-negative number", domain.ErrValidation)
		}
		priceSui := s.priceSui(ctx, *upd.Price)
		upd.PriceSui = &priceSui
	}
	if upd.Images != nil {
		upd.Images = compactStrings(upd.Images)
		if len(upd.Images) == 0 {
			return nil, fmt.Errorf("%w: at least one image is required", domain.ErrValidation)
		}
	}

	updated, err := s.products.Update(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, userID, id string) error {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if !p.OwnedBy(userID) {
		return domain.ErrForbidden
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.log.Info().Str("product_id", id).Msg("product removed")
	return nil
}

func (s *productService) Search(ctx context.Context, filter ports.ProductFilter) (*ports.ProductPage, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, fmt.Errorf("%w: min price exceeds max price", domain.ErrValidation)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	filter.Query = strings.TrimSpace(filter.Query)
	filter.Category = strings.TrimSpace(filter.Category)

	items, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if items == nil {
		items = []*domain.Product{}
	}
	return &ports.ProductPage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}, nil
}

func (s *productService) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}

// UploadImage stores a product image and returns its public URL.
func (s *productService) UploadImage(ctx context.Context, userID, filename, contentType string, r io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: only image uploads are accepted", domain.ErrValidation)
	}
	p := objectPath("products", userID, filename)
	url, err := s.store.Upload(ctx, p, r, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

// priceSui is best effort: a listing without a rate is stored with 0.
func (s *productService) priceSui(ctx context.Context, price float64) float64 {
	conv, err := s.converter.ConvertToSui(ctx, price, listingCurrency)
	if err != nil {
		s.log.Warn().Err(err).Msg("listing stored without SUI price")
		return 0
	}
	return conv.AmountSui
}

// objectPath builds "<prefix>/<user>/<uuid><ext>".
func objectPath(prefix, userID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if len(ext) > 8 {
		ext = ""
	}
	return path.Join(prefix, userID, uuid.NewString()+ext)
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
