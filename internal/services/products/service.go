package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

// PageSize is the number of products per listing page.
const PageSize = 50

// Service handles product business logic.
type Service struct {
	store   ProductStore
	purger  Purger
	emitter events.Emitter
	logger  *slog.Logger
}

// NewService creates a new product service.
func NewService(store ProductStore, purger Purger, emitter events.Emitter, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		purger:  purger,
		emitter: emitter,
		logger:  logger.With("service", "products"),
	}
}

// CreateRequest is the body of a product create. Price is a decimal string.
type CreateRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// UpdateRequest changes the fields that are set. The SKU is immutable.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListQuery selects a listing page. Page is 1-based.
type ListQuery struct {
	Search   string
	IsActive *bool
	Page     int
}

// ProductPage is one page of a listing.
type ProductPage struct {
	Products   []catalog.Item `json:"products"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	TotalCount int            `json:"total_count"`
}

// Create validates and stores a new product, then announces it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*catalog.Item, error) {
	sku := catalog.NormalizeSKU(req.SKU)
	name := strings.TrimSpace(req.Name)
	if sku == "" || name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", ErrInvalidInput)
	}
	price, err := catalog.ParsePrice(req.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := clock.Now()
	item := &catalog.Item{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       price,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := s.store.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("product created", "product_id", item.ID, "sku", item.SKU)
	s.emitter.ProductCreated(ctx, refOf(item))
	return item, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (*catalog.Item, error) {
	return s.store.Get(ctx, id)
}

// Update applies a partial update and announces it.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*catalog.Item, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		price, err := catalog.ParsePrice(*req.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		item.Price = price
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	item.UpdatedAt = clock.Now()

	if err := s.store.Update(ctx, item); err != nil {
		return nil, err
	}

	s.emitter.ProductUpdated(ctx, refOf(item))
	return item, nil
}

// Delete removes a product and announces the pre-delete snapshot.
func (s *Service) Delete(ctx context.Context, id int64) error {
	item, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.logger.Info("product deleted", "product_id", item.ID, "sku", item.SKU)
	s.emitter.ProductDeleted(ctx, refOf(item))
	return nil
}

// List returns one page of products, newest first. Pages past the end are
// clamped to the last page.
func (s *Service) List(ctx context.Context, q ListQuery) (*ProductPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	filter := ListFilter{
		Search:   strings.TrimSpace(q.Search),
		IsActive: q.IsActive,
		Limit:    PageSize,
		Offset:   (page - 1) * PageSize,
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	totalPages := (total + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
		filter.Offset = (page - 1) * PageSize
		if items, total, err = s.store.List(ctx, filter); err != nil {
			return nil, fmt.Errorf("failed to list products: %w", err)
		}
	}
	if items == nil {
		items = []catalog.Item{}
	}

	return &ProductPage{Products: items, Page: page, TotalPages: totalPages, TotalCount: total}, nil
}

// BulkDelete schedules removal of every product.
func (s *Service) BulkDelete(ctx context.Context) (int64, error) {
	taskID, err := s.purger.EnqueuePurge(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue purge: %w", err)
	}
	s.logger.Info("catalog purge scheduled", "task_id", taskID)
	return taskID, nil
}

func refOf(item *catalog.Item) events.ProductRef {
	return events.ProductRef{ID: item.ID, SKU: item.SKU, Name: item.Name}
}
