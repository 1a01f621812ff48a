package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// ErrUnknownProduct indicates a composite menu referencing a product id that
// does not exist at creation/edit time.
var ErrUnknownProduct = errors.New("composite menu references unknown product")

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, name string, priceCents, quantity int64) error
	DeleteProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
	CreateCompositeMenu(ctx context.Context, m CompositeMenu) (int64, error)
	UpdateCompositeMenu(ctx context.Context, id int64, name string, priceCents int64, items []int64) error
	DeleteCompositeMenu(ctx context.Context, id int64) error
	GetCompositeMenu(ctx context.Context, id int64) (*CompositeMenu, error)
	ListCompositeMenus(ctx context.Context) ([]CompositeMenu, error)
	MenusReferencing(ctx context.Context, productIDs []int64) ([]int64, error)
	RecomputeMinQuantity(ctx context.Context, menuID int64) (int64, error)
}

// EventPublisher notifies subscribed terminals of catalog changes.
type EventPublisher interface {
	Publish(ctx context.Context, event pubsub.Event) error
}

// Service coordinates menu management operations.
type Service struct {
	repo     RepositoryPort
	events   EventPublisher
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		logger:   logger,
		validate: validator.New(),
	}
}

// CreateProductRequest describes a new product.
type CreateProductRequest struct {
	Name       string   `json:"name" validate:"required"`
	Category   Category `json:"category" validate:"required,oneof=food drink"`
	PriceCents int64    `json:"price_cents" validate:"gte=0"`
	Quantity   int64    `json:"quantity" validate:"gte=0"`
}

// UpdateProductRequest rewrites an existing product's editable fields.
type UpdateProductRequest struct {
	Name       string `json:"name" validate:"required"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
	Quantity   int64  `json:"quantity"`
}

// CreateCompositeMenuRequest describes a new composite menu.
type CreateCompositeMenuRequest struct {
	Name       string  `json:"name" validate:"required"`
	PriceCents int64   `json:"price_cents" validate:"gte=0"`
	Items      []int64 `json:"items" validate:"required,min=1,dive,gt=0"`
}

// UpdateCompositeMenuRequest rewrites an existing menu.
type UpdateCompositeMenuRequest struct {
	Name       string  `json:"name" validate:"required"`
	PriceCents int64   `json:"price_cents" validate:"gte=0"`
	Items      []int64 `json:"items" validate:"required,min=1,dive,gt=0"`
}

// CreateProduct adds a product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := shared.Authorize(ctx, shared.CapMenuEdit); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: validate product: %w", err)
	}

	product := Product{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Quantity:   req.Quantity,
	}
	id, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("catalog: create product: %w", err)
	}

	created, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: reload product: %w", err)
	}
	s.publish(ctx, pubsub.OpCreated, productEventID(id), created)
	return created, nil
}

// UpdateProduct edits name, price and stock of a product and refreshes the
// cached availability of every composite menu referencing it.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	if err := shared.Authorize(ctx, shared.CapMenuEdit); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: validate product: %w", err)
	}

	if err := s.repo.UpdateProduct(ctx, id, req.Name, req.PriceCents, req.Quantity); err != nil {
		return nil, fmt.Errorf("catalog: update product: %w", err)
	}
	s.refreshDependents(ctx, []int64{id})

	updated, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: reload product: %w", err)
	}
	s.publish(ctx, pubsub.OpUpdated, productEventID(id), updated)
	return updated, nil
}

// DeleteProduct removes a product. Referencing composite menus are not
// cascaded; their availability is recomputed and the missing component
// drives them to zero.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := shared.Authorize(ctx, shared.CapMenuEdit); err != nil {
		return err
	}
	dependents, err := s.repo.MenusReferencing(ctx, []int64{id})
	if err != nil {
		return fmt.Errorf("catalog: find dependents: %w", err)
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("catalog: delete product: %w", err)
	}
	for _, menuID := range dependents {
		if _, err := s.repo.RecomputeMinQuantity(ctx, menuID); err != nil {
			s.logger.Warn("recompute after product delete", slog.Int64("menu_id", menuID), slog.Any("error", err))
		}
	}
	s.publish(ctx, pubsub.OpDeleted, productEventID(id), nil)
	return nil
}

// CreateCompositeMenu adds a composite menu; the cached availability is
// seeded from the referenced products' current stock.
func (s *Service) CreateCompositeMenu(ctx context.Context, req CreateCompositeMenuRequest) (*CompositeMenu, error) {
	if err := shared.Authorize(ctx, shared.CapMenuEdit); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: validate menu: %w", err)
	}

	products, err := s.repo.ProductsByIDs(ctx, req.Items)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve components: %w", err)
	}
	min := int64(0)
	for i, productID := range req.Items {
		p, ok := products[productID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
		}
		if i == 0 || p.Quantity < min {
			min = p.Quantity
		}
	}

	menu := CompositeMenu{
		Name:        req.Name,
		PriceCents:  req.PriceCents,
		Items:       req.Items,
		MinQuantity: min,
	}
	id, err := s.repo.CreateCompositeMenu(ctx, menu)
	if err != nil {
		return nil, fmt.Errorf("catalog: create menu: %w", err)
	}

	created, err := s.repo.GetCompositeMenu(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: reload menu: %w", err)
	}
	s.publish(ctx, pubsub.OpCreated, menuEventID(id), created)
	return created, nil
}

// UpdateCompositeMenu edits a menu and recomputes its cached availability.
func (s *Service) UpdateCompositeMenu(ctx context.Context, id int64, req UpdateCompositeMenuRequest) (*CompositeMenu, error) {
	if err := shared.Authorize(ctx, shared.CapMenuEdit); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: validate menu: %w", err)
	}

	products, err := s.repo.ProductsByIDs(ctx, req.Items)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve components: %w", err)
	}
	for _, productID := range req.Items {
		if _, ok := products[productID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
		}
	}

	if err := s.repo.UpdateCompositeMenu(ctx, id, req.Name, req.PriceCents, req.Items); err != nil {
		return nil, fmt.Errorf("catalog: update menu: %w", err)
	}
	if _, err := s.repo.RecomputeMinQuantity(ctx, id); err != nil {
		return nil, fmt.Errorf("catalog: recompute menu: %w", err)
	}

	updated, err := s.repo.GetCompositeMenu(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: reload menu: %w", err)
	}
	s.publish(ctx, pubsub.OpUpdated, menuEventID(id), updated)
	return updated, nil
}

// DeleteCompositeMenu removes a composite menu.
func (s *Service) DeleteCompositeMenu(ctx context.Context, id int64) error {
	if err := shared.Authorize(ctx, shared.CapMenuEdit); err != nil {
		return err
	}
	if err := s.repo.DeleteCompositeMenu(ctx, id); err != nil {
		return fmt.Errorf("catalog: delete menu: %w", err)
	}
	s.publish(ctx, pubsub.OpDeleted, menuEventID(id), nil)
	return nil
}

// Snapshot returns the full catalog in insertion order. Terminals read this
// once and then follow the change feed.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	menus, err := s.repo.ListCompositeMenus(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list menus: %w", err)
	}
	return &Snapshot{Products: products, Menus: menus}, nil
}

// refreshDependents recomputes cached availability for every menu touching
// the given products. Failures are logged only: a stale cache heals on the
// next recomputation.
func (s *Service) refreshDependents(ctx context.Context, productIDs []int64) {
	menuIDs, err := s.repo.MenusReferencing(ctx, productIDs)
	if err != nil {
		s.logger.Warn("find dependent menus", slog.Any("error", err))
		return
	}
	for _, menuID := range menuIDs {
		if _, err := s.repo.RecomputeMinQuantity(ctx, menuID); err != nil {
			s.logger.Warn("recompute menu availability", slog.Int64("menu_id", menuID), slog.Any("error", err))
		}
	}
}

func (s *Service) publish(ctx context.Context, op, id string, payload any) {
	if s.events == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("encode catalog event", slog.Any("error", err))
		} else {
			raw = data
		}
	}
	event := pubsub.Event{Collection: pubsub.CollectionCatalog, Op: op, ID: id, Payload: raw}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish catalog event", slog.Any("error", err))
	}
}

func productEventID(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

func menuEventID(id int64) string {
	return "menu:" + strconv.FormatInt(id, 10)
}
