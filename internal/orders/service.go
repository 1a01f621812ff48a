package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// RepositoryPort abstracts order persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
}

// NumberAllocator hands out order numbers.
type NumberAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// CatalogPort resolves cart references against the live catalog.
type CatalogPort interface {
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	MenusByIDs(ctx context.Context, ids []int64) (map[int64]catalog.CompositeMenu, error)
}

// ReconcileEnqueuer schedules the asynchronous stock decrement for a
// confirmed order. Enqueueing happens strictly after the order is durably
// persisted, so a crash between the two loses at worst the decrement, never
// the sale.
type ReconcileEnqueuer interface {
	EnqueueStockReconcile(ctx context.Context, orderID string, items []Item) error
}

// SelectionClearer drops the kitchen's per-order selection marks.
type SelectionClearer interface {
	Clear(ctx context.Context, orderID string) error
}

// EventPublisher pushes change notifications to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, event pubsub.Event) error
}

// Service drives the order lifecycle.
type Service struct {
	repo       RepositoryPort
	counter    NumberAllocator
	catalog    CatalogPort
	reconcile  ReconcileEnqueuer
	selections SelectionClearer
	events     EventPublisher
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewService constructs the order service.
func NewService(
	repo RepositoryPort,
	counter NumberAllocator,
	cat CatalogPort,
	reconcile ReconcileEnqueuer,
	selections SelectionClearer,
	events EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		counter:    counter,
		catalog:    cat,
		reconcile:  reconcile,
		selections: selections,
		events:     events,
		logger:     logger,
		validate:   validator.New(),
	}
}

// CartLine is one entry of a confirmation request, already merged by the
// register client per (name, category).
type CartLine struct {
	RefID    int64            `json:"ref_id" validate:"required"`
	Category catalog.Category `json:"category" validate:"required,oneof=food drink composite"`
	Quantity int64            `json:"quantity" validate:"required,gt=0"`
}

// ConfirmRequest confirms a cart into a persisted order.
type ConfirmRequest struct {
	Lines []CartLine `json:"lines" validate:"required,dive"`
	Staff bool       `json:"staff"`
}

// Confirm turns a cart into a durable order: it snapshots catalog data into
// immutable items, allocates the order number, persists, and only then
// schedules the stock reconcile. Staff orders are priced at zero. An order
// containing nothing but drinks never reaches the kitchen and is delivered
// on the spot.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Order, error) {
	if err := shared.Authorize(ctx, shared.CapOrderConfirm); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	items, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	var total int64
	if !req.Staff {
		for _, item := range items {
			total += item.PriceCents * item.Quantity
		}
	}

	number, err := s.counter.Next(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := Order{
		ID:          uuid.NewString(),
		OrderNumber: number,
		Items:       items,
		TotalCents:  total,
		Staff:       req.Staff,
		Status:      StatusInPreparation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("orders: persist order: %w", err)
	}

	if err := s.enqueueReconcile(ctx, order); err != nil {
		// The sale is already durable; losing the decrement is an
		// inventory drift, not a lost order.
		s.logger.Error("enqueue stock reconcile",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}

	s.publish(ctx, pubsub.OpCreated, order.ID)

	if s.beverageOnly(ctx, order.Items) {
		if delivered, err := s.autoDeliver(ctx, order.ID); err != nil {
			s.logger.Warn("auto-deliver beverage order",
				slog.String("order_id", order.ID), slog.Any("error", err))
		} else {
			return delivered, nil
		}
	}
	return &order, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Order, error) {
	return s.repo.List(ctx, req)
}

// Complete marks an order ready for delivery and drops the kitchen's
// selection marks for it.
func (s *Service) Complete(ctx context.Context, id string) (*Order, error) {
	if err := shared.Authorize(ctx, shared.CapOrderComplete); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, StatusReady)
	if err != nil {
		return nil, err
	}
	s.clearSelection(ctx, id)
	return o, nil
}

// Deliver closes out a ready order.
func (s *Service) Deliver(ctx context.Context, id string) (*Order, error) {
	if err := shared.Authorize(ctx, shared.CapOrderDeliver); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusDelivered)
}

// Restore sends a ready order back to the kitchen, clearing its completion
// timestamp so it re-enters the queue as if never finished.
func (s *Service) Restore(ctx context.Context, id string) (*Order, error) {
	if err := shared.Authorize(ctx, shared.CapOrderRestore); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusInPreparation)
}

// Cancel voids an order. Already-consumed stock is not restored: the
// kitchen may have started cooking and the reconcile already ran.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	if err := shared.Authorize(ctx, shared.CapOrderCancel); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, id, StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.clearSelection(ctx, id)
	return o, nil
}

// SweepBeverageOnly delivers any in-preparation order that contains only
// drinks. It backs up the confirmation-time fast path, catching orders whose
// immediate auto-delivery failed.
func (s *Service) SweepBeverageOnly(ctx context.Context) (int, error) {
	open, err := s.repo.List(ctx, ListRequest{Statuses: []Status{StatusInPreparation}})
	if err != nil {
		return 0, err
	}
	var swept int
	for _, o := range open {
		if !s.beverageOnly(ctx, o.Items) {
			continue
		}
		if _, err := s.autoDeliver(ctx, o.ID); err != nil {
			s.logger.Warn("sweep beverage order",
				slog.String("order_id", o.ID), slog.Any("error", err))
			continue
		}
		swept++
	}
	return swept, nil
}

// transition applies a legal operator transition and publishes the change.
func (s *Service) transition(ctx context.Context, id string, to Status) (*Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to, time.Now()); err != nil {
		return nil, err
	}
	s.publish(ctx, pubsub.OpUpdated, id)
	return s.repo.Get(ctx, id)
}

// autoDeliver is the one transition outside the operator table: it moves an
// in-preparation beverage-only order straight to delivered.
func (s *Service) autoDeliver(ctx context.Context, id string) (*Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusInPreparation {
		return current, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusDelivered, time.Now()); err != nil {
		return nil, err
	}
	s.publish(ctx, pubsub.OpUpdated, id)
	return s.repo.Get(ctx, id)
}

// resolveLines snapshots live catalog data into order items. Every
// reference must resolve; confirming against a stale cart is an error the
// register retries after refreshing.
func (s *Service) resolveLines(ctx context.Context, lines []CartLine) ([]Item, error) {
	var productIDs, menuIDs []int64
	for _, line := range lines {
		if line.Category == catalog.CategoryComposite {
			menuIDs = append(menuIDs, line.RefID)
		} else {
			productIDs = append(productIDs, line.RefID)
		}
	}
	products, err := s.catalog.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	menus, err := s.catalog.MenusByIDs(ctx, menuIDs)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		if line.Category == catalog.CategoryComposite {
			m, ok := menus[line.RefID]
			if !ok {
				return nil, fmt.Errorf("%w: menu %d", catalog.ErrUnknownProduct, line.RefID)
			}
			items = append(items, Item{
				RefID:      m.ID,
				Name:       m.Name,
				PriceCents: m.PriceCents,
				Quantity:   line.Quantity,
				Category:   catalog.CategoryComposite,
			})
			continue
		}
		p, ok := products[line.RefID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", catalog.ErrUnknownProduct, line.RefID)
		}
		items = append(items, Item{
			RefID:      p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   line.Quantity,
			Category:   p.Category,
		})
	}
	return items, nil
}

// beverageOnly reports whether every item resolves to the drink category
// after expanding composites into their component products. A composite or
// component that cannot be resolved counts as food: when in doubt the order
// goes to the kitchen instead of skipping it.
func (s *Service) beverageOnly(ctx context.Context, items []Item) bool {
	if len(items) == 0 {
		return false
	}
	var menuIDs []int64
	for _, item := range items {
		switch item.Category {
		case catalog.CategoryDrink:
		case catalog.CategoryComposite:
			menuIDs = append(menuIDs, item.RefID)
		default:
			return false
		}
	}
	if len(menuIDs) == 0 {
		return true
	}

	menus, err := s.catalog.MenusByIDs(ctx, menuIDs)
	if err != nil {
		s.logger.Warn("resolve menus for beverage check", slog.Any("error", err))
		return false
	}
	var componentIDs []int64
	for _, id := range menuIDs {
		m, ok := menus[id]
		if !ok {
			return false
		}
		componentIDs = append(componentIDs, m.Items...)
	}
	products, err := s.catalog.ProductsByIDs(ctx, componentIDs)
	if err != nil {
		s.logger.Warn("resolve components for beverage check", slog.Any("error", err))
		return false
	}
	for _, id := range componentIDs {
		p, ok := products[id]
		if !ok || p.Category != catalog.CategoryDrink {
			return false
		}
	}
	return true
}

func (s *Service) enqueueReconcile(ctx context.Context, order Order) error {
	if s.reconcile == nil {
		return nil
	}
	return s.reconcile.EnqueueStockReconcile(ctx, order.ID, order.Items)
}

func (s *Service) clearSelection(ctx context.Context, orderID string) {
	if s.selections == nil {
		return
	}
	if err := s.selections.Clear(ctx, orderID); err != nil {
		s.logger.Warn("clear kitchen selection",
			slog.String("order_id", orderID), slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, op string, orderID string) {
	if s.events == nil {
		return
	}
	event := pubsub.Event{
		Collection: pubsub.CollectionOrders,
		Op:         op,
		ID:         orderID,
		At:         time.Now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish order event", slog.Any("error", err))
	}
}
