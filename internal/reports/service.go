package reports

import (
	"context"

	"github.com/sagra-pos/sagra-pos/internal/shared"
)

const topProductsLimit = 10

// RepositoryPort exposes the aggregations the service relies on.
type RepositoryPort interface {
	Summary(ctx context.Context) (Summary, error)
	TopProducts(ctx context.Context, limit int) ([]ProductSales, error)
	Categories(ctx context.Context) ([]CategorySplit, error)
	Inventory(ctx context.Context) ([]InventoryLine, error)
}

// Service coordinates report queries with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Dashboard bundles every report the admin screen shows.
type Dashboard struct {
	Summary     Summary         `json:"summary"`
	TopProducts []ProductSales  `json:"top_products"`
	Categories  []CategorySplit `json:"categories"`
	Inventory   []InventoryLine `json:"inventory"`
}

// Dashboard computes or fetches the full report bundle.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if err := shared.Authorize(ctx, shared.CapReportView); err != nil {
		return nil, err
	}
	var dashboard Dashboard
	err := s.cache.FetchJSON(ctx, "reports:dashboard", &dashboard, func(ctx context.Context) (interface{}, error) {
		return s.buildDashboard(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &dashboard, nil
}

func (s *Service) buildDashboard(ctx context.Context) (*Dashboard, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopProducts(ctx, topProductsLimit)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	inventory, err := s.repo.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Summary:     summary,
		TopProducts: top,
		Categories:  categories,
		Inventory:   inventory,
	}, nil
}
