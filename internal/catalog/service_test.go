package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

type mockCatalogRepo struct {
	products map[int64]Product
	menus    map[int64]CompositeMenu
	nextID   int64

	recomputed []int64
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{
		products: make(map[int64]Product),
		menus:    make(map[int64]CompositeMenu),
	}
}

func (m *mockCatalogRepo) CreateProduct(ctx context.Context, p Product) (int64, error) {
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p.ID, nil
}

func (m *mockCatalogRepo) UpdateProduct(ctx context.Context, id int64, name string, priceCents, quantity int64) error {
	p, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Name = name
	p.PriceCents = priceCents
	p.Quantity = quantity
	m.products[id] = p
	return nil
}

func (m *mockCatalogRepo) DeleteProduct(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	// Menu item rows keep referencing the vanished product, as the
	// schema does; recomputation counts it as stock zero.
	delete(m.products, id)
	return nil
}

func (m *mockCatalogRepo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalogRepo) ListProducts(ctx context.Context) ([]Product, error) {
	var list []Product
	for _, p := range m.products {
		list = append(list, p)
	}
	return list, nil
}

func (m *mockCatalogRepo) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	result := make(map[int64]Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (m *mockCatalogRepo) CreateCompositeMenu(ctx context.Context, menu CompositeMenu) (int64, error) {
	m.nextID++
	menu.ID = m.nextID
	m.menus[menu.ID] = menu
	return menu.ID, nil
}

func (m *mockCatalogRepo) UpdateCompositeMenu(ctx context.Context, id int64, name string, priceCents int64, items []int64) error {
	menu, ok := m.menus[id]
	if !ok {
		return shared.ErrNotFound
	}
	menu.Name = name
	menu.PriceCents = priceCents
	menu.Items = items
	m.menus[id] = menu
	return nil
}

func (m *mockCatalogRepo) DeleteCompositeMenu(ctx context.Context, id int64) error {
	if _, ok := m.menus[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.menus, id)
	return nil
}

func (m *mockCatalogRepo) GetCompositeMenu(ctx context.Context, id int64) (*CompositeMenu, error) {
	menu, ok := m.menus[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &menu, nil
}

func (m *mockCatalogRepo) ListCompositeMenus(ctx context.Context) ([]CompositeMenu, error) {
	var list []CompositeMenu
	for _, menu := range m.menus {
		list = append(list, menu)
	}
	return list, nil
}

func (m *mockCatalogRepo) MenusReferencing(ctx context.Context, productIDs []int64) ([]int64, error) {
	wanted := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var menuIDs []int64
	for id, menu := range m.menus {
		for _, item := range menu.Items {
			if wanted[item] {
				menuIDs = append(menuIDs, id)
				break
			}
		}
	}
	return menuIDs, nil
}

func (m *mockCatalogRepo) RecomputeMinQuantity(ctx context.Context, menuID int64) (int64, error) {
	menu, ok := m.menus[menuID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	m.recomputed = append(m.recomputed, menuID)
	min := int64(0)
	for i, item := range menu.Items {
		p, ok := m.products[item]
		if !ok {
			min = 0
			break
		}
		if i == 0 || p.Quantity < min {
			min = p.Quantity
		}
	}
	menu.MinQuantity = min
	m.menus[menuID] = menu
	return min, nil
}

type recordingPublisher struct {
	events []pubsub.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event pubsub.Event) error {
	p.events = append(p.events, event)
	return nil
}

func adminCtx() context.Context {
	sess := &shared.Session{}
	sess.SetUser("1", shared.RoleAdmin)
	return shared.ContextWithSession(context.Background(), sess)
}

func newTestService(t *testing.T) (*Service, *mockCatalogRepo, *recordingPublisher) {
	t.Helper()
	repo := newMockCatalogRepo()
	events := &recordingPublisher{}
	return NewService(repo, events, slog.New(slog.DiscardHandler)), repo, events
}

func TestCreateProductPublishesEvent(t *testing.T) {
	svc, _, events := newTestService(t)

	product, err := svc.CreateProduct(adminCtx(), CreateProductRequest{
		Name: "Pasta al ragù", Category: CategoryFood, PriceCents: 750, Quantity: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), product.Quantity)

	require.Len(t, events.events, 1)
	assert.Equal(t, pubsub.CollectionCatalog, events.events[0].Collection)
	assert.Equal(t, pubsub.OpCreated, events.events[0].Op)
}

func TestCreateProductRequiresMenuEditRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := &shared.Session{}
	sess.SetUser("2", shared.RoleKitchen)
	ctx := shared.ContextWithSession(context.Background(), sess)

	_, err := svc.CreateProduct(ctx, CreateProductRequest{
		Name: "Birra media", Category: CategoryDrink, PriceCents: 500, Quantity: 100,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateProductRejectsUnknownCategory(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateProduct(adminCtx(), CreateProductRequest{
		Name: "Menu furbo", Category: CategoryComposite, PriceCents: 100, Quantity: 1,
	})
	assert.Error(t, err)
}

func TestCreateMenuSeedsMinimumFromComponents(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := adminCtx()

	pasta, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Pasta al ragù", Category: CategoryFood, PriceCents: 750, Quantity: 40})
	require.NoError(t, err)
	vino, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Vino della casa", Category: CategoryDrink, PriceCents: 600, Quantity: 12})
	require.NoError(t, err)

	menu, err := svc.CreateCompositeMenu(ctx, CreateCompositeMenuRequest{
		Name: "Menu completo", PriceCents: 1200, Items: []int64{pasta.ID, vino.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), menu.MinQuantity)
	assert.Equal(t, []int64{pasta.ID, vino.ID}, repo.menus[menu.ID].Items)
}

func TestCreateMenuRejectsUnknownComponent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := adminCtx()

	pasta, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Pasta al ragù", Category: CategoryFood, PriceCents: 750, Quantity: 40})
	require.NoError(t, err)

	_, err = svc.CreateCompositeMenu(ctx, CreateCompositeMenuRequest{
		Name: "Menu fantasma", PriceCents: 1000, Items: []int64{pasta.ID, 999},
	})
	assert.True(t, errors.Is(err, ErrUnknownProduct))
}

func TestUpdateProductRefreshesDependentMenus(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := adminCtx()

	pasta, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Pasta al ragù", Category: CategoryFood, PriceCents: 750, Quantity: 40})
	require.NoError(t, err)
	menu, err := svc.CreateCompositeMenu(ctx, CreateCompositeMenuRequest{
		Name: "Menu completo", PriceCents: 1200, Items: []int64{pasta.ID},
	})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, pasta.ID, UpdateProductRequest{
		Name: "Pasta al ragù", PriceCents: 800, Quantity: 5,
	})
	require.NoError(t, err)

	assert.Contains(t, repo.recomputed, menu.ID)
	assert.Equal(t, int64(5), repo.menus[menu.ID].MinQuantity)
}

func TestDeleteProductDrivesDependentMenusToZero(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := adminCtx()

	pasta, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Pasta al ragù", Category: CategoryFood, PriceCents: 750, Quantity: 40})
	require.NoError(t, err)
	grigliata, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Grigliata mista", Category: CategoryFood, PriceCents: 1400, Quantity: 25})
	require.NoError(t, err)
	menu, err := svc.CreateCompositeMenu(ctx, CreateCompositeMenuRequest{
		Name: "Menu completo", PriceCents: 1900, Items: []int64{pasta.ID, grigliata.ID},
	})
	require.NoError(t, err)
	require.Equal(t, int64(25), menu.MinQuantity)

	require.NoError(t, svc.DeleteProduct(ctx, grigliata.ID))

	assert.Contains(t, repo.recomputed, menu.ID)
	assert.Equal(t, int64(0), repo.menus[menu.ID].MinQuantity)
}

func TestSnapshotListsEverything(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := adminCtx()

	pasta, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Pasta al ragù", Category: CategoryFood, PriceCents: 750, Quantity: 40})
	require.NoError(t, err)
	_, err = svc.CreateCompositeMenu(ctx, CreateCompositeMenuRequest{
		Name: "Menu completo", PriceCents: 1200, Items: []int64{pasta.ID},
	})
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Products, 1)
	assert.Len(t, snapshot.Menus, 1)
}
