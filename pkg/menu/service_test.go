package menu_test

import (
	"context"
	"sort"
	"testing"

	"github.com/example/foodorder/pkg/menu"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memStore struct {
	items     map[primitive.ObjectID]models.MenuItem
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{items: make(map[primitive.ObjectID]models.MenuItem)}
}

func (s *memStore) List(_ context.Context, category models.Category) ([]*models.MenuItem, error) {
	s.listCalls++
	var out []*models.MenuItem
	for _, it := range s.items {
		if category != "" && it.Category != category {
			continue
		}
		cp := it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (s *memStore) Create(_ context.Context, item *models.MenuItem) error {
	item.ID = primitive.NewObjectID()
	s.items[item.ID] = *item
	return nil
}

func (s *memStore) Update(_ context.Context, item *models.MenuItem) error {
	if _, ok := s.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *memStore) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

type memCache struct {
	items       []*models.MenuItem
	invalidated int
}

func (c *memCache) CacheMenu(_ context.Context, items []*models.MenuItem) error {
	c.items = items
	return nil
}

func (c *memCache) GetMenuCache(context.Context) ([]*models.MenuItem, error) {
	if c.items == nil {
		return nil, repository.ErrCacheMiss
	}
	return c.items, nil
}

func (c *memCache) InvalidateMenu(context.Context) error {
	c.items = nil
	c.invalidated++
	return nil
}

type memAuditor struct {
	actions []string
}

func (a *memAuditor) Record(action, _ string, _ map[string]interface{}) {
	a.actions = append(a.actions, action)
}

func newService() (*menu.Service, *memStore, *memCache, *memAuditor) {
	store := newMemStore()
	cache := &memCache{}
	audit := &memAuditor{}
	return menu.NewService(store, cache, audit, zap.NewNop()), store, cache, audit
}

func TestCreate(t *testing.T) {
	svc, store, cache, audit := newService()

	item, err := svc.Create(context.Background(), menu.ItemInput{
		Name:     "  Masala Dosa ",
		Price:    8.5,
		Category: models.CategoryMainCourse,
		IsVeg:    true,
	})
	require.NoError(t, err)
	assert.False(t, item.ID.IsZero())
	assert.Equal(t, "Masala Dosa", item.Name)
	assert.True(t, item.Available)
	assert.Contains(t, store.items, item.ID)
	assert.Equal(t, 1, cache.invalidated)
	assert.Equal(t, []string{"create_food_item"}, audit.actions)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input menu.ItemInput
		field string
	}{
		{name: "missing name", input: menu.ItemInput{Price: 1, Category: models.CategoryStarters}, field: "name"},
		{name: "blank name", input: menu.ItemInput{Name: "   ", Price: 1, Category: models.CategoryStarters}, field: "name"},
		{name: "negative price", input: menu.ItemInput{Name: "Soup", Price: -1, Category: models.CategoryStarters}, field: "price"},
		{name: "unknown category", input: menu.ItemInput{Name: "Soup", Price: 1, Category: "snacks"}, field: "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newService()

			_, err := svc.Create(context.Background(), tt.input)
			require.ErrorIs(t, err, menu.ErrValidation)
			var ve *menu.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, store.items)
		})
	}
}

func TestList_CachesUnfilteredMenu(t *testing.T) {
	svc, store, cache, _ := newService()
	_, err := svc.Create(context.Background(), menu.ItemInput{Name: "Lassi", Price: 3, Category: models.CategoryBeverages})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), menu.ItemInput{Name: "Kheer", Price: 4, Category: models.CategoryDesserts})
	require.NoError(t, err)

	items, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, store.listCalls)
	require.NotNil(t, cache.items)

	_, err = svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)

	drinks, err := svc.List(context.Background(), models.CategoryBeverages)
	require.NoError(t, err)
	require.Len(t, drinks, 1)
	assert.Equal(t, "Lassi", drinks[0].Name)
	assert.Equal(t, 2, store.listCalls)

	_, err = svc.List(context.Background(), "snacks")
	require.ErrorIs(t, err, menu.ErrValidation)
}

func TestUpdate_PartialPatch(t *testing.T) {
	svc, _, cache, audit := newService()
	item, err := svc.Create(context.Background(), menu.ItemInput{
		Name:        "Paneer Tikka",
		Description: "Grilled cottage cheese",
		Price:       9,
		Category:    models.CategoryStarters,
	})
	require.NoError(t, err)

	price := 11.0
	available := false
	got, err := svc.Update(context.Background(), item.ID.Hex(), menu.ItemPatch{Price: &price, Available: &available})
	require.NoError(t, err)
	assert.Equal(t, 11.0, got.Price)
	assert.False(t, got.Available)
	assert.Equal(t, "Paneer Tikka", got.Name)
	assert.Equal(t, "Grilled cottage cheese", got.Description)
	assert.Equal(t, 2, cache.invalidated)
	assert.Equal(t, []string{"create_food_item", "update_food_item"}, audit.actions)

	bad := models.Category("snacks")
	_, err = svc.Update(context.Background(), item.ID.Hex(), menu.ItemPatch{Category: &bad})
	require.ErrorIs(t, err, menu.ErrValidation)
}

func TestGetUpdateDelete_Lookup(t *testing.T) {
	svc, _, _, _ := newService()
	missing := primitive.NewObjectID().Hex()

	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, menu.ErrInvalidID)
	_, err = svc.Get(context.Background(), missing)
	require.ErrorIs(t, err, menu.ErrNotFound)

	_, err = svc.Update(context.Background(), missing, menu.ItemPatch{})
	require.ErrorIs(t, err, menu.ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), "nope"), menu.ErrInvalidID)
	require.ErrorIs(t, svc.Delete(context.Background(), missing), menu.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, store, cache, audit := newService()
	item, err := svc.Create(context.Background(), menu.ItemInput{Name: "Jalebi", Price: 2, Category: models.CategoryDesserts})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), item.ID.Hex()))
	assert.Empty(t, store.items)
	assert.Equal(t, 2, cache.invalidated)
	assert.Equal(t, "delete_food_item", audit.actions[len(audit.actions)-1])
}
