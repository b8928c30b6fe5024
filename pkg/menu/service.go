package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrInvalidID  = errors.New("invalid food item id")
	ErrNotFound   = errors.New("food item not found")
	ErrValidation = errors.New("validation failed")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type Store interface {
	List(ctx context.Context, category models.Category) ([]*models.MenuItem, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error)
	Create(ctx context.Context, item *models.MenuItem) error
	Update(ctx context.Context, item *models.MenuItem) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Cache interface {
	CacheMenu(ctx context.Context, items []*models.MenuItem) error
	GetMenuCache(ctx context.Context) ([]*models.MenuItem, error)
	InvalidateMenu(ctx context.Context) error
}

type Auditor interface {
	Record(action, entityID string, data map[string]interface{})
}

// ItemInput is the body of a create request. Available defaults to true.
type ItemInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Image       string          `json:"image"`
	Category    models.Category `json:"category"`
	Available   *bool           `json:"available"`
	IsVeg       bool            `json:"isVeg"`
}

// ItemPatch is a partial update; nil fields keep their stored value.
type ItemPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *float64         `json:"price"`
	Image       *string          `json:"image"`
	Category    *models.Category `json:"category"`
	Available   *bool            `json:"available"`
	IsVeg       *bool            `json:"isVeg"`
}

type Service struct {
	store  Store
	cache  Cache
	audit  Auditor
	logger *zap.Logger
}

func NewService(store Store, cache Cache, audit Auditor, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		audit:  audit,
		logger: logger.Named("menu"),
	}
}

// List returns the menu, optionally narrowed to one category. Only the
// unfiltered menu is cached.
func (s *Service) List(ctx context.Context, category models.Category) ([]*models.MenuItem, error) {
	if category != "" {
		if !category.Valid() {
			return nil, &ValidationError{Field: "category", Message: "unknown category"}
		}
		items, err := s.store.List(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to list menu: %w", err)
		}
		return items, nil
	}

	if items, err := s.cache.GetMenuCache(ctx); err == nil {
		return items, nil
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("menu cache read failed", zap.Error(err))
	}

	items, err := s.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list menu: %w", err)
	}
	if err := s.cache.CacheMenu(ctx, items); err != nil {
		s.logger.Warn("failed to cache menu", zap.Error(err))
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.store.FindByID(ctx, oid)
	if err != nil {
		return nil, lookupError(err)
	}
	return item, nil
}

func (s *Service) Create(ctx context.Context, in ItemInput) (*models.MenuItem, error) {
	item := &models.MenuItem{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		Category:    in.Category,
		Available:   true,
		IsVeg:       in.IsVeg,
	}
	if in.Available != nil {
		item.Available = *in.Available
	}
	if err := validate(item); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create food item: %w", err)
	}
	s.changed(ctx, "create_food_item", item)
	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, patch ItemPatch) (*models.MenuItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.Image != nil {
		item.Image = *patch.Image
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}
	if patch.IsVeg != nil {
		item.IsVeg = *patch.IsVeg
	}
	if err := validate(item); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, item); err != nil {
		return nil, lookupError(err)
	}
	s.changed(ctx, "update_food_item", item)
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, oid); err != nil {
		return lookupError(err)
	}

	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("failed to invalidate menu cache", zap.Error(err))
	}
	s.audit.Record("delete_food_item", id, nil)
	s.logger.Info("food item deleted", zap.String("item_id", id))
	return nil
}

func (s *Service) changed(ctx context.Context, action string, item *models.MenuItem) {
	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("failed to invalidate menu cache", zap.Error(err))
	}
	s.audit.Record(action, item.ID.Hex(), map[string]interface{}{
		"name":      item.Name,
		"price":     item.Price,
		"available": item.Available,
	})
	s.logger.Info("food item saved", zap.String("action", action), zap.String("item_id", item.ID.Hex()))
}

func validate(item *models.MenuItem) error {
	if item.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if item.Price < 0 {
		return &ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if !item.Category.Valid() {
		return &ValidationError{Field: "category", Message: "unknown category"}
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to find food item: %w", err)
}
