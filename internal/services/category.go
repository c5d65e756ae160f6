package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caja/internal/cache"
	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

const (
	categoryCacheSize = 8
	categoryCacheTTL  = 5 * time.Minute
)

// CategoryService is the registry of income and expense categories.
type CategoryService struct {
	base
	cache *cache.LRUCache[[]core.Category]

	// afterRead runs between the list query and the cache store in tests.
	afterRead func()
}

func NewCategoryService(gw *storage.Gateway, opts ...Option) *CategoryService {
	return &CategoryService{
		base:  newBase(gw, log.ComponentCategory, opts),
		cache: cache.NewLRUCache[[]core.Category](categoryCacheSize, categoryCacheTTL),
	}
}

// Cache exposes the list cache so it can be registered for periodic cleanup.
func (s *CategoryService) Cache() *cache.LRUCache[[]core.Category] {
	return s.cache
}

// List returns active categories; an empty type lists both kinds.
func (s *CategoryService) List(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	const op = "list_categories"
	if typ != "" && !typ.Valid() {
		return nil, core.E(core.KindValidation, op, core.CodeInvalidType, "transaction type must be 'income' or 'expense'")
	}

	key := "all"
	if typ != "" {
		key = string(typ)
	}
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	gen := s.cache.Generation()
	var out []core.Category
	err := s.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.ListCategories(ctx, typ)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.afterRead != nil {
		s.afterRead()
	}
	// A mutation that purged during the read leaves out stale.
	s.cache.SetIfGeneration(key, out, gen)
	return out, nil
}

// Get returns a category by id whether or not it is active.
func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	const op = "get_category"
	var out core.Category
	err := s.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.GetCategory(ctx, id)
		if isNoRows(err) {
			return categoryNotFound(op, id)
		}
		return err
	})
	return out, err
}

func (s *CategoryService) Create(ctx context.Context, name string, typ core.TransactionType) (core.Category, error) {
	const op = "create_category"
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.E(core.KindValidation, op, core.CodeCategoryName, "category name is required")
	}
	if !typ.Valid() {
		return core.Category{}, core.E(core.KindValidation, op, core.CodeInvalidType, "transaction type must be 'income' or 'expense'")
	}

	var out core.Category
	err := s.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.InsertCategory(ctx, name, typ)
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	s.cache.Purge()
	s.logger.InfoContext(ctx, "Category created", log.FieldCategoryID, out.ID, log.FieldTxType, string(out.Type))
	return out, nil
}

// Rename changes the name only; the type is fixed at creation.
func (s *CategoryService) Rename(ctx context.Context, id int64, name string) (core.Category, error) {
	const op = "rename_category"
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.E(core.KindValidation, op, core.CodeCategoryName, "category name is required")
	}

	var out core.Category
	err := s.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.RenameCategory(ctx, id, name)
		if isNoRows(err) {
			return categoryNotFound(op, id)
		}
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	s.cache.Purge()
	return out, nil
}

// Deactivate soft-deletes a category. Existing transactions keep their snapshot.
func (s *CategoryService) Deactivate(ctx context.Context, id int64) (core.Category, error) {
	const op = "deactivate_category"
	var out core.Category
	err := s.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.DeactivateCategory(ctx, id)
		if isNoRows(err) {
			return categoryNotFound(op, id)
		}
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	s.cache.Purge()
	s.logger.InfoContext(ctx, "Category deactivated", log.FieldCategoryID, id)
	return out, nil
}

// requireActiveIn resolves a category for transaction validation. Inactive
// categories are reported as missing.
func (s *CategoryService) requireActiveIn(ctx context.Context, q *storage.Queries, op string, id int64) (core.Category, error) {
	c, err := q.GetCategory(ctx, id)
	if isNoRows(err) || (err == nil && !c.IsActive) {
		return core.Category{}, categoryNotFound(op, id)
	}
	return c, err
}

func categoryNotFound(op string, id int64) error {
	return core.E(core.KindNotFound, op, core.CodeCategoryNotFound, fmt.Sprintf("category %d not found", id))
}
