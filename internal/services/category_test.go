package services

import (
	"context"
	"errors"
	"testing"

	"caja/internal/core"
)

func TestCategoryService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	all, err := env.categories.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	income, err := env.categories.List(ctx, core.Income)
	if err != nil {
		t.Fatal(err)
	}
	expense, err := env.categories.List(ctx, core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 10 || len(income) != 4 || len(expense) != 6 {
		t.Errorf("counts all=%d income=%d expense=%d, want 10/4/6", len(all), len(income), len(expense))
	}
	for _, c := range income {
		if c.Type != core.Income || !c.IsActive {
			t.Errorf("unexpected category in income list: %+v", c)
		}
	}
	if _, err := env.categories.List(ctx, "other"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad type error = %v", err)
	}
}

func TestCategoryService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.categories.Create(ctx, "  ", core.Income); !errors.Is(err, core.ErrValidation) {
		t.Errorf("blank name error = %v", err)
	}
	if _, err := env.categories.Create(ctx, "Donaciones", "gift"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad type error = %v", err)
	}

	// Warm the cache so the mutations below must invalidate it.
	if _, err := env.categories.List(ctx, core.Income); err != nil {
		t.Fatal(err)
	}

	c, err := env.categories.Create(ctx, "Donaciones", core.Income)
	if err != nil {
		t.Fatal(err)
	}
	list, _ := env.categories.List(ctx, core.Income)
	if len(list) != 5 {
		t.Errorf("income categories after create = %d, want 5", len(list))
	}

	renamed, err := env.categories.Rename(ctx, c.ID, "Donativos")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Name != "Donativos" || renamed.Type != core.Income {
		t.Errorf("renamed = %+v", renamed)
	}

	if _, err := env.categories.Deactivate(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	list, _ = env.categories.List(ctx, core.Income)
	for _, x := range list {
		if x.ID == c.ID {
			t.Error("deactivated category still listed")
		}
	}
	got, err := env.categories.Get(ctx, c.ID)
	if err != nil || got.IsActive {
		t.Errorf("Get() after deactivate = %+v, %v", got, err)
	}

	for name, err := range map[string]error{
		"get":        errOnly(env.categories.Get(ctx, 999)),
		"rename":     errOnly(env.categories.Rename(ctx, 999, "x")),
		"deactivate": errOnly(env.categories.Deactivate(ctx, 999)),
	} {
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("%s unknown id error = %v, want not found", name, err)
		}
	}
}

func errOnly[T any](_ T, err error) error { return err }

func TestCategoryService_ListDoesNotCacheAcrossMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.categories.Create(ctx, "Propinas", core.Income)
	if err != nil {
		t.Fatal(err)
	}

	// Deactivate lands after the read but before the result is cached.
	env.categories.afterRead = func() {
		env.categories.afterRead = nil
		if _, err := env.categories.Deactivate(ctx, c.ID); err != nil {
			t.Errorf("Deactivate() error = %v", err)
		}
	}
	stale, err := env.categories.List(ctx, core.Income)
	if err != nil {
		t.Fatal(err)
	}
	if !containsCategory(stale, c.ID) {
		t.Fatal("first List should still see the category it read")
	}

	fresh, err := env.categories.List(ctx, core.Income)
	if err != nil {
		t.Fatal(err)
	}
	if containsCategory(fresh, c.ID) {
		t.Error("deactivated category served from cache")
	}
}

func containsCategory(list []core.Category, id int64) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
