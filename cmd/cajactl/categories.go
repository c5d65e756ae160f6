package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"caja/internal/commands"
	"caja/internal/core"
)

func newCategoriesCmd(a *app) *groupCmd {
	return &groupCmd{
		app:      a,
		name:     "categories",
		synopsis: "manage income and expense categories",
		subs: []subcommands.Command{
			&categoriesListCmd{app: a},
			&categoriesAddCmd{app: a},
			&categoriesRenameCmd{app: a},
			&categoriesDeactivateCmd{app: a},
		},
	}
}

type categoriesListCmd struct {
	app *app
	typ string
}

func (*categoriesListCmd) Name() string     { return "list" }
func (*categoriesListCmd) Synopsis() string { return "list active categories" }
func (*categoriesListCmd) Usage() string    { return "categories list [-type <income|expense>]\n" }

func (c *categoriesListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "", "Only income or expense categories")
}

func (c *categoriesListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		if c.typ == "" {
			return c.app.print(d.GetAllCategories(ctx))
		}
		return c.app.print(d.GetCategoriesByType(ctx, c.typ))
	})
}

type categoriesAddCmd struct {
	app  *app
	name string
	typ  string
}

func (*categoriesAddCmd) Name() string     { return "add" }
func (*categoriesAddCmd) Synopsis() string { return "create a category" }
func (*categoriesAddCmd) Usage() string {
	return "categories add -name <name> -type <income|expense>\n"
}

func (c *categoriesAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Category name (required)")
	f.StringVar(&c.typ, "type", "", "income or expense (required)")
}

func (c *categoriesAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.CreateCategory(ctx, commands.CategoryRequest{
			Name: c.name,
			Type: core.TransactionType(c.typ),
		}))
	})
}

type categoriesRenameCmd struct {
	app  *app
	id   int64
	name string
}

func (*categoriesRenameCmd) Name() string     { return "rename" }
func (*categoriesRenameCmd) Synopsis() string { return "rename a category in place" }
func (*categoriesRenameCmd) Usage() string    { return "categories rename -id <id> -name <name>\n" }

func (c *categoriesRenameCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Category id (required)")
	f.StringVar(&c.name, "name", "", "New name (required)")
}

func (c *categoriesRenameCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == 0 {
		fmt.Fprintln(c.app.stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.RenameCategory(ctx, c.id, c.name))
	})
}

type categoriesDeactivateCmd struct {
	app *app
	id  int64
}

func (*categoriesDeactivateCmd) Name() string { return "deactivate" }
func (*categoriesDeactivateCmd) Synopsis() string {
	return "hide a category from new transactions; history keeps it"
}
func (*categoriesDeactivateCmd) Usage() string { return "categories deactivate -id <id>\n" }

func (c *categoriesDeactivateCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Category id (required)")
}

func (c *categoriesDeactivateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == 0 {
		fmt.Fprintln(c.app.stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.DeactivateCategory(ctx, c.id))
	})
}
