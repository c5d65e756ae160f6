package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"caja/internal/commands"
)

type summaryCmd struct {
	app          *app
	date         string
	transactions bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "daily income, expense and balance" }
func (*summaryCmd) Usage() string {
	return `summary [-date <YYYY-MM-DD>] [-transactions]

  Summarizes today, or the given date. -transactions adds the transaction
  count and drops the active-session balance.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Calendar date; defaults to today")
	f.BoolVar(&c.transactions, "transactions", false, "Today's transaction summary")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		switch {
		case c.transactions:
			return c.app.print(d.GetTodayTransactionsSummary(ctx))
		case c.date != "":
			return c.app.print(d.GetDailySummary(ctx, c.date))
		default:
			return c.app.print(d.GetTodaySummary(ctx))
		}
	})
}
