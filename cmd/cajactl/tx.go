package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"caja/internal/commands"
	"caja/internal/core"
)

func newTxCmd(a *app) *groupCmd {
	return &groupCmd{
		app:      a,
		name:     "tx",
		synopsis: "record and browse transactions",
		subs: []subcommands.Command{
			&txAddCmd{app: a},
			&txListCmd{app: a},
			&txSearchCmd{app: a},
			&txGetCmd{app: a},
			&txRecentCmd{app: a},
		},
	}
}

// optionalID turns a zero flag value into "not set".
func optionalID(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

type txAddCmd struct {
	app       *app
	typ       string
	amount    string
	concept   string
	category  int64
	createdBy string
}

func (*txAddCmd) Name() string     { return "add" }
func (*txAddCmd) Synopsis() string { return "record an income or expense in the active session" }
func (*txAddCmd) Usage() string {
	return `tx add -type <income|expense> -amount <amount> -concept <text> [-category <id>] [-by <name>]

  Records a transaction in the active session. Expenses cannot exceed the
  session balance.
`
}

func (c *txAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "", "Transaction type: income or expense (required)")
	f.StringVar(&c.amount, "amount", "", "Amount, e.g. 25.50 (required)")
	f.StringVar(&c.concept, "concept", "", "What the money was for (required)")
	f.Int64Var(&c.category, "category", 0, "Category id")
	f.StringVar(&c.createdBy, "by", "", "Recorded by; defaults to the session operator")
}

func (c *txAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := core.ParseMoney(c.amount)
	if err != nil {
		fmt.Fprintf(c.app.stderr, "Error parsing amount: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		active, err := d.Sessions.GetActiveSession(ctx)
		if err != nil {
			return c.app.print(d.Fail(ctx, "create_transaction", err))
		}
		var sessionID int64
		if active != nil {
			sessionID = active.ID
		}
		return c.app.print(d.CreateTransaction(ctx, core.NewTransaction{
			SessionID:  sessionID,
			Type:       core.TransactionType(c.typ),
			Amount:     amount,
			Concept:    c.concept,
			CategoryID: optionalID(c.category),
			CreatedBy:  c.createdBy,
		}))
	})
}

type txListCmd struct {
	app      *app
	session  int64
	typ      string
	from     string
	to       string
	category int64
	limit    int
	offset   int
}

func (*txListCmd) Name() string     { return "list" }
func (*txListCmd) Synopsis() string { return "list transactions, newest first" }
func (*txListCmd) Usage() string {
	return `tx list [-session <id>] [-type <income|expense>] [-from <date>] [-to <date>] [-category <id>] [-limit <n>] [-offset <n>]

  Dates are YYYY-MM-DD and inclusive.
`
}

func (c *txListCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.session, "session", 0, "Only this session")
	f.StringVar(&c.typ, "type", "", "Only income or expense")
	f.StringVar(&c.from, "from", "", "First calendar date")
	f.StringVar(&c.to, "to", "", "Last calendar date")
	f.Int64Var(&c.category, "category", 0, "Only this category id")
	f.IntVar(&c.limit, "limit", 0, "Page size (default 50, max 500)")
	f.IntVar(&c.offset, "offset", 0, "Rows to skip")
}

func (c *txListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.GetTransactions(ctx, commands.GetTransactionsRequest{
			SessionID:       optionalID(c.session),
			TransactionType: c.typ,
			StartDate:       c.from,
			EndDate:         c.to,
			CategoryID:      optionalID(c.category),
			Limit:           c.limit,
			Offset:          c.offset,
		}))
	})
}

type txSearchCmd struct {
	app    *app
	limit  int
	offset int
}

func (*txSearchCmd) Name() string     { return "search" }
func (*txSearchCmd) Synopsis() string { return "find transactions by concept, number or category" }
func (*txSearchCmd) Usage() string {
	return `tx search [-limit <n>] [-offset <n>] <text>
`
}

func (c *txSearchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 0, "Page size (default 50, max 500)")
	f.IntVar(&c.offset, "offset", 0, "Rows to skip")
}

func (c *txSearchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.app.stderr, "Error: tx search takes exactly one search text.")
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.SearchTransactions(ctx, commands.SearchRequest{
			Query:  f.Arg(0),
			Limit:  c.limit,
			Offset: c.offset,
		}))
	})
}

type txGetCmd struct {
	app *app
}

func (*txGetCmd) Name() string           { return "get" }
func (*txGetCmd) Synopsis() string       { return "show one transaction by id" }
func (*txGetCmd) Usage() string          { return "tx get <id>\n" }
func (*txGetCmd) SetFlags(*flag.FlagSet) {}

func (c *txGetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.app.stderr, "Error: tx get takes exactly one id.")
		return subcommands.ExitUsageError
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(c.app.stderr, "Error parsing id: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.GetTransactionByID(ctx, id))
	})
}

type txRecentCmd struct {
	app     *app
	session int64
	limit   int
}

func (*txRecentCmd) Name() string     { return "recent" }
func (*txRecentCmd) Synopsis() string { return "the latest transactions" }
func (*txRecentCmd) Usage() string    { return "tx recent [-session <id>] [-limit <n>]\n" }

func (c *txRecentCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.session, "session", 0, "Only this session")
	f.IntVar(&c.limit, "limit", 10, "How many")
}

func (c *txRecentCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.GetRecentTransactions(ctx, optionalID(c.session), c.limit))
	})
}
