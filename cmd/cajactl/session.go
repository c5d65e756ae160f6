package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"caja/internal/commands"
	"caja/internal/core"
)

func newSessionCmd(a *app) *groupCmd {
	return &groupCmd{
		app:      a,
		name:     "session",
		synopsis: "open, close and inspect register sessions",
		subs: []subcommands.Command{
			&sessionOpenCmd{app: a},
			&sessionCloseCmd{app: a},
			&sessionStatusCmd{app: a},
			&sessionSummaryCmd{app: a},
		},
	}
}

type sessionOpenCmd struct {
	app      *app
	operator string
	amount   string
}

func (*sessionOpenCmd) Name() string     { return "open" }
func (*sessionOpenCmd) Synopsis() string { return "open a new session with the counted opening cash" }
func (*sessionOpenCmd) Usage() string {
	return `session open -operator <name> [-amount <opening>]

  Opens a session. Fails while another session is active.
`
}

func (c *sessionOpenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.operator, "operator", "", "Operator name (required)")
	f.StringVar(&c.amount, "amount", "0", "Opening cash amount, e.g. 100.00")
}

func (c *sessionOpenCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := core.ParseMoney(c.amount)
	if err != nil {
		fmt.Fprintf(c.app.stderr, "Error parsing amount: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.CreateSession(ctx, commands.CreateSessionRequest{
			OperatorName:  c.operator,
			OpeningAmount: amount,
		}))
	})
}

type sessionCloseCmd struct {
	app    *app
	id     int64
	amount string
}

func (*sessionCloseCmd) Name() string     { return "close" }
func (*sessionCloseCmd) Synopsis() string { return "close a session with the counted closing cash" }
func (*sessionCloseCmd) Usage() string {
	return `session close -amount <closing> [-id <session>]

  Closes the given session, or the active one when -id is omitted.
`
}

func (c *sessionCloseCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Session id; defaults to the active session")
	f.StringVar(&c.amount, "amount", "", "Counted closing cash amount (required)")
}

func (c *sessionCloseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.amount == "" {
		fmt.Fprintln(c.app.stderr, "Error: -amount is required.")
		return subcommands.ExitUsageError
	}
	amount, err := core.ParseMoney(c.amount)
	if err != nil {
		fmt.Fprintf(c.app.stderr, "Error parsing amount: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		id, resp, ok := resolveSession(ctx, d, c.id)
		if !ok {
			return c.app.print(resp)
		}
		return c.app.print(d.CloseSession(ctx, commands.CloseSessionRequest{SessionID: id, ClosingAmount: amount}))
	})
}

type sessionStatusCmd struct {
	app *app
}

func (*sessionStatusCmd) Name() string     { return "status" }
func (*sessionStatusCmd) Synopsis() string { return "show the active session, if any" }
func (*sessionStatusCmd) Usage() string {
	return `session status

  Prints the active session; data is null when the register is closed.
`
}
func (*sessionStatusCmd) SetFlags(*flag.FlagSet) {}

func (c *sessionStatusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.GetActiveSession(ctx))
	})
}

type sessionSummaryCmd struct {
	app *app
	id  int64
}

func (*sessionSummaryCmd) Name() string     { return "summary" }
func (*sessionSummaryCmd) Synopsis() string { return "totals, balance and closing difference of a session" }
func (*sessionSummaryCmd) Usage() string {
	return `session summary [-id <session>]
`
}

func (c *sessionSummaryCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Session id; defaults to the active session")
}

func (c *sessionSummaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		id, resp, ok := resolveSession(ctx, d, c.id)
		if !ok {
			return c.app.print(resp)
		}
		return c.app.print(d.GetSessionSummary(ctx, id))
	})
}

// resolveSession returns id, or the active session's id when id is zero.
func resolveSession(ctx context.Context, d *commands.Dispatcher, id int64) (int64, commands.Response, bool) {
	if id != 0 {
		return id, commands.Response{}, true
	}
	active, err := d.Sessions.GetActiveSession(ctx)
	if err != nil {
		return 0, d.Fail(ctx, "resolve_session", err), false
	}
	if active == nil {
		return 0, d.Fail(ctx, "resolve_session",
			core.E(core.KindConflict, "resolve_session", core.CodeNoActiveSession, "no active session")), false
	}
	return active.ID, commands.Response{}, true
}
