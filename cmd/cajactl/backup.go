package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"caja/internal/commands"
)

func newBackupCmd(a *app) *groupCmd {
	return &groupCmd{
		app:      a,
		name:     "backup",
		synopsis: "snapshot the ledger database",
		subs: []subcommands.Command{
			&backupCreateCmd{app: a},
			&backupListCmd{app: a},
			&backupHistoryCmd{app: a},
			&backupInfoCmd{app: a},
			&backupDeleteCmd{app: a},
		},
	}
}

type backupCreateCmd struct {
	app         *app
	dir         string
	description string
}

func (*backupCreateCmd) Name() string     { return "create" }
func (*backupCreateCmd) Synopsis() string { return "write a consistent copy of the database" }
func (*backupCreateCmd) Usage() string {
	return "backup create [-dir <path>] [-desc <text>]\n"
}

func (c *backupCreateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "", "Target directory; defaults to -backup-dir")
	f.StringVar(&c.description, "desc", "", "Free-text note stored with the backup")
}

func (c *backupCreateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.CreateBackup(ctx, commands.BackupRequest{Dir: c.dir, Description: c.description}))
	})
}

type backupListCmd struct {
	app *app
	dir string
}

func (*backupListCmd) Name() string     { return "list" }
func (*backupListCmd) Synopsis() string { return "backup files on disk, newest first" }
func (*backupListCmd) Usage() string    { return "backup list [-dir <path>]\n" }

func (c *backupListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "", "Directory to scan; defaults to -backup-dir")
}

func (c *backupListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.ListBackups(ctx, c.dir))
	})
}

type backupHistoryCmd struct {
	app   *app
	limit int
}

func (*backupHistoryCmd) Name() string     { return "history" }
func (*backupHistoryCmd) Synopsis() string { return "backups recorded in the database" }
func (*backupHistoryCmd) Usage() string    { return "backup history [-limit <n>]\n" }

func (c *backupHistoryCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 20, "How many")
}

func (c *backupHistoryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.BackupHistory(ctx, c.limit))
	})
}

type backupInfoCmd struct {
	app *app
}

func (*backupInfoCmd) Name() string           { return "info" }
func (*backupInfoCmd) Synopsis() string       { return "database path, size and last modification" }
func (*backupInfoCmd) Usage() string          { return "backup info\n" }
func (*backupInfoCmd) SetFlags(*flag.FlagSet) {}

func (c *backupInfoCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.DatabaseInfo(ctx))
	})
}

type backupDeleteCmd struct {
	app *app
}

func (*backupDeleteCmd) Name() string           { return "delete" }
func (*backupDeleteCmd) Synopsis() string       { return "remove a snapshot from the backup directory" }
func (*backupDeleteCmd) Usage() string          { return "backup delete <filename>\n" }
func (*backupDeleteCmd) SetFlags(*flag.FlagSet) {}

func (c *backupDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.app.stderr, "Error: backup delete takes exactly one filename.")
		return subcommands.ExitUsageError
	}
	return c.app.with(func(d *commands.Dispatcher) subcommands.ExitStatus {
		return c.app.print(d.DeleteBackup(ctx, f.Arg(0)))
	})
}
