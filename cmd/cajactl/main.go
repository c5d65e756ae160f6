// Command cajactl operates the cash register from the terminal. Every
// subcommand prints the same JSON envelope the HTTP API returns.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"caja/internal/cli"
	"caja/internal/commands"
	"caja/internal/config"
	"caja/internal/log"
	"caja/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// app is shared by every subcommand; the database opens on first use.
type app struct {
	dbPath    string
	backupDir string
	currency  string
	logLevel  string
	stdout    io.Writer
	stderr    io.Writer

	gw  *storage.Gateway
	cmd *commands.Dispatcher
}

func (a *app) dispatcher() (*commands.Dispatcher, error) {
	if a.cmd != nil {
		return a.cmd, nil
	}
	gw, err := storage.Open(a.dbPath)
	if err != nil {
		return nil, err
	}
	// stdout carries the JSON envelope, so logs go to stderr.
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: log.ParseLevel(a.logLevel)}),
	})
	a.gw = gw
	a.cmd = cli.NewServices(gw, logger, nil, a.backupDir).Dispatcher(a.currency, logger)
	return a.cmd, nil
}

func (a *app) close() {
	if a.gw != nil {
		a.gw.Close()
	}
}

// print writes the envelope and maps failure to a non-zero exit.
func (a *app) print(resp commands.Response) subcommands.ExitStatus {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(a.stderr, "Error encoding response: %v\n", err)
		return subcommands.ExitFailure
	}
	if !resp.Success {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// with opens the dispatcher and runs fn, reporting open failures on stderr.
func (a *app) with(fn func(*commands.Dispatcher) subcommands.ExitStatus) subcommands.ExitStatus {
	d, err := a.dispatcher()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error opening ledger %q: %v\n", a.dbPath, err)
		return subcommands.ExitFailure
	}
	return fn(d)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	a := &app{stdout: stdout, stderr: stderr}

	fs := flag.NewFlagSet("cajactl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&a.dbPath, "db", cfg.DBPath, "Path to the ledger database")
	fs.StringVar(&a.backupDir, "backup-dir", cfg.BackupDir, "Directory for database backups")
	fs.StringVar(&a.currency, "currency", cfg.Currency, "ISO 4217 code used in messages")
	fs.StringVar(&a.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	commander := subcommands.NewCommander(fs, "cajactl")
	commander.Output = stdout
	commander.Error = stderr
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(newSessionCmd(a), "register")
	commander.Register(newTxCmd(a), "register")
	commander.Register(&summaryCmd{app: a}, "register")
	commander.Register(newCategoriesCmd(a), "catalog")
	commander.Register(newBackupCmd(a), "maintenance")

	if err := fs.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	defer a.close()
	return int(commander.Execute(ctx))
}

// groupCmd dispatches to nested subcommands, e.g. "cajactl session open".
type groupCmd struct {
	app      *app
	name     string
	synopsis string
	subs     []subcommands.Command
}

func (g *groupCmd) Name() string     { return g.name }
func (g *groupCmd) Synopsis() string { return g.synopsis }
func (g *groupCmd) Usage() string {
	return fmt.Sprintf("%s <subcommand> <options>\n\n  %s\n", g.name, g.synopsis)
}
func (g *groupCmd) SetFlags(*flag.FlagSet) {}

func (g *groupCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	commander := subcommands.NewCommander(f, g.name)
	commander.Output = g.app.stdout
	commander.Error = g.app.stderr
	commander.Register(commander.HelpCommand(), "")
	for _, c := range g.subs {
		commander.Register(c, "")
	}
	return commander.Execute(ctx, args...)
}
