// Command serendipity imports brokerage and bank statements into a dated
// archive, exports their contents, and keeps portfolio spreadsheets priced.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/webclinic017/serendipity/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"import", "Import a statement document into the archive", runImport},
	{"export-tiller", "Write the transactions of documents as Tiller Money CSV", runExportTiller},
	{"consolidate-holdings", "Write the holdings of documents as one sorted CSV", runConsolidateHoldings},
	{"realized-income", "Report realized gains, dividends and interest per month", runRealizedIncome},
	{"find", "Search the archive catalog", runFind},
	{"update-prices", "Write current prices into a portfolio spreadsheet", runUpdatePrices},
	{"run-ib-flex-query", "Download an Interactive Brokers flex statement", runFlexQuery},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return flag.ErrHelp
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], stdout, stderr)
		}
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
	printUsage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "serendipity")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  serendipity <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-22s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w, "\nRun 'serendipity <command> -h' for more information on a command.")
}

// newFlagSet returns a flag set with the shared --config flag.
func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultPath(), "Path to the JSON configuration file")
	return fs, configPath
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// setup loads the configuration and initializes dependencies. Callers must
// Close the returned dependencies.
func setup(ctx context.Context, configPath string, stderr io.Writer) (*Dependencies, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging.Level, stderr)
	return InitDependencies(ctx, cfg, logger)
}

// createOutput opens path for writing, or returns stdout when path is empty.
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}
