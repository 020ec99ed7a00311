// Command arbctl scrapes listings, stores snapshots and reports arbitrage
// opportunities from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/hetulpatel/pricearb/internal/app"
	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/service"
	"github.com/hetulpatel/pricearb/internal/storage"
)

// env is what every subcommand runs against.
type env struct {
	cfg     *config.Config
	tracker *service.Tracker
	store   storage.Store
	stdout  io.Writer
	stderr  io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"init":      {"Initialize the database", runInit},
	"scrape":    {"Scrape products and store them as a snapshot", runScrape},
	"detect":    {"Detect opportunities from live data and/or a snapshot", runDetect},
	"find":      {"Detect opportunities and save them", runFind},
	"history":   {"Show stored opportunities", runHistory},
	"snapshots": {"List stored snapshots", runSnapshots},
	"items":     {"List the items of a snapshot", runItems},
	"delete":    {"Delete a snapshot and everything in it", runDelete},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("arbctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "enable debug logging")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(stderr)
		return 2
	}
	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *verbose {
		logging.SetLevel("debug")
	}
	tracker, store, err := app.OpenTracker(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer store.Close()

	e := &env{cfg: cfg, tracker: tracker, store: store, stdout: stdout, stderr: stderr}
	if err := cmd.run(ctx, e, global.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: arbctl [-v] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, commands[n].usage)
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
