// graphdb is the REPL/stats driver for the embedded graph database core,
// grounded on the teacher's pflag-based flag parsing (internal/cli) and
// cmd/sloty's liner REPL. It is the one "front end" this module owns
// (spec section 1): everything HTTP/REST/GraphQL/GUI stays out of scope.
package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/graphdb-core/graphdb/internal/config"
	"github.com/graphdb-core/graphdb/internal/engine"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("graphdb", flag.ContinueOnError)

	dir := fs.StringP("dir", "d", "", "database directory (required)")
	configPath := fs.StringP("config", "c", "", "path to a JSONC config file")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logJSON := fs.Bool("log-json", false, "emit structured JSON logs")
	groupCommit := fs.Bool("group-commit", true, "batch WAL fsyncs across concurrent writers")
	statsOnly := fs.Bool("stats", false, "print stats() once and exit, instead of starting the REPL")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: graphdb --dir <path> [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	if *dir == "" {
		fs.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: --dir is required")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	cfg.Dir = *dir
	cfg.GroupCommit = *groupCommit
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	cfg.LogJSON = *logJSON

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating database directory: %v\n", err)
		return 1
	}

	ctx := context.Background()
	eng, err := engine.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening database: %v\n", err)
		return 1
	}
	defer eng.Close()

	if *statsOnly {
		repl := &REPL{eng: eng}
		if err := repl.cmdStats(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	repl := &REPL{eng: eng}
	if err := repl.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
