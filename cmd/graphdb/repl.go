package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/engine"
)

// REPL is the interactive command loop, grounded on cmd/sloty's
// liner-based driver from the teacher pack, adapted from a flat
// key-value cache to the small fixed node/relationship command grammar
// in statements.go.
type REPL struct {
	eng   *engine.Engine
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".graphdb_history")
}

func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("graphdb - embedded graph database REPL")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("graphdb> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		quit, err := r.dispatch(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		if quit {
			break
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"help", "exit", "quit", "q",
		"stats", "create-index", "drop-index", "list-indexes",
		"create", "match", "get", "set", "delete", "connect", "rels",
	}
	var out []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	return out
}

// dispatch runs one REPL line and reports whether the REPL should exit.
func (r *REPL) dispatch(line string) (bool, error) {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	ctx := context.Background()

	switch cmd {
	case "exit", "quit", "q":
		fmt.Println("Bye!")
		return true, nil

	case "help", "?":
		printHelp()
		return false, nil

	case "clear", "cls":
		fmt.Print("\033[H\033[2J")
		return false, nil

	case "stats":
		return false, r.cmdStats(ctx)

	case "create-index":
		return false, r.cmdCreateIndex(ctx, args)

	case "drop-index":
		return false, r.cmdDropIndex(ctx, args)

	case "list-indexes":
		return false, r.cmdListIndexes()

	case "create":
		return false, r.cmdCreate(ctx, args)

	case "match":
		return false, r.cmdMatch(ctx, args)

	case "get":
		return false, r.cmdGet(ctx, args)

	case "set":
		return false, r.cmdSet(ctx, args)

	case "delete":
		return false, r.cmdDelete(ctx, args)

	case "connect":
		return false, r.cmdConnect(ctx, args)

	case "rels":
		return false, r.cmdRels(ctx, args)

	default:
		fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		return false, nil
	}
}

func printHelp() {
	fmt.Println(`Commands:
  create <Label>[:Label2...] [k=v ...]    Create a node, print its id
  match <Label> [k=v ...] [limit N]       Find nodes by label/properties
  get <id>                                Fetch one node by id
  set <id> <k=v> [...]                    Set properties on a node
  delete <id> [detach]                    Delete a node
  connect <srcId> <TYPE> <dstId> [k=v..]  Create a relationship
  rels <id>                               List a node's relationships
  create-index <label> <key>              Create a secondary index
  drop-index <label> <key>                Drop a secondary index
  list-indexes                            List registered indexes
  stats                                   Print engine statistics
  help                                    Show this help
  exit / quit / q                         Exit`)
}

func splitKV(args []string) (map[string]ast.Expr, error) {
	props := map[string]ast.Expr{}
	for _, tok := range args {
		k, v, err := parseKV(tok)
		if err != nil {
			return nil, err
		}
		props[k] = &ast.Literal{Value: v}
	}
	return props, nil
}

func (r *REPL) execute(ctx context.Context, stmt *ast.Statement) (*engine.ResultSet, error) {
	return r.eng.Execute(ctx, stmt, nil, nil)
}

func printResultSet(rs *engine.ResultSet) {
	if rs == nil || len(rs.Rows) == 0 {
		fmt.Println("(no rows)")
		return
	}
	for i, row := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for j, col := range rs.Columns {
			cells[j] = fmt.Sprintf("%s=%s", col, formatValue(row[col]))
		}
		fmt.Printf("%3d. %s\n", i+1, strings.Join(cells, "  "))
	}
}

func (r *REPL) cmdCreate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: create <Label>[:Label2...] [k=v ...]")
	}
	labels := strings.Split(args[0], ":")
	props, err := splitKV(args[1:])
	if err != nil {
		return err
	}
	rs, err := r.execute(ctx, buildCreateNode(labels, props))
	if err != nil {
		return err
	}
	printResultSet(rs)
	return nil
}

func (r *REPL) cmdMatch(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: match <Label> [k=v ...] [limit N]")
	}
	label := args[0]
	rest := args[1:]
	var limit int64
	if len(rest) >= 2 && strings.EqualFold(rest[len(rest)-2], "limit") {
		n, err := strconv.ParseInt(rest[len(rest)-1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		limit = n
		rest = rest[:len(rest)-2]
	}
	props, err := splitKV(rest)
	if err != nil {
		return err
	}
	rs, err := r.execute(ctx, buildMatchByLabel(label, props, limit))
	if err != nil {
		return err
	}
	printResultSet(rs)
	return nil
}

func (r *REPL) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <id>")
	}
	stmt, err := buildGetNode(args[0])
	if err != nil {
		return err
	}
	rs, err := r.execute(ctx, stmt)
	if err != nil {
		return err
	}
	printResultSet(rs)
	return nil
}

func (r *REPL) cmdSet(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <id> <k=v> [...]")
	}
	props, err := splitKV(args[1:])
	if err != nil {
		return err
	}
	stmt, err := buildSetProps(args[0], props)
	if err != nil {
		return err
	}
	if _, err := r.execute(ctx, stmt); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func (r *REPL) cmdDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <id> [detach]")
	}
	detach := len(args) >= 2 && strings.EqualFold(args[1], "detach")
	stmt, err := buildDeleteNode(args[0], detach)
	if err != nil {
		return err
	}
	if _, err := r.execute(ctx, stmt); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func (r *REPL) cmdConnect(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: connect <srcId> <TYPE> <dstId> [k=v ...]")
	}
	props, err := splitKV(args[3:])
	if err != nil {
		return err
	}
	stmt, err := buildConnect(args[0], args[1], args[2], props)
	if err != nil {
		return err
	}
	rs, err := r.execute(ctx, stmt)
	if err != nil {
		return err
	}
	printResultSet(rs)
	return nil
}

func (r *REPL) cmdRels(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rels <id>")
	}
	stmt, err := buildRels(args[0])
	if err != nil {
		return err
	}
	rs, err := r.execute(ctx, stmt)
	if err != nil {
		return err
	}
	printResultSet(rs)
	return nil
}

func (r *REPL) cmdCreateIndex(ctx context.Context, args []string) error {
	label, key, err := parseLabelKeyNames(ctx, r.eng, args)
	if err != nil {
		return err
	}
	if err := r.eng.CreateIndex(ctx, label, key); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func (r *REPL) cmdDropIndex(ctx context.Context, args []string) error {
	label, key, err := parseLabelKeyNames(ctx, r.eng, args)
	if err != nil {
		return err
	}
	if err := r.eng.DropIndex(ctx, label, key); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func (r *REPL) cmdListIndexes() error {
	for _, k := range r.eng.ListIndexes() {
		fmt.Printf("label=%d key=%d\n", k.Label, k.Key)
	}
	return nil
}

func (r *REPL) cmdStats(ctx context.Context) error {
	stats, err := r.eng.Stats(ctx)
	if err != nil {
		return err
	}
	if id, err := r.eng.InstanceID(ctx); err == nil {
		fmt.Printf("Instance:        %s\n", id)
	}
	fmt.Printf("Active readers:  %d\n", stats.ActiveReaders)
	fmt.Printf("Write tx held:   %v\n", stats.WriteTxHeld)
	fmt.Printf("WAL queue depth: %d\n", stats.WALQueueDepth)
	fmt.Printf("Plan cache size: %d\n", stats.PlanCacheLen)

	fmt.Println("Nodes per label:")
	for _, name := range sortedKeys(stats.NodesPerLabel) {
		fmt.Printf("  %s: %d\n", name, stats.NodesPerLabel[name])
	}
	fmt.Println("Rels per type:")
	for _, name := range sortedKeys(stats.RelsPerType) {
		fmt.Printf("  %s: %d\n", name, stats.RelsPerType[name])
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseLabelKeyNames(ctx context.Context, eng *engine.Engine, args []string) (uint32, uint32, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("usage: <label> <key>")
	}
	label, err := eng.LabelID(ctx, args[0])
	if err != nil {
		return 0, 0, err
	}
	key, err := eng.KeyID(ctx, args[1])
	if err != nil {
		return 0, 0, err
	}
	return label, key, nil
}
