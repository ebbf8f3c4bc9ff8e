// Command segctl is an interactive CLI for a single segstore table: it
// opens a table backed by a disk blob store (or an in-memory one for
// quick experiments) and drops into a REPL for inserting rows, reading
// them back, flushing, and inspecting the committed meta snapshot.
//
// Usage:
//
//	segctl [flags] <store-dir>
//
// Flags:
//
//	--order-key string      order column name (default "data_timestamp", or from config)
//	--order-type string     "number" or "string" (default "number", or from config)
//	--seg-cap int           segment capacity (default from config, else 1024)
//	--chunk-count int       segments per chunk (default from config, else 64)
//	--config string         explicit JWCC config file (overrides project config)
//	--meta-key string       blob key the committed snapshot is stored under (default "meta")
//	--memory                use an in-memory store instead of store-dir
//
// Once open, the REPL accepts:
//
//	insert <json>                insert one row, e.g. insert {"id":1,"name":"a"}
//	get <i>                       fetch row i
//	range <offset> <limit>        fetch rows [offset, offset+limit); limit<0 = to end
//	flush                         commit all dirty segments and persist meta
//	meta                          dump the committed meta snapshot as YAML
//	help                          show this help
//	exit / quit / q               leave the REPL
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/segstore/segstore/internal/config"
	"github.com/segstore/segstore/pkg/blobstore"
	"github.com/segstore/segstore/pkg/table"
	"github.com/segstore/segstore/pkg/value"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("segctl", flag.ContinueOnError)

	orderKey := fs.String("order-key", "", "order column name")
	orderType := fs.String("order-type", "", `order column value type ("number" or "string")`)
	segCap := fs.Int("seg-cap", 0, "segment capacity")
	chunkCount := fs.Int("chunk-count", 0, "segments per chunk")
	configPath := fs.String("config", "", "explicit JWCC config file")
	metaKey := fs.String("meta-key", "meta", "blob key the committed meta snapshot lives under")
	inMemory := fs.Bool("memory", false, "use an in-memory store instead of a store directory")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: segctl [flags] <store-dir>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	var storeDir string

	if !*inMemory {
		if fs.NArg() < 1 {
			fs.Usage()
			return errors.New("missing store directory (or pass --memory)")
		}

		storeDir = fs.Arg(0)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(workDir, *configPath)
	if err != nil {
		return err
	}

	if *orderKey != "" {
		cfg.Order.Key = *orderKey
	}

	if *orderType != "" {
		cfg.Order.ValueType = *orderType
	}

	if *segCap != 0 {
		cfg.SegmentCount = *segCap
	}

	if *chunkCount != 0 {
		cfg.ChunkCount = *chunkCount
	}

	orderKind, err := cfg.OrderValueKind()
	if err != nil {
		return err
	}

	var store blobstore.Store

	if *inMemory {
		store = blobstore.NewMemory()
	} else {
		disk, err := blobstore.NewDisk(storeDir)
		if err != nil {
			return err
		}
		defer disk.Close()

		store = disk
	}

	tbl, err := table.New(store, cfg.Order.Key, orderKind, cfg.SegmentCount, cfg.ChunkCount)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if data, ok, err := store.Get(ctx, *metaKey); err != nil {
		return fmt.Errorf("load existing meta: %w", err)
	} else if ok {
		meta, err := table.DecodeMeta(data)
		if err != nil {
			return fmt.Errorf("decode existing meta: %w", err)
		}

		if err := tbl.SetMeta(meta); err != nil {
			return fmt.Errorf("rehydrate table from existing meta: %w", err)
		}
	}

	repl := &repl{ctx: ctx, tbl: tbl, metaKey: *metaKey}

	return repl.run()
}

// repl is the interactive command loop, shaped after the project's other
// interactive tool: a liner-backed prompt with history, a completer, and a
// flat command dispatch switch.
type repl struct {
	ctx     context.Context
	tbl     *table.Table
	metaKey string
	liner   *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".segctl_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("segctl - segstore table CLI")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("segctl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
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

		cmd, rest, _ := strings.Cut(line, " ")

		switch strings.ToLower(cmd) {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "insert":
			r.cmdInsert(rest)

		case "get":
			r.cmdGet(rest)

		case "range":
			r.cmdRange(rest)

		case "flush":
			r.cmdFlush()

		case "meta":
			r.cmdMeta()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{"insert", "get", "range", "flush", "meta", "help", "exit", "quit", "q"}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println(`  insert <json>            Insert one row, e.g. insert {"id":1,"name":"a"}`)
	fmt.Println("  get <i>                  Fetch row i")
	fmt.Println("  range <offset> <limit>   Fetch rows [offset, offset+limit); limit<0 = to end")
	fmt.Println("  flush                    Commit all dirty segments and persist meta")
	fmt.Println("  meta                     Dump the committed meta snapshot as YAML")
	fmt.Println("  help                     Show this help")
	fmt.Println("  exit / quit / q          Exit")
}

func (r *repl) cmdInsert(arg string) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		fmt.Println("usage: insert <json object>")
		return
	}

	var raw map[string]any

	if err := json.Unmarshal([]byte(arg), &raw); err != nil {
		fmt.Println("invalid JSON:", err)
		return
	}

	row, err := rowFromJSON(raw)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if err := r.tbl.Insert(r.ctx, []table.Row{row}); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println("ok")
}

// rowFromJSON maps json.Unmarshal's any-typed decode (numbers as float64,
// strings as string, everything else rejected) onto table.Row's value.Value
// cells.
func rowFromJSON(raw map[string]any) (table.Row, error) {
	row := make(table.Row, len(raw))

	for k, v := range raw {
		switch x := v.(type) {
		case float64:
			row[k] = value.Num(x)
		case string:
			row[k] = value.Str(x)
		case nil:
			continue
		default:
			return nil, fmt.Errorf("column %q: unsupported JSON value %v", k, v)
		}
	}

	return row, nil
}

func (r *repl) cmdGet(arg string) {
	i, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		fmt.Println("usage: get <i>")
		return
	}

	row, ok, err := r.tbl.Get(r.ctx, i)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if !ok {
		fmt.Println("(no such row)")
		return
	}

	printRow(row)
}

func (r *repl) cmdRange(arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		fmt.Println("usage: range <offset> <limit>")
		return
	}

	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		fmt.Println("invalid offset:", err)
		return
	}

	limit, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		fmt.Println("invalid limit:", err)
		return
	}

	rows, err := r.tbl.Range(r.ctx, offset, limit)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for i, row := range rows {
		fmt.Printf("[%d] ", offset+int64(i))
		printRow(row)
	}

	fmt.Printf("%d row(s)\n", len(rows))
}

// printRow renders row as JSON. table.Row's cells are value.Value, which
// deliberately keeps its fields unexported (see pkg/value's gob encoder
// comment), so it has no JSON encoding of its own; convert to plain Go
// values here rather than growing value.Value's public surface just for
// this one CLI's display needs.
func printRow(row table.Row) {
	plain := make(map[string]any, len(row))

	for k, v := range row {
		switch v.Kind() {
		case value.Number:
			plain[k] = v.Float()
		case value.String:
			plain[k] = v.StringVal()
		}
	}

	data, err := json.Marshal(plain)
	if err != nil {
		fmt.Println("error formatting row:", err)
		return
	}

	fmt.Println(string(data))
}

func (r *repl) cmdFlush() {
	if err := r.tbl.Flush(r.ctx, r.metaKey); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println("flushed")
}

func (r *repl) cmdMeta() {
	meta := r.tbl.GetMeta()

	data, err := yaml.Marshal(meta)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Print(string(data))
}
