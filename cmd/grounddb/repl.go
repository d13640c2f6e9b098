package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/store"
)

func newReplCommand() *clix.Command {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")

	return &clix.Command{
		Flags: fs,
		Usage: "repl [flags]",
		Short: "Interactive get/list/view/query/explain/insert/update/delete shell",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			s, err := openOneShot(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			return (&repl{store: s, o: o}).run(ctx)
		},
	}
}

// repl is an interactive shell over an already-open Store, grounded on
// cmd/sloty's liner-based command loop: readline-style editing, persistent
// history, tab completion over a fixed command set.
type repl struct {
	store *store.Store
	o     *clix.IO
	liner *liner.State
}

var replCommands = []string{
	"get", "list", "view", "query", "explain",
	"insert", "update", "delete", "validate",
	"help", "exit", "quit",
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".grounddb_history")
}

func (r *repl) run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(replHistoryFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	r.o.Println("grounddb repl - type 'help' for commands, 'exit' to quit")

	for {
		line, err := r.liner.Prompt("grounddb> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				r.o.Println("\nbye")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd, rest := fields[0], fields[1:]

		if cmd == "exit" || cmd == "quit" {
			break
		}

		r.dispatch(ctx, cmd, rest)
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	path := replHistoryFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		_ = f.Close()
	}
}

func (r *repl) completer(line string) []string {
	var out []string

	for _, c := range replCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}

	return out
}

func (r *repl) dispatch(ctx context.Context, cmd string, args []string) {
	var err error

	switch cmd {
	case "help":
		r.printHelp()
		return
	case "get":
		err = r.cmdGet(ctx, args)
	case "list":
		err = r.cmdList(ctx, args)
	case "view":
		err = r.cmdView(ctx, args)
	case "query":
		err = r.cmdQuery(ctx, args)
	case "explain":
		err = r.cmdExplain(ctx, args)
	case "insert":
		err = r.cmdInsert(ctx, args)
	case "update":
		err = r.cmdUpdate(ctx, args)
	case "delete":
		err = r.cmdDelete(ctx, args)
	case "validate":
		err = r.cmdValidate(ctx)
	default:
		r.o.Printf("unknown command: %s (type 'help')\n", cmd)
		return
	}

	if err != nil {
		r.o.ErrPrintln(clix.FormatError(err))
	}
}

func (r *repl) printHelp() {
	r.o.Println(`Commands:
  get <collection> <id|prefix>
  list <collection>
  view <name>
  query <name> [key=value]...
  explain <name> [key=value]...
  insert <collection> [key=value]... [-- body text]
  update <collection> <id> [key=value]... [-- body text]
  delete <collection> <id>
  validate
  help
  exit / quit`)
}

func (r *repl) cmdGet(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: get <collection> <id|prefix>")
	}

	doc, err := resolveOne(ctx, r.store, args[0], args[1])
	if err != nil {
		return err
	}

	printDocument(r.o, doc)

	return nil
}

func (r *repl) cmdList(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: list <collection>")
	}

	docs, err := r.store.List(ctx, args[0])
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		r.o.Println("(empty)")
		return nil
	}

	for _, d := range docs {
		r.o.Printf("%-24s  %s\n", d.ID, d.Path)
	}

	return nil
}

func (r *repl) cmdView(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: view <name>")
	}

	rows, err := r.store.View(ctx, args[0])
	if err != nil {
		return err
	}

	printRows(r.o, rows)

	return nil
}

func (r *repl) cmdQuery(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: query <name> [key=value]...")
	}

	params, err := parseSetFlags(args[1:])
	if err != nil {
		return err
	}

	rows, err := r.store.QueryDynamic(ctx, args[0], params)
	if err != nil {
		return err
	}

	printRows(r.o, rows)

	return nil
}

func (r *repl) cmdExplain(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: explain <name> [key=value]...")
	}

	params, err := parseSetFlags(args[1:])
	if err != nil {
		return err
	}

	plan, stats, err := r.store.Explain(ctx, args[0], params)
	if err != nil {
		return err
	}

	r.o.Printf("%s\n%v\n", plan, stats)

	return nil
}

// splitBody separates "field=value..." pairs from a trailing "-- body
// text" segment, the same convention mddb's playground CLI uses for
// positional-vs-flag disambiguation.
func splitBody(args []string) ([]string, string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], strings.Join(args[i+1:], " ")
		}
	}

	return args, ""
}

func (r *repl) cmdInsert(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: insert <collection> [key=value]... [-- body text]")
	}

	sets, body := splitBody(args[1:])

	fields, err := parseSetFlags(sets)
	if err != nil {
		return err
	}

	doc, err := r.store.Insert(ctx, args[0], fields, body)
	if err != nil {
		return err
	}

	r.o.Printf("inserted %s/%s at %s\n", doc.Collection, doc.ID, doc.Path)

	return nil
}

func (r *repl) cmdUpdate(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: update <collection> <id> [key=value]... [-- body text]")
	}

	sets, body := splitBody(args[2:])

	fields, err := parseSetFlags(sets)
	if err != nil {
		return err
	}

	var bodyPtr *string
	if body != "" {
		bodyPtr = &body
	}

	doc, err := r.store.UpdatePartial(ctx, args[0], args[1], fields, bodyPtr)
	if err != nil {
		return err
	}

	r.o.Printf("updated %s/%s at %s\n", doc.Collection, doc.ID, doc.Path)

	return nil
}

func (r *repl) cmdDelete(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: delete <collection> <id>")
	}

	if err := r.store.Delete(ctx, args[0], args[1]); err != nil {
		return err
	}

	r.o.Printf("deleted %s/%s\n", args[0], args[1])

	return nil
}

func (r *repl) cmdValidate(ctx context.Context) error {
	errs := r.store.ValidateAll(ctx)
	if len(errs) == 0 {
		r.o.Println("ok: every document is valid")
		return nil
	}

	for _, e := range errs {
		r.o.ErrPrintln(clix.FormatError(e))
	}

	return &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("%d document(s) failed validation", len(errs))}
}
