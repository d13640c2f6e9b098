// Command grounddb is the CLI surface documented in spec §6: get, list,
// insert, update, delete, view, query, explain, validate, migrate (+
// --dry-run), rebuild, status, export, plus an interactive repl. Every
// subcommand opens the Store fresh, does one thing, and closes it again —
// the library surface lives in the root grounddb package and
// internal/store, not here.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	o := clix.NewIO(out, errOut)

	if len(args) == 0 {
		printUsage(o)
		return 0
	}

	name := args[0]

	if name == "-h" || name == "--help" || name == "help" {
		printUsage(o)
		return 0
	}

	cmds := commands()

	cmd, ok := cmds[name]
	if !ok {
		o.ErrPrintln(clix.FormatError(fmt.Errorf("unknown command: %s", name)))
		printUsage(o)

		return 2
	}

	return cmd.Run(context.Background(), o, args[1:])
}

// order lists the command names in the order they should appear in help
// output; commands() itself is a map, which has no stable iteration order.
var order = []string{
	"get", "list", "insert", "update", "delete",
	"view", "query", "explain", "validate",
	"migrate", "rebuild", "status", "export", "repl",
}

func commands() map[string]*clix.Command {
	cmds := map[string]*clix.Command{
		"get":      newGetCommand(),
		"list":     newListCommand(),
		"insert":   newInsertCommand(),
		"update":   newUpdateCommand(),
		"delete":   newDeleteCommand(),
		"view":     newViewCommand(),
		"query":    newQueryCommand(),
		"explain":  newExplainCommand(),
		"validate": newValidateCommand(),
		"migrate":  newMigrateCommand(),
		"rebuild":  newRebuildCommand(),
		"status":   newStatusCommand(),
		"export":   newExportCommand(),
		"repl":     newReplCommand(),
	}

	return cmds
}

func printUsage(o *clix.IO) {
	o.Println("grounddb - CRUD, query, and migration CLI over a GroundDB data directory")
	o.Println()
	o.Println("Usage: grounddb <command> [flags] [args]")
	o.Println()
	o.Println("Commands:")

	cmds := commands()
	for _, name := range order {
		o.Println(cmds[name].HelpLine())
	}

	o.Println()
	o.Println("Every command accepts --dir (default: $GROUNDDB_DATA_DIR or \".\").")
	o.Println("Run 'grounddb <command> --help' for details on a specific command.")
}
