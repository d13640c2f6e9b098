package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/groundlabs/grounddb/cmd/grounddb/internal/clix"
)

func newMigrateCommand() *clix.Command {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	dryRun := fs.Bool("dry-run", false, "compute and print the plan without applying it")

	return &clix.Command{
		Flags: fs,
		Usage: "migrate [--dry-run] [flags]",
		Short: "Diff the loaded schema against the last recorded one and apply safe changes",
		Long: "Compares schema.yaml against the schema last recorded in schema_history\n" +
			"and applies every safe change (spec §4.10). An unsafe change aborts with\n" +
			"MigrationRequired and leaves every file untouched; --dry-run computes and\n" +
			"prints the plan without writing anything, safe or not.",
		Exec: func(ctx context.Context, o *clix.IO, args []string) error {
			s, err := openForMigrate(ctx, *dir)
			if err != nil {
				return err
			}
			defer s.Close()

			plan, err := s.Migrate(ctx, *dryRun)
			if err != nil {
				return err
			}

			if len(plan.Changes) == 0 {
				o.Println("no schema change detected")
				return nil
			}

			for _, c := range plan.Changes {
				field := c.Field
				if field == "" {
					field = "-"
				}

				o.Printf("%-12s %-30s %-12s field=%s %s\n", c.Class, c.Collection, c.Kind, field, c.Detail)
			}

			if plan.Blocked {
				o.Println("\nblocked: plan contains an unsafe change; no file was modified")
			} else if *dryRun {
				o.Println("\ndry-run: no file was modified")
			} else {
				o.Println("\napplied")
			}

			return nil
		},
	}
}
