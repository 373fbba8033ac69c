package cmd

import (
	"fmt"
	"strconv"

	"wagerledger/config"
	"wagerledger/database"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	c.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				cfg := config.Get()
				configureLogging(cfg)
				return database.MigrateUp(cfg.GetDatabaseURL())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid steps value: %s", args[0])
					}
					steps = n
				}
				cfg := config.Get()
				configureLogging(cfg)
				return database.MigrateDown(cfg.GetDatabaseURL(), steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				cfg := config.Get()
				version, dirty, err := database.MigrateStatus(cfg.GetDatabaseURL())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Current migration version: %d (dirty: %t)\n", version, dirty)
				return nil
			},
		},
	)
	return c
}
