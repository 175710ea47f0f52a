package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long:  `Creates or upgrades the schema of the configured database (postgres or sqlite).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s schema is up to date (%s)\n", green("✓"), a.cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
