package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/untibullet/sprint-rollover/internal/plan"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Create a project with sprints and stories from a YAML plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return errors.New("--file is required")
		}

		p, err := plan.Load(path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := plan.Apply(ctx, a.planning, p)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s project %s: sprints %s, %d stories, %d tasks, %d subtasks\n",
			green("✓"), res.ProjectID, strings.Join(res.SprintIDs, ", "), res.Stories, res.Tasks, res.Subtasks)
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "path to the YAML plan")
	rootCmd.AddCommand(importCmd)
}
