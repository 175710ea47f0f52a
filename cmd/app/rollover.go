package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/untibullet/sprint-rollover/internal/models"
)

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Move unfinished work of a sprint into the backlog",
	Long: `Creates backlog copies of every story in the sprint that still has unfinished
or overdue tasks. Live stories and tasks are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sprintID, _ := cmd.Flags().GetString("sprint")
		if sprintID == "" {
			return errors.New("--sprint is required")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.backlog.MoveSprintToBacklog(ctx, sprintID)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Sprint "+sprintID+" rollover ==="))
		if len(created) == 0 {
			fmt.Printf("  %s\n\n", gray("Nothing to move: all work is finished"))
			return nil
		}

		for _, bs := range created {
			tasks, err := a.backlog.GetBacklogTasksByStory(ctx, bs.BacklogStoryID)
			if err != nil {
				return err
			}
			fmt.Printf("  %s %s %s\n", yellow(bs.BacklogStoryID), bs.Title, gray(originOf(bs)))
			for _, t := range tasks {
				line := fmt.Sprintf("      %-11s %s", t.Status, t.Title)
				if t.IsOverdue {
					line += " " + red("overdue")
				}
				fmt.Println(line)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s %d stories moved to backlog\n\n", green("✓"), len(created))
		return nil
	},
}

func originOf(bs models.BacklogStory) string {
	if bs.OriginalStoryID == nil {
		return ""
	}
	return "(from " + *bs.OriginalStoryID + ")"
}

func init() {
	rolloverCmd.Flags().String("sprint", "", "ID of the sprint to roll over")
	rootCmd.AddCommand(rolloverCmd)
}
