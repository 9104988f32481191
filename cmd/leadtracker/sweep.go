package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/lead-tracker/internal/observability"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the deadline timers once",
	Long: `Evaluate every lead's apply deadline and follow-up timer once: expired
prospects are archived or dropped and overdue follow-ups are reported.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	apply := a.scheduler.SweepApplyDeadlines(cmd.Context())
	followUp := a.scheduler.SweepFollowUps(cmd.Context())
	observability.NewPrinter(cmd.OutOrStdout()).PrintSweep(apply, followUp)
	return nil
}
