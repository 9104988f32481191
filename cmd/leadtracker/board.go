package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/lead-tracker/internal/observability"
	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/types"
)

var (
	boardSearch string
	boardStages []string
	boardJSON   bool
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Print the pipeline",
	Long:  `Load the pipeline from the configured store and print it grouped by stage, with live countdowns.`,
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().StringVar(&boardSearch, "search", "", "Only show leads matching this text")
	boardCmd.Flags().StringSliceVar(&boardStages, "stage", nil, "Only show these stages (prospect, lead, opportunity, deal)")
	boardCmd.Flags().BoolVar(&boardJSON, "json", false, "Print the board as JSON")
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, _ []string) error {
	f := pipeline.Filter{Search: boardSearch}
	for _, name := range boardStages {
		st, err := types.ParseStage(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		f.Stages = append(f.Stages, st)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	board := a.service.Board(f)
	if boardJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(board); err != nil {
			return fmt.Errorf("failed to encode board: %w", err)
		}
		return nil
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintBoard(board)
	return nil
}
