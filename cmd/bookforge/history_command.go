package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bookforge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent publication runs",
		Long: "Without arguments, lists recent runs. With a run id, lists the " +
			"per-book outcomes of that run.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				runID, parseErr := strconv.ParseInt(args[0], 10, 64)
				if parseErr != nil {
					return fmt.Errorf("invalid run id %q", args[0])
				}
				return printRunBooks(cmd, store, runID)
			}
			return printRecentRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to list")
	return cmd
}

func printRecentRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No publication runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		state := "completed"
		if run.Aborted {
			state = "aborted"
		} else if run.FinishedAt.IsZero() {
			state = "running"
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Trigger,
			strconv.Itoa(run.BooksPublished),
			strconv.Itoa(run.BooksFailed),
			state,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Trigger", "Published", "Failed", "State"},
		rows, 1, 4, 5))
	return nil
}

func printRunBooks(cmd *cobra.Command, store *history.Store, runID int64) error {
	books, err := store.BooksForRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("list books for run %d: %w", runID, err)
	}

	out := cmd.OutOrStdout()
	if len(books) == 0 {
		fmt.Fprintf(out, "No books recorded for run %d.\n", runID)
		return nil
	}

	rows := make([][]string, 0, len(books))
	for _, book := range books {
		outcome := "published"
		switch {
		case !book.Succeeded:
			outcome = "failed at " + book.Stage
		case !book.Confirmed:
			outcome = "unconfirmed"
		}
		detail := book.ErrorMessage
		if detail == "" && book.Warnings > 0 {
			detail = fmt.Sprintf("%d warning(s)", book.Warnings)
		}
		rows = append(rows, []string{
			book.Directory,
			book.Title,
			outcome,
			book.FinishedAt.Local().Format("15:04:05"),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Directory", "Title", "Outcome", "Finished", "Detail"}, rows))
	return nil
}
