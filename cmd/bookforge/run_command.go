package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookforge/internal/history"
	"bookforge/internal/scheduler"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Publish the next batch of prepared books now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			sched := scheduler.New(cfg, logger, scheduler.WithHistory(store))
			report, err := sched.RunBatch(signalCtx, history.TriggerManual)
			if err != nil {
				return fmt.Errorf("batch aborted: %w", err)
			}

			out := cmd.OutOrStdout()
			if report.Attempted == 0 {
				fmt.Fprintln(out, "Nothing to publish; all prepared books are already completed.")
				return nil
			}
			fmt.Fprintf(out, "Batch finished: %d published, %d failed (of %d attempted).\n",
				report.Published, report.Failed, report.Attempted)
			for _, result := range report.Results {
				marker := "ok"
				switch {
				case !result.Succeeded():
					marker = "failed at " + string(result.Stage)
				case !result.Confirmed:
					marker = "unconfirmed"
				}
				fmt.Fprintf(out, "  %-40s %s\n", result.Directory, marker)
			}
			return nil
		},
	}
}
