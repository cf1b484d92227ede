package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bookforge/internal/config"
	"bookforge/internal/history"
	"bookforge/internal/ledger"
	"bookforge/internal/logging"
	"bookforge/internal/preparer"
	"bookforge/internal/workqueue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline progress and daemon state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			led, err := ledger.Load(cfg.LedgerPath(), logging.NewNop())
			if err != nil {
				return fmt.Errorf("load completion ledger: %w", err)
			}
			prepared, err := preparer.ListPrepared(cfg.Paths.PreparedDir)
			if err != nil {
				return fmt.Errorf("list prepared books: %w", err)
			}
			pending := workqueue.Pending(prepared, led)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, "Bookforge status")
			fmt.Fprintln(out, statusLine("Config", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, statusLine("Prepared books", statusInfo, fmt.Sprintf("%d", len(prepared)), colorize))
			fmt.Fprintln(out, statusLine("Published", statusOK, fmt.Sprintf("%d", len(led.Entries())), colorize))

			pendingKind := statusOK
			if len(pending) > 0 {
				pendingKind = statusWarn
			}
			fmt.Fprintln(out, statusLine("Pending", pendingKind, fmt.Sprintf("%d", len(pending)), colorize))
			if updated := led.LastUpdated(); !updated.IsZero() {
				fmt.Fprintln(out, statusLine("Last publication", statusInfo, updated.Local().Format(time.RFC1123), colorize))
			}
			fmt.Fprintln(out, statusLine("Daemon", statusInfo, daemonState(cfg.LockPath()), colorize))

			limit := cfg.Schedule.BooksPerRun
			if limit > len(pending) {
				limit = len(pending)
			}
			if limit > 0 {
				fmt.Fprintln(out, "\nNext batch:")
				for _, dir := range pending[:limit] {
					fmt.Fprintf(out, "  %s\n", dir)
				}
			}

			if run, ok := lastRun(cmd, cfg); ok {
				fmt.Fprintln(out, "\nLast run:")
				fmt.Fprintln(out, statusLine("Started", statusInfo, run.StartedAt.Local().Format(time.RFC1123), colorize))
				outcome := fmt.Sprintf("%d published, %d failed", run.BooksPublished, run.BooksFailed)
				kind := statusOK
				if run.Aborted {
					outcome += " (aborted)"
					kind = statusWarn
				}
				fmt.Fprintln(out, statusLine("Outcome", kind, outcome, colorize))
			}
			return nil
		},
	}
}

// daemonState reports whether a daemon lock file is present. The lock may be
// stale after a crash; the flock itself is only held by a live process.
func daemonState(lockPath string) string {
	if _, err := os.Stat(lockPath); err != nil {
		return "not running"
	}
	return "lock file present"
}

func lastRun(cmd *cobra.Command, cfg *config.Config) (history.RunRecord, bool) {
	store, err := history.Open(cfg)
	if err != nil {
		return history.RunRecord{}, false
	}
	defer store.Close()

	runs, err := store.RecentRuns(cmd.Context(), 1)
	if err != nil || len(runs) == 0 {
		return history.RunRecord{}, false
	}
	return runs[0], true
}
